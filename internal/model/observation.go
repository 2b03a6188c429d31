package model

// ObservationDTO is the canonical internal shape every source format is
// normalized into before mapping and persistence. It is transient: adapters
// produce it, the mapper and validators consume it, and it is never stored.
type ObservationDTO struct {
	SchemaVersion     int     `json:"schemaVersion"`
	PatientID         string  `json:"patientId"`
	Code              string  `json:"code"`
	Value             float64 `json:"value"`
	Unit              string  `json:"unit"`
	EffectiveDateTime string  `json:"effectiveDateTime"`
	SourceSystem      string  `json:"sourceSystem"`
	IngestHash        string  `json:"ingestHash"`
}

// ObservationSchemaVersion is the only DTO schema version this build emits.
const ObservationSchemaVersion = 1
