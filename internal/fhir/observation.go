// Package fhir defines the minimal FHIR R4 Observation profile produced by the
// pipeline and the mapping from the canonical DTO onto it.
package fhir

// Observation is the standards-aligned output representation. Only the subset
// of FHIR R4 Observation the pipeline emits is modeled; the external contract
// is enforced by the resource validator, not by this struct.
type Observation struct {
	ResourceType      string          `json:"resourceType"`
	Status            string          `json:"status"`
	Code              CodeableConcept `json:"code"`
	Subject           Reference       `json:"subject"`
	EffectiveDateTime string          `json:"effectiveDateTime"`
	ValueQuantity     Quantity        `json:"valueQuantity"`
}

// CodeableConcept wraps one or more codings.
type CodeableConcept struct {
	Coding []Coding `json:"coding"`
	Text   string   `json:"text,omitempty"`
}

// Coding is a system/code pair.
type Coding struct {
	System string `json:"system"`
	Code   string `json:"code"`
}

// Reference points at another resource.
type Reference struct {
	Reference string `json:"reference"`
}

// Quantity carries a measured value and its unit.
type Quantity struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}
