package fhir

import "github.com/buralog/etl-healthcare/internal/model"

// CodingSystemLOINC is the coding system URI stamped on every mapped
// observation. The upstream formats carry bare codes; LOINC is the declared
// system for this deployment.
const CodingSystemLOINC = "http://loinc.org"

// StatusFinal is the fixed status for ingested observations.
const StatusFinal = "final"

// MapObservation converts a canonical DTO into the FHIR Observation shape.
// Pure and deterministic: the same DTO always yields the same resource.
func MapObservation(dto *model.ObservationDTO) *Observation {
	return &Observation{
		ResourceType: "Observation",
		Status:       StatusFinal,
		Code: CodeableConcept{
			Coding: []Coding{{
				System: CodingSystemLOINC,
				Code:   dto.Code,
			}},
		},
		Subject: Reference{
			Reference: "Patient/" + dto.PatientID,
		},
		EffectiveDateTime: dto.EffectiveDateTime,
		ValueQuantity: Quantity{
			Value: dto.Value,
			Unit:  dto.Unit,
		},
	}
}
