package validator

import (
	"strings"

	"github.com/buralog/etl-healthcare/internal/fhir"
)

// ResourceValidator enforces a minimal profile of the mapped Observation
// resource. It is deliberately decoupled from the DTO validator so the
// internal shape can evolve without invalidating the external contract.
type ResourceValidator struct{}

// NewResourceValidator constructs the output representation validator.
func NewResourceValidator() *ResourceValidator {
	return &ResourceValidator{}
}

// Validate checks the minimal Observation profile.
func (v *ResourceValidator) Validate(obs *fhir.Observation) *Result {
	res := &Result{}
	if obs == nil {
		res.add("", "resource must not be nil")
		return res
	}

	if obs.ResourceType != "Observation" {
		res.add("resourceType", "must equal Observation")
	}
	res.requireString("status", obs.Status)

	if len(obs.Code.Coding) == 0 {
		res.add("code.coding", "must contain at least one coding")
	} else {
		res.requireString("code.coding[0].system", obs.Code.Coding[0].System)
		res.requireString("code.coding[0].code", obs.Code.Coding[0].Code)
	}

	if !strings.HasPrefix(obs.Subject.Reference, "Patient/") ||
		len(obs.Subject.Reference) <= len("Patient/") {
		res.add("subject.reference", "must reference a patient")
	}

	res.requireRFC3339("effectiveDateTime", obs.EffectiveDateTime)
	res.requireFinite("valueQuantity.value", obs.ValueQuantity.Value)
	res.requireString("valueQuantity.unit", obs.ValueQuantity.Unit)

	return res
}
