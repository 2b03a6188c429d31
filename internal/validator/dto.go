package validator

import (
	"fmt"

	"github.com/buralog/etl-healthcare/internal/model"
)

// minIngestHashLength rejects truncated content hashes. SHA-256 hex is 64
// characters; anything shorter than half of that is not a usable trace key.
const minIngestHashLength = 32

// DTOValidator enforces the canonical observation DTO invariants.
type DTOValidator struct{}

// NewDTOValidator constructs the DTO validator.
func NewDTOValidator() *DTOValidator {
	return &DTOValidator{}
}

// Validate checks every DTO invariant and returns the full issue list.
// The input is never mutated.
func (v *DTOValidator) Validate(dto *model.ObservationDTO) *Result {
	res := &Result{}
	if dto == nil {
		res.add("", "dto must not be nil")
		return res
	}

	if dto.SchemaVersion != model.ObservationSchemaVersion {
		res.add("schemaVersion", fmt.Sprintf("must equal %d", model.ObservationSchemaVersion))
	}
	res.requireString("patientId", dto.PatientID)
	res.requireString("code", dto.Code)
	res.requireFinite("value", dto.Value)
	res.requireString("unit", dto.Unit)
	res.requireRFC3339("effectiveDateTime", dto.EffectiveDateTime)
	res.requireString("sourceSystem", dto.SourceSystem)
	if len(dto.IngestHash) < minIngestHashLength {
		res.add("ingestHash", fmt.Sprintf("must be at least %d characters", minIngestHashLength))
	}

	return res
}
