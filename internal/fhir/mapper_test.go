package fhir_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buralog/etl-healthcare/internal/fhir"
	"github.com/buralog/etl-healthcare/internal/model"
)

func TestMapObservation(t *testing.T) {
	dto := &model.ObservationDTO{
		SchemaVersion:     model.ObservationSchemaVersion,
		PatientID:         "pat-42",
		Code:              "8867-4",
		Value:             72.5,
		Unit:              "/min",
		EffectiveDateTime: "2024-02-15T10:00:00Z",
		SourceSystem:      "monitor",
		IngestHash:        "hash",
	}

	obs := fhir.MapObservation(dto)

	assert.Equal(t, "Observation", obs.ResourceType)
	assert.Equal(t, fhir.StatusFinal, obs.Status)
	require.Len(t, obs.Code.Coding, 1)
	assert.Equal(t, fhir.CodingSystemLOINC, obs.Code.Coding[0].System)
	assert.Equal(t, "8867-4", obs.Code.Coding[0].Code)
	assert.Equal(t, "Patient/pat-42", obs.Subject.Reference)
	assert.Equal(t, "2024-02-15T10:00:00Z", obs.EffectiveDateTime)
	assert.Equal(t, 72.5, obs.ValueQuantity.Value)
	assert.Equal(t, "/min", obs.ValueQuantity.Unit)
}

func TestMapObservation_Deterministic(t *testing.T) {
	dto := &model.ObservationDTO{
		SchemaVersion:     model.ObservationSchemaVersion,
		PatientID:         "pat-1",
		Code:              "2339-0",
		Value:             99,
		Unit:              "mg/dL",
		EffectiveDateTime: "2024-03-01T08:00:00Z",
		SourceSystem:      "lab",
		IngestHash:        "hash",
	}

	first, err := json.Marshal(fhir.MapObservation(dto))
	require.NoError(t, err)
	second, err := json.Marshal(fhir.MapObservation(dto))
	require.NoError(t, err)
	assert.JSONEq(t, string(first), string(second))
}
