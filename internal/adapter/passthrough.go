package adapter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/buralog/etl-healthcare/internal/model"
	"github.com/buralog/etl-healthcare/internal/validator"
)

// PassthroughAdapter handles payloads that are already structured records.
// It is the fallback for unknown formats: the payload only needs light
// coercion (numeric strings, missing schema version) before validation.
type PassthroughAdapter struct {
	dto *validator.DTOValidator
}

// NewPassthroughAdapter constructs the passthrough adapter.
func NewPassthroughAdapter(dto *validator.DTOValidator) *PassthroughAdapter {
	return &PassthroughAdapter{dto: dto}
}

// Supports reports true for every format; register this adapter last.
func (a *PassthroughAdapter) Supports(model.Format) bool {
	return true
}

// Parse decodes the payload as a single record or an array of records.
func (a *PassthroughAdapter) Parse(payload []byte, pc ParseContext) ([]model.ObservationDTO, *ParseReport, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, nil, fmt.Errorf("empty payload")
	}

	var records []json.RawMessage
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, nil, fmt.Errorf("decode record array: %w", err)
		}
	} else {
		records = []json.RawMessage{trimmed}
	}

	report := &ParseReport{}
	var dtos []model.ObservationDTO

	for i, raw := range records {
		locator := fmt.Sprintf("record %d", i+1)
		dto, err := a.coerce(raw, pc)
		if err != nil {
			report.drop(locator, err.Error())
			continue
		}
		if res := a.dto.Validate(dto); !res.OK() {
			report.drop(locator, res.Error().Error())
			continue
		}
		dtos = append(dtos, *dto)
		report.Parsed++
	}

	return dtos, report, nil
}

func (a *PassthroughAdapter) coerce(raw json.RawMessage, pc ParseContext) (*model.ObservationDTO, error) {
	var loose struct {
		SchemaVersion     int             `json:"schemaVersion"`
		PatientID         string          `json:"patientId"`
		Code              string          `json:"code"`
		Value             json.RawMessage `json:"value"`
		Unit              string          `json:"unit"`
		EffectiveDateTime string          `json:"effectiveDateTime"`
		SourceSystem      string          `json:"sourceSystem"`
	}
	if err := json.Unmarshal(raw, &loose); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}

	value, err := coerceNumber(loose.Value)
	if err != nil {
		return nil, err
	}

	if loose.SchemaVersion == 0 {
		loose.SchemaVersion = model.ObservationSchemaVersion
	}
	if loose.SourceSystem == "" {
		loose.SourceSystem = pc.SourceSystem
	}

	return &model.ObservationDTO{
		SchemaVersion:     loose.SchemaVersion,
		PatientID:         loose.PatientID,
		Code:              loose.Code,
		Value:             value,
		Unit:              loose.Unit,
		EffectiveDateTime: loose.EffectiveDateTime,
		SourceSystem:      loose.SourceSystem,
		IngestHash:        ContentHash(raw),
	}, nil
}

// coerceNumber accepts a JSON number or a numeric string.
func coerceNumber(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("missing value")
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return n, nil
		}
	}

	return 0, fmt.Errorf("value %s is not numeric", string(raw))
}
