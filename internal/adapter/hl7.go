package adapter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/buralog/etl-healthcare/internal/model"
	"github.com/buralog/etl-healthcare/internal/validator"
)

// HL7 v2 ER7 delimiters. Only the default encoding characters are supported.
const (
	hl7FieldSep      = "|"
	hl7ComponentSep  = "^"
	hl7RepetitionSep = "~"
)

// HL7Adapter parses a minimal subset of pipe-delimited HL7 v2 messages: the
// PID segment supplies the patient identifier and every OBX segment yields
// one observation candidate. String or otherwise non-numeric OBX values are
// unsupported; such segments are dropped without affecting their siblings.
type HL7Adapter struct {
	dto *validator.DTOValidator
}

// NewHL7Adapter constructs the HL7 v2 adapter.
func NewHL7Adapter(dto *validator.DTOValidator) *HL7Adapter {
	return &HL7Adapter{dto: dto}
}

// Supports reports true for the HL7 v2 format.
func (a *HL7Adapter) Supports(f model.Format) bool {
	return f == model.FormatHL7v2
}

// Parse splits the message into segments on CR or LF and walks them in order.
func (a *HL7Adapter) Parse(payload []byte, pc ParseContext) ([]model.ObservationDTO, *ParseReport, error) {
	segments := splitSegments(string(payload))
	if len(segments) == 0 {
		return nil, nil, fmt.Errorf("hl7 message has no segments")
	}

	report := &ParseReport{}
	var dtos []model.ObservationDTO
	var patientID string

	for i, seg := range segments {
		fields := strings.Split(seg, hl7FieldSep)
		locator := fmt.Sprintf("%s segment %d", fields[0], i+1)

		switch fields[0] {
		case "PID":
			patientID = pidPatientID(fields)
		case "OBX":
			dto, err := a.obxToDTO(seg, fields, patientID, pc)
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
	}

	return dtos, report, nil
}

func (a *HL7Adapter) obxToDTO(raw string, fields []string, patientID string, pc ParseContext) (*model.ObservationDTO, error) {
	code := firstComponent(hl7Field(fields, 3))
	if code == "" {
		return nil, fmt.Errorf("missing observation code (OBX-3)")
	}

	valueField := hl7Field(fields, 5)
	value, err := strconv.ParseFloat(strings.TrimSpace(valueField), 64)
	if err != nil {
		return nil, fmt.Errorf("non-numeric observation value %q (OBX-5)", valueField)
	}

	effective, err := expandHL7Timestamp(hl7Field(fields, 14))
	if err != nil {
		return nil, fmt.Errorf("observation timestamp (OBX-14): %w", err)
	}

	return &model.ObservationDTO{
		SchemaVersion:     model.ObservationSchemaVersion,
		PatientID:         patientID,
		Code:              code,
		Value:             value,
		Unit:              firstComponent(hl7Field(fields, 6)),
		EffectiveDateTime: effective,
		SourceSystem:      pc.SourceSystem,
		IngestHash:        ContentHash([]byte(raw)),
	}, nil
}

// pidPatientID extracts the patient identifier from PID-3: first repetition,
// first non-empty composite component.
func pidPatientID(fields []string) string {
	repetitions := strings.Split(hl7Field(fields, 3), hl7RepetitionSep)
	if len(repetitions) == 0 {
		return ""
	}
	for _, comp := range strings.Split(repetitions[0], hl7ComponentSep) {
		if comp = strings.TrimSpace(comp); comp != "" {
			return comp
		}
	}
	return ""
}

// expandHL7Timestamp converts the compact YYYYMMDD[HH[MM[SS]]] form to
// RFC3339 UTC. Missing trailing components default to the start of the
// period: month and day to 01, time-of-day to zero.
func expandHL7Timestamp(ts string) (string, error) {
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return "", fmt.Errorf("empty timestamp")
	}
	if len(ts)%2 != 0 || len(ts) < 4 || len(ts) > 14 {
		return "", fmt.Errorf("unsupported timestamp length %d", len(ts))
	}
	// Atoi alone would admit signed components such as "-1".
	for _, r := range ts {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("non-numeric timestamp %q", ts)
		}
	}

	parts := []int{0, 1, 1, 0, 0, 0} // year, month, day, hour, minute, second
	widths := []int{4, 2, 2, 2, 2, 2}
	pos := 0
	for i, w := range widths {
		if pos >= len(ts) {
			break
		}
		n, err := strconv.Atoi(ts[pos : pos+w])
		if err != nil {
			return "", fmt.Errorf("non-numeric timestamp %q", ts)
		}
		parts[i] = n
		pos += w
	}

	t := time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5], 0, time.UTC)
	if t.Year() != parts[0] || int(t.Month()) != parts[1] || t.Day() != parts[2] {
		return "", fmt.Errorf("timestamp %q does not denote a calendar date", ts)
	}
	return t.Format(time.RFC3339), nil
}

func splitSegments(msg string) []string {
	raw := strings.FieldsFunc(msg, func(r rune) bool {
		return r == '\r' || r == '\n'
	})
	segments := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

func hl7Field(fields []string, i int) string {
	if i >= len(fields) {
		return ""
	}
	return fields[i]
}

func firstComponent(field string) string {
	comps := strings.SplitN(field, hl7ComponentSep, 2)
	return strings.TrimSpace(comps[0])
}
