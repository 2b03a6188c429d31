package adapter

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/buralog/etl-healthcare/internal/model"
	"github.com/buralog/etl-healthcare/internal/validator"
)

// Named header columns a lab-result CSV must carry. Column order is free;
// extra columns are ignored.
var csvColumns = []string{"patientId", "code", "value", "unit", "effectiveDateTime"}

// CSVAdapter parses header-qualified delimited lab-result files. A row that
// fails to parse or validate is dropped and counted; it never aborts the
// remaining rows.
type CSVAdapter struct {
	dto *validator.DTOValidator
}

// NewCSVAdapter constructs the CSV adapter.
func NewCSVAdapter(dto *validator.DTOValidator) *CSVAdapter {
	return &CSVAdapter{dto: dto}
}

// Supports reports true for the CSV format.
func (a *CSVAdapter) Supports(f model.Format) bool {
	return f == model.FormatCSV
}

// Parse reads the header row, then builds one DTO candidate per data row.
func (a *CSVAdapter) Parse(payload []byte, pc ParseContext) ([]model.ObservationDTO, *ParseReport, error) {
	reader := csv.NewReader(bytes.NewReader(payload))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read csv header: %w", err)
	}

	index, err := csvHeaderIndex(header)
	if err != nil {
		return nil, nil, err
	}

	report := &ParseReport{}
	var dtos []model.ObservationDTO

	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		locator := fmt.Sprintf("line %d", line)
		if err != nil {
			report.drop(locator, fmt.Sprintf("malformed row: %v", err))
			continue
		}

		dto, err := a.rowToDTO(row, index, pc)
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

func (a *CSVAdapter) rowToDTO(row []string, index map[string]int, pc ParseContext) (*model.ObservationDTO, error) {
	field := func(name string) string {
		i := index[name]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	value, err := strconv.ParseFloat(field("value"), 64)
	if err != nil {
		return nil, fmt.Errorf("value %q is not numeric", field("value"))
	}

	// Hash over the reassembled row for traceability of individual results.
	// Joining on NUL keeps a quoted comma inside a field from colliding
	// with a field boundary.
	raw := strings.Join(row, "\x00")

	return &model.ObservationDTO{
		SchemaVersion:     model.ObservationSchemaVersion,
		PatientID:         field("patientId"),
		Code:              field("code"),
		Value:             value,
		Unit:              field("unit"),
		EffectiveDateTime: field("effectiveDateTime"),
		SourceSystem:      pc.SourceSystem,
		IngestHash:        ContentHash([]byte(raw)),
	}, nil
}

func csvHeaderIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	for _, name := range csvColumns {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("csv header missing column %q", name)
		}
	}
	return index, nil
}
