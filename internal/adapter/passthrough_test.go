package adapter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buralog/etl-healthcare/internal/adapter"
	"github.com/buralog/etl-healthcare/internal/model"
	"github.com/buralog/etl-healthcare/internal/validator"
)

func newPassthroughAdapter() *adapter.PassthroughAdapter {
	return adapter.NewPassthroughAdapter(validator.NewDTOValidator())
}

var jsonParseCtx = adapter.ParseContext{TenantID: "tenant-1", SourceSystem: "emr-b"}

func TestPassthroughAdapter_SupportsEverything(t *testing.T) {
	a := newPassthroughAdapter()
	assert.True(t, a.Supports(model.FormatJSON))
	assert.True(t, a.Supports(model.FormatCSV))
	assert.True(t, a.Supports(model.FormatHL7v2))
}

func TestPassthroughAdapter_Parse_SingleRecord(t *testing.T) {
	payload := []byte(`{
		"schemaVersion": 1,
		"patientId": "pat-1",
		"code": "8867-4",
		"value": 72,
		"unit": "/min",
		"effectiveDateTime": "2024-02-15T10:00:00Z",
		"sourceSystem": "bedside"
	}`)

	dtos, report, err := newPassthroughAdapter().Parse(payload, jsonParseCtx)
	require.NoError(t, err)
	require.Len(t, dtos, 1)
	assert.Equal(t, 1, report.Parsed)
	assert.Equal(t, "bedside", dtos[0].SourceSystem, "explicit sourceSystem wins over envelope")
	assert.Equal(t, 72.0, dtos[0].Value)
}

func TestPassthroughAdapter_Parse_ArrayWithDefaults(t *testing.T) {
	payload := []byte(`[
		{"patientId":"pat-1","code":"8867-4","value":"72.5","unit":"/min","effectiveDateTime":"2024-02-15T10:00:00Z"},
		{"patientId":"pat-2","code":"8310-5","value":37.0,"unit":"Cel","effectiveDateTime":"2024-02-15T10:05:00Z"}
	]`)

	dtos, report, err := newPassthroughAdapter().Parse(payload, jsonParseCtx)
	require.NoError(t, err)
	require.Len(t, dtos, 2)
	assert.Equal(t, 2, report.Parsed)

	// Defaults applied: schema version and envelope source system.
	assert.Equal(t, model.ObservationSchemaVersion, dtos[0].SchemaVersion)
	assert.Equal(t, "emr-b", dtos[0].SourceSystem)
	// Numeric strings are coerced.
	assert.Equal(t, 72.5, dtos[0].Value)
}

func TestPassthroughAdapter_Parse_DropsInvalidRecordKeepsSiblings(t *testing.T) {
	payload := []byte(`[
		{"patientId":"pat-1","code":"8867-4","value":"not-a-number","unit":"/min","effectiveDateTime":"2024-02-15T10:00:00Z"},
		{"patientId":"pat-2","code":"8310-5","value":37.0,"unit":"Cel","effectiveDateTime":"2024-02-15T10:05:00Z"},
		{"patientId":"","code":"8310-5","value":36.5,"unit":"Cel","effectiveDateTime":"2024-02-15T10:06:00Z"}
	]`)

	dtos, report, err := newPassthroughAdapter().Parse(payload, jsonParseCtx)
	require.NoError(t, err)
	require.Len(t, dtos, 1)
	assert.Equal(t, "pat-2", dtos[0].PatientID)
	assert.Equal(t, 2, report.Dropped)
	assert.Equal(t, "record 1", report.Drops[0].Locator)
	assert.Equal(t, "record 3", report.Drops[1].Locator)
}

func TestPassthroughAdapter_Parse_MalformedPayloadFails(t *testing.T) {
	_, _, err := newPassthroughAdapter().Parse([]byte("[{"), jsonParseCtx)
	require.Error(t, err)

	_, _, err = newPassthroughAdapter().Parse([]byte("   "), jsonParseCtx)
	require.Error(t, err)
}
