package model

import "strings"

// Format identifies the source payload format. It is a closed set: adapter
// dispatch switches exhaustively over these values and unknown inputs always
// resolve to FormatJSON (the generic passthrough).
type Format int

const (
	FormatJSON Format = iota
	FormatCSV
	FormatHL7v2
)

// String returns the wire name of the format.
func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatHL7v2:
		return "hl7v2"
	default:
		return "json"
	}
}

// DetectFormat resolves the adapter format from a declared content type,
// falling back to the file name extension, then to the generic JSON format.
func DetectFormat(contentType, fileName string) Format {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}

	switch ct {
	case "text/csv", "application/csv":
		return FormatCSV
	case "x-application/hl7-v2+er7", "application/hl7-v2", "application/hl7-v2+er7":
		return FormatHL7v2
	case "application/json", "application/fhir+json":
		return FormatJSON
	}

	switch strings.ToLower(ext(fileName)) {
	case ".csv":
		return FormatCSV
	case ".hl7", ".er7":
		return FormatHL7v2
	}

	return FormatJSON
}

func ext(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i:]
	}
	return ""
}
