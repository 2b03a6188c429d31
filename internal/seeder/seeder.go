// Package seeder generates synthetic clinical record payloads and submits
// them to a running receiver. Development and load-testing tool only; the
// generated values are fake.
package seeder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/buralog/etl-healthcare/internal/logging"
)

// observationCodes are common LOINC vital-sign codes with plausible ranges.
var observationCodes = []struct {
	code string
	unit string
	min  float64
	max  float64
}{
	{"8867-4", "/min", 45, 150},      // heart rate
	{"8480-6", "mm[Hg]", 90, 180},    // systolic blood pressure
	{"8462-4", "mm[Hg]", 55, 110},    // diastolic blood pressure
	{"8310-5", "Cel", 35.5, 40.5},    // body temperature
	{"2708-6", "%", 85, 100},         // oxygen saturation
	{"29463-7", "kg", 40, 140},       // body weight
	{"2339-0", "mg/dL", 60, 240},     // glucose
}

// Options controls generation and submission.
type Options struct {
	ReceiverURL string
	TenantID    string
	Source      string
	Format      string // csv, hl7, or json
	Batches     int
	RecordsPer  int
	Seed        int64
}

// Seeder generates and posts synthetic payloads.
type Seeder struct {
	faker  *gofakeit.Faker
	client *http.Client
	opts   Options
	log    *logging.Logger
}

// New constructs a seeder. A zero seed produces a random stream.
func New(opts Options, log *logging.Logger) *Seeder {
	if opts.Batches <= 0 {
		opts.Batches = 1
	}
	if opts.RecordsPer <= 0 {
		opts.RecordsPer = 10
	}
	return &Seeder{
		faker:  gofakeit.New(opts.Seed),
		client: &http.Client{Timeout: 10 * time.Second},
		opts:   opts,
		log:    log,
	}
}

// Run generates and submits all batches, returning on the first hard error.
func (s *Seeder) Run(ctx context.Context) error {
	for i := 0; i < s.opts.Batches; i++ {
		payload, contentType, err := s.generate()
		if err != nil {
			return err
		}
		if err := s.submit(ctx, payload, contentType); err != nil {
			return fmt.Errorf("batch %d: %w", i+1, err)
		}
		s.log.InfoContext(ctx, "seed batch submitted",
			logging.Tenant(s.opts.TenantID),
			logging.Format(s.opts.Format),
			"batch", i+1,
			"records", s.opts.RecordsPer,
		)
	}
	return nil
}

func (s *Seeder) generate() ([]byte, string, error) {
	switch s.opts.Format {
	case "csv":
		return s.generateCSV(), "text/csv", nil
	case "hl7":
		return s.generateHL7(), "x-application/hl7-v2+er7", nil
	case "json":
		return s.generateJSON(), "application/json", nil
	default:
		return nil, "", fmt.Errorf("unknown format %q (want csv, hl7, or json)", s.opts.Format)
	}
}

func (s *Seeder) observation() (patientID, code, unit string, value float64, ts time.Time) {
	pick := observationCodes[s.faker.Number(0, len(observationCodes)-1)]
	patientID = fmt.Sprintf("pat-%s", s.faker.DigitN(6))
	value = s.faker.Float64Range(pick.min, pick.max)
	ts = s.faker.DateRange(time.Now().AddDate(0, -1, 0), time.Now()).UTC()
	return patientID, pick.code, pick.unit, value, ts
}

func (s *Seeder) generateCSV() []byte {
	var buf bytes.Buffer
	buf.WriteString("patientId,code,value,unit,effectiveDateTime\n")
	for i := 0; i < s.opts.RecordsPer; i++ {
		patientID, code, unit, value, ts := s.observation()
		fmt.Fprintf(&buf, "%s,%s,%.1f,%s,%s\n",
			patientID, code, value, unit, ts.Format(time.RFC3339))
	}
	return buf.Bytes()
}

func (s *Seeder) generateHL7() []byte {
	var segments []string
	patientID, _, _, _, ts := s.observation()
	segments = append(segments,
		fmt.Sprintf("MSH|^~\\&|%s|%s|||%s||ORU^R01|%s|P|2.5",
			s.opts.Source, s.faker.Company(), ts.Format("20060102150405"), s.faker.UUID()),
		fmt.Sprintf("PID|1||%s^^^MRN||%s^%s", patientID, s.faker.LastName(), s.faker.FirstName()),
	)
	for i := 0; i < s.opts.RecordsPer; i++ {
		_, code, unit, value, obsTS := s.observation()
		segments = append(segments,
			fmt.Sprintf("OBX|%d|NM|%s||%.1f|%s|||||F|||%s",
				i+1, code, value, unit, obsTS.Format("20060102150405")))
	}
	return []byte(strings.Join(segments, "\r"))
}

func (s *Seeder) generateJSON() []byte {
	var buf bytes.Buffer
	buf.WriteString("[")
	for i := 0; i < s.opts.RecordsPer; i++ {
		if i > 0 {
			buf.WriteString(",")
		}
		patientID, code, unit, value, ts := s.observation()
		fmt.Fprintf(&buf,
			`{"schemaVersion":1,"patientId":%q,"code":%q,"value":%.1f,"unit":%q,"effectiveDateTime":%q}`,
			patientID, code, value, unit, ts.Format(time.RFC3339))
	}
	buf.WriteString("]")
	return buf.Bytes()
}

func (s *Seeder) submit(ctx context.Context, payload []byte, contentType string) error {
	url := strings.TrimRight(s.opts.ReceiverURL, "/") + "/api/v1/records"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Tenant-ID", s.opts.TenantID)
	req.Header.Set("X-Source-System", s.opts.Source)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post payload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("receiver returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
