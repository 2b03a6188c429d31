// Package receiver implements the ingest entry point: it accepts raw
// payloads, stages them as content-addressed blobs, and emits the initial
// raw envelope onto the pipeline.
package receiver

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/buralog/etl-healthcare/internal/adapter"
	"github.com/buralog/etl-healthcare/internal/blobstore"
	"github.com/buralog/etl-healthcare/internal/logging"
	"github.com/buralog/etl-healthcare/internal/messaging"
	"github.com/buralog/etl-healthcare/internal/metrics"
	"github.com/buralog/etl-healthcare/internal/model"
	"github.com/buralog/etl-healthcare/internal/validator"
)

// inlineLimit is the payload size above which the envelope carries a blob
// reference instead of inline bytes. Small records travel with the message;
// large uploads are staged.
const inlineLimit = 16 * 1024

// Submission describes one raw record upload.
type Submission struct {
	TenantID       string
	Source         string
	ContentType    string
	FileName       string
	IdempotencyKey string
	Payload        []byte
}

// Receipt is returned to the caller once the record is durably enqueued.
// The id names this acceptance, not the record: resubmitting identical
// bytes yields a fresh id over the same content hash and idempotency key.
type Receipt struct {
	ID             string `json:"id"`
	ContentHash    string `json:"contentHash"`
	IdempotencyKey string `json:"idempotencyKey"`
	Format         string `json:"format"`
}

// Service builds and publishes raw envelopes.
type Service struct {
	blobs     blobstore.Store
	pub       messaging.Publisher
	envelopes *validator.EnvelopeValidator
	log       *logging.Logger
}

// NewService wires the ingest receiver.
func NewService(blobs blobstore.Store, pub messaging.Publisher, envelopes *validator.EnvelopeValidator, log *logging.Logger) *Service {
	return &Service{blobs: blobs, pub: pub, envelopes: envelopes, log: log}
}

// Ingest hashes the payload, stages it when large, validates the resulting
// envelope, and publishes it to the raw record subject. A nil error means
// the record is durably queued.
func (s *Service) Ingest(ctx context.Context, sub Submission) (*Receipt, error) {
	if len(sub.Payload) == 0 {
		return nil, fmt.Errorf("empty payload")
	}

	contentHash := adapter.ContentHash(sub.Payload)
	idempotencyKey := sub.IdempotencyKey
	if idempotencyKey == "" {
		// Absent a caller-supplied key, identical bytes share a key and
		// redeliveries collapse into no-ops downstream.
		idempotencyKey = contentHash
	}

	payload := model.RawPayload{
		ContentType: sub.ContentType,
		FileName:    sub.FileName,
	}
	if len(sub.Payload) <= inlineLimit {
		payload.Inline = sub.Payload
	} else {
		key, err := s.blobs.Put(ctx, sub.Payload, sub.ContentType)
		if err != nil {
			return nil, fmt.Errorf("stage payload: %w", err)
		}
		payload.BlobKey = key
	}

	envelope := model.RawEnvelope{
		Schema: model.SchemaRaw,
		Metadata: model.RawMetadata{
			TenantID:       sub.TenantID,
			Source:         sub.Source,
			IngestedAt:     time.Now().UTC().Format(time.RFC3339),
			IdempotencyKey: idempotencyKey,
			ContentHash:    contentHash,
		},
		Payload: payload,
	}

	if res := s.envelopes.ValidateRaw(&envelope); !res.OK() {
		return nil, fmt.Errorf("raw envelope invalid: %w", res.Error())
	}

	if err := messaging.PublishJSON(ctx, s.pub, messaging.SubjectRawRecords, envelope); err != nil {
		return nil, fmt.Errorf("publish raw envelope: %w", err)
	}

	format := model.DetectFormat(sub.ContentType, sub.FileName)
	metrics.RecordsReceived.WithLabelValues(sub.TenantID, format.String()).Inc()
	metrics.RecordBytesReceived.Add(float64(len(sub.Payload)))

	s.log.InfoContext(ctx, "raw record accepted",
		logging.Tenant(sub.TenantID),
		logging.Source(sub.Source),
		logging.Format(format.String()),
	)

	return &Receipt{
		ID:             uuid.New().String(),
		ContentHash:    contentHash,
		IdempotencyKey: idempotencyKey,
		Format:         format.String(),
	}, nil
}
