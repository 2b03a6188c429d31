package receiver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buralog/etl-healthcare/internal/blobstore"
	"github.com/buralog/etl-healthcare/internal/logging"
	"github.com/buralog/etl-healthcare/internal/model"
	"github.com/buralog/etl-healthcare/internal/receiver"
	"github.com/buralog/etl-healthcare/internal/validator"
)

type capturePublisher struct {
	mu       sync.Mutex
	subjects []string
	msgs     [][]byte
}

func (p *capturePublisher) Publish(ctx context.Context, subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	p.msgs = append(p.msgs, append([]byte(nil), data...))
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func newTestService(blobs blobstore.Store, pub *capturePublisher) *receiver.Service {
	return receiver.NewService(blobs, pub, validator.NewEnvelopeValidator(),
		logging.New(slog.LevelError+4, "text"))
}

func TestService_Ingest_SmallPayloadTravelsInline(t *testing.T) {
	pub := &capturePublisher{}
	svc := newTestService(blobstore.NewMemoryStore(), pub)

	payload := []byte(`{"patientId":"pat-1"}`)
	receipt, err := svc.Ingest(context.Background(), receiver.Submission{
		TenantID:    "tenant-1",
		Source:      "lab-a",
		ContentType: "application/json",
		Payload:     payload,
	})
	require.NoError(t, err)
	assert.Equal(t, "json", receipt.Format)

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "records.raw", pub.subjects[0])

	var env model.RawEnvelope
	require.NoError(t, json.Unmarshal(pub.msgs[0], &env))
	assert.Equal(t, payload, env.Payload.Inline)
	assert.Empty(t, env.Payload.BlobKey)
	assert.Equal(t, receipt.ContentHash, env.Metadata.ContentHash)
}

func TestService_Ingest_LargePayloadIsStaged(t *testing.T) {
	pub := &capturePublisher{}
	blobs := blobstore.NewMemoryStore()
	svc := newTestService(blobs, pub)

	payload := bytes.Repeat([]byte("x"), 64*1024)
	_, err := svc.Ingest(context.Background(), receiver.Submission{
		TenantID:    "tenant-1",
		Source:      "lab-a",
		ContentType: "text/csv",
		Payload:     payload,
	})
	require.NoError(t, err)

	var env model.RawEnvelope
	require.Len(t, pub.msgs, 1)
	require.NoError(t, json.Unmarshal(pub.msgs[0], &env))
	assert.Empty(t, env.Payload.Inline)
	require.NotEmpty(t, env.Payload.BlobKey)

	blob, err := blobs.Get(context.Background(), env.Payload.BlobKey)
	require.NoError(t, err)
	assert.Equal(t, payload, blob.Data)
	assert.Equal(t, "text/csv", blob.ContentType)
}

func TestService_Ingest_EmptyPayloadRejected(t *testing.T) {
	svc := newTestService(blobstore.NewMemoryStore(), &capturePublisher{})

	_, err := svc.Ingest(context.Background(), receiver.Submission{
		TenantID: "tenant-1",
		Source:   "lab-a",
	})
	require.Error(t, err)
}

func TestService_Ingest_DeterministicReceipt(t *testing.T) {
	pub := &capturePublisher{}
	svc := newTestService(blobstore.NewMemoryStore(), pub)

	sub := receiver.Submission{
		TenantID:    "tenant-1",
		Source:      "lab-a",
		ContentType: "application/json",
		Payload:     []byte(`{"patientId":"pat-1"}`),
	}

	first, err := svc.Ingest(context.Background(), sub)
	require.NoError(t, err)
	second, err := svc.Ingest(context.Background(), sub)
	require.NoError(t, err)

	assert.Equal(t, first.ContentHash, second.ContentHash)
	assert.Equal(t, first.IdempotencyKey, second.IdempotencyKey,
		"identical bytes share the derived key")
	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID, "each acceptance gets its own receipt id")
}
