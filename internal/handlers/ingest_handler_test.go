package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buralog/etl-healthcare/internal/blobstore"
	"github.com/buralog/etl-healthcare/internal/handlers"
	"github.com/buralog/etl-healthcare/internal/logging"
	"github.com/buralog/etl-healthcare/internal/messaging"
	"github.com/buralog/etl-healthcare/internal/model"
	"github.com/buralog/etl-healthcare/internal/receiver"
	"github.com/buralog/etl-healthcare/internal/validator"
)

type capturePublisher struct {
	mu   sync.Mutex
	msgs [][]byte
	err  error
}

func (p *capturePublisher) Publish(ctx context.Context, subject string, data []byte) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, append([]byte(nil), data...))
	return nil
}

func (p *capturePublisher) Close() error { return nil }

type stubLimiter struct {
	allowed bool
	err     error
}

func (l *stubLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return l.allowed, l.err
}

func (l *stubLimiter) Close() error { return nil }

func newTestHandler(pub messaging.Publisher, limiter *stubLimiter, maxSize int64) *handlers.IngestHandler {
	log := logging.New(slog.LevelError+4, "text")
	svc := receiver.NewService(blobstore.NewMemoryStore(), pub, validator.NewEnvelopeValidator(), log)
	return handlers.NewIngestHandler(svc, limiter, maxSize, log)
}

func postRecord(t *testing.T, h *handlers.IngestHandler, headers map[string]string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/records", bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.Ingest(rec, req)
	return rec
}

func TestIngestHandler_AcceptsRecord(t *testing.T) {
	pub := &capturePublisher{}
	h := newTestHandler(pub, &stubLimiter{allowed: true}, 1024)

	rec := postRecord(t, h, map[string]string{
		"X-Tenant-ID":     "tenant-1",
		"X-Source-System": "lab-a",
		"Content-Type":    "text/csv",
	}, []byte("patientId,code,value,unit,effectiveDateTime\npat-1,8867-4,72,/min,2024-02-15T10:00:00Z\n"))

	require.Equal(t, http.StatusAccepted, rec.Code)

	var receipt receiver.Receipt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &receipt))
	assert.NotEmpty(t, receipt.ID)
	assert.Len(t, receipt.ContentHash, 64)
	assert.Equal(t, receipt.ContentHash, receipt.IdempotencyKey,
		"default idempotency key is the content hash")
	assert.Equal(t, "csv", receipt.Format)

	require.Len(t, pub.msgs, 1)
	var env model.RawEnvelope
	require.NoError(t, json.Unmarshal(pub.msgs[0], &env))
	assert.Equal(t, model.SchemaRaw, env.Schema)
	assert.Equal(t, "tenant-1", env.Metadata.TenantID)
	assert.NotEmpty(t, env.Payload.Inline)
}

func TestIngestHandler_RequiresMetadataHeaders(t *testing.T) {
	h := newTestHandler(&capturePublisher{}, &stubLimiter{allowed: true}, 1024)

	rec := postRecord(t, h, map[string]string{"X-Source-System": "lab-a"}, []byte("x"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postRecord(t, h, map[string]string{"X-Tenant-ID": "tenant-1"}, []byte("x"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestHandler_RateLimited(t *testing.T) {
	h := newTestHandler(&capturePublisher{}, &stubLimiter{allowed: false}, 1024)

	rec := postRecord(t, h, map[string]string{
		"X-Tenant-ID":     "tenant-1",
		"X-Source-System": "lab-a",
	}, []byte("x"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestIngestHandler_BrokenLimiterFailsOpen(t *testing.T) {
	pub := &capturePublisher{}
	h := newTestHandler(pub, &stubLimiter{err: errors.New("redis down")}, 1024)

	rec := postRecord(t, h, map[string]string{
		"X-Tenant-ID":     "tenant-1",
		"X-Source-System": "lab-a",
	}, []byte(`{"patientId":"p"}`))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Len(t, pub.msgs, 1)
}

func TestIngestHandler_PayloadTooLarge(t *testing.T) {
	h := newTestHandler(&capturePublisher{}, &stubLimiter{allowed: true}, 8)

	rec := postRecord(t, h, map[string]string{
		"X-Tenant-ID":     "tenant-1",
		"X-Source-System": "lab-a",
	}, bytes.Repeat([]byte("a"), 9))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestIngestHandler_CustomIdempotencyKey(t *testing.T) {
	pub := &capturePublisher{}
	h := newTestHandler(pub, &stubLimiter{allowed: true}, 1024)

	rec := postRecord(t, h, map[string]string{
		"X-Tenant-ID":       "tenant-1",
		"X-Source-System":   "lab-a",
		"X-Idempotency-Key": "client-key-7",
	}, []byte(`{"patientId":"p"}`))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var receipt receiver.Receipt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &receipt))
	assert.Equal(t, "client-key-7", receipt.IdempotencyKey)
}

func TestIngestHandler_MethodNotAllowed(t *testing.T) {
	h := newTestHandler(&capturePublisher{}, &stubLimiter{allowed: true}, 1024)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/records", nil)
	rec := httptest.NewRecorder()
	h.Ingest(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
}

func TestIngestHandler_Health(t *testing.T) {
	h := newTestHandler(&capturePublisher{}, &stubLimiter{allowed: true}, 1024)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.Health(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
