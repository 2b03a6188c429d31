package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/buralog/etl-healthcare/internal/logging"
	"github.com/buralog/etl-healthcare/internal/metrics"
	"github.com/buralog/etl-healthcare/internal/ratelimit"
	"github.com/buralog/etl-healthcare/internal/receiver"
)

// Request headers carrying submission metadata.
const (
	HeaderTenantID       = "X-Tenant-ID"
	HeaderSourceSystem   = "X-Source-System"
	HeaderIdempotencyKey = "X-Idempotency-Key"
	HeaderFileName       = "X-File-Name"
)

// IngestHandler manages the raw record upload endpoint.
type IngestHandler struct {
	service *receiver.Service
	limiter ratelimit.RateLimiter
	maxSize int64
	log     *logging.Logger
}

// NewIngestHandler constructs a new handler.
func NewIngestHandler(service *receiver.Service, limiter ratelimit.RateLimiter, maxSize int64, log *logging.Logger) *IngestHandler {
	return &IngestHandler{service: service, limiter: limiter, maxSize: maxSize, log: log}
}

// Ingest handles POST /api/v1/records requests. The body is the raw record
// payload; tenant, source, and idempotency key travel in headers.
func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	tenantID := r.Header.Get(HeaderTenantID)
	source := r.Header.Get(HeaderSourceSystem)
	if tenantID == "" || source == "" {
		writeError(w, http.StatusBadRequest, "missing_metadata",
			"X-Tenant-ID and X-Source-System headers are required")
		return
	}

	allowed, err := h.limiter.Allow(r.Context(), tenantID)
	if err != nil {
		// A broken limiter must not take ingestion down with it.
		h.log.WarnContext(r.Context(), "rate limiter unavailable", logging.Error(err))
		allowed = true
	}
	if !allowed {
		metrics.RateLimitHits.Inc()
		writeError(w, http.StatusTooManyRequests, "rate_limited", "ingest rate limit exceeded")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, h.maxSize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read_failed", err.Error())
		return
	}
	if int64(len(payload)) > h.maxSize {
		writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "payload exceeds configured maximum")
		return
	}

	receipt, err := h.service.Ingest(r.Context(), receiver.Submission{
		TenantID:       tenantID,
		Source:         source,
		ContentType:    r.Header.Get("Content-Type"),
		FileName:       r.Header.Get(HeaderFileName),
		IdempotencyKey: r.Header.Get(HeaderIdempotencyKey),
		Payload:        payload,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "ingest_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, receipt)
}

// Health handles GET /healthz.
func (h *IngestHandler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	type errorBody struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	writeJSON(w, status, errorBody{Code: code, Message: message})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method is not allowed")
}
