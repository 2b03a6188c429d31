package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/buralog/etl-healthcare/internal/handlers"
)

// NewRouter wires HTTP routes for the ingest receiver.
func NewRouter(h *handlers.IngestHandler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/records", h.Ingest)
	mux.HandleFunc("/healthz", h.Health)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// NewOpsRouter exposes only health and metrics; used by the queue-consumer
// services which have no API surface.
func NewOpsRouter() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
