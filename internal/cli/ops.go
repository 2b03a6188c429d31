package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/buralog/etl-healthcare/internal/server"
)

// startOpsServer serves health and metrics for the queue-consumer services.
// The returned function shuts the server down.
func startOpsServer(port int) func() {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: server.NewOpsRouter(),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("ops server failed", "error", err)
		}
	}()
	log.Info("ops server listening", "addr", srv.Addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
