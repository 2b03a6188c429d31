package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/buralog/etl-healthcare/internal/blobstore"
	"github.com/buralog/etl-healthcare/internal/handlers"
	natsmsg "github.com/buralog/etl-healthcare/internal/messaging/nats"
	"github.com/buralog/etl-healthcare/internal/ratelimit"
	"github.com/buralog/etl-healthcare/internal/receiver"
	"github.com/buralog/etl-healthcare/internal/server"
	"github.com/buralog/etl-healthcare/internal/validator"
)

var receiverCmd = &cobra.Command{
	Use:   "receiver",
	Short: "Run the HTTP ingest receiver",
	Long: `The receiver accepts raw clinical record uploads, stages large
payloads in the blob store, and enqueues raw envelopes for normalization.`,
	RunE: runReceiver,
}

func init() {
	rootCmd.AddCommand(receiverCmd)
}

func runReceiver(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	js, err := natsmsg.NewJetStreamClient(natsConfig("healthetl-receiver"))
	if err != nil {
		return err
	}
	defer js.Close()

	if _, err := js.CreateOrUpdateStream(ctx, natsmsg.RecordsStream()); err != nil {
		return err
	}

	blobs, err := blobstore.NewRedisStore(cfg.Redis.URL, cfg.Receiver.BlobTTL)
	if err != nil {
		return fmt.Errorf("connect blob store: %w", err)
	}
	defer blobs.Close()

	limiter, err := ratelimit.NewRedisRateLimiter(cfg.Redis.URL,
		cfg.Receiver.RateLimitRequests, cfg.Receiver.RateLimitWindow,
		!cfg.Receiver.RateLimitEnabled)
	if err != nil {
		return fmt.Errorf("connect rate limiter: %w", err)
	}
	defer limiter.Close()

	svc := receiver.NewService(blobs, js, validator.NewEnvelopeValidator(), log)
	handler := handlers.NewIngestHandler(svc, limiter, cfg.Receiver.MaxRecordSize, log)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.NewRouter(handler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()
	log.Info("receiver listening", "addr", srv.Addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("receiver shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
