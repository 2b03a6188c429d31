package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/spf13/cobra"

	"github.com/buralog/etl-healthcare/internal/adapter"
	"github.com/buralog/etl-healthcare/internal/audit"
	"github.com/buralog/etl-healthcare/internal/blobstore"
	"github.com/buralog/etl-healthcare/internal/config"
	"github.com/buralog/etl-healthcare/internal/dlq"
	"github.com/buralog/etl-healthcare/internal/messaging"
	natsmsg "github.com/buralog/etl-healthcare/internal/messaging/nats"
	"github.com/buralog/etl-healthcare/internal/pipeline"
	"github.com/buralog/etl-healthcare/internal/runner"
	"github.com/buralog/etl-healthcare/internal/validator"
)

var normalizerCmd = &cobra.Command{
	Use:   "normalizer",
	Short: "Run the normalization workers",
	Long: `The normalizer consumes raw envelopes, parses each payload with the
matching format adapter, validates and maps the records, and emits
normalized observation events.`,
	RunE: runNormalizer,
}

func init() {
	rootCmd.AddCommand(normalizerCmd)
}

func runNormalizer(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	js, err := natsmsg.NewJetStreamClient(natsConfig("healthetl-normalizer"))
	if err != nil {
		return err
	}
	defer js.Close()

	if _, err := js.CreateOrUpdateStream(ctx, natsmsg.RecordsStream()); err != nil {
		return err
	}

	deadLetters, err := dlq.NewQueue(ctx, js)
	if err != nil {
		return err
	}

	blobs, err := blobstore.NewRedisStore(cfg.Redis.URL, cfg.Receiver.BlobTTL)
	if err != nil {
		return fmt.Errorf("connect blob store: %w", err)
	}
	defer blobs.Close()

	dtos := validator.NewDTOValidator()
	registry := adapter.NewRegistry(
		adapter.NewCSVAdapter(dtos),
		adapter.NewHL7Adapter(dtos),
		adapter.NewPassthroughAdapter(dtos),
	)

	// Audit notifications ride the core connection; they are advisory and
	// must not consume work-queue durability.
	auditor := audit.NewNotifier(js.Client, log, audit.DefaultTimeout)

	orc := pipeline.NewOrchestrator(
		registry,
		validator.NewEnvelopeValidator(),
		validator.NewResourceValidator(),
		blobs,
		js,
		auditor,
		log,
	)

	consumer, err := createStageConsumer(ctx, js,
		messaging.ConsumerNormalizer, messaging.SubjectRawRecords,
		cfg.Normalizer.Consumer)
	if err != nil {
		return err
	}

	stopOps := startOpsServer(cfg.Normalizer.OpsPort)
	defer stopOps()

	run := runner.New(consumer, runner.NormalizeProcessor(orc), deadLetters, runner.Config{
		Stage:       "normalize",
		BatchSize:   cfg.Normalizer.Consumer.BatchSize,
		FetchWait:   cfg.Normalizer.Consumer.FetchWait,
		BatchBudget: cfg.Normalizer.Consumer.BatchBudget,
		MaxDeliver:  cfg.Normalizer.Consumer.MaxDeliver,
	}, log)

	return run.Run(ctx)
}

// createStageConsumer provisions the durable pull consumer for one stage,
// keeping the broker-side delivery bound in sync with the consume loop's.
func createStageConsumer(ctx context.Context, js *natsmsg.JetStreamClient, name, subject string, cc config.ConsumerConfig) (jetstream.Consumer, error) {
	consumerCfg := natsmsg.DefaultConsumerConfig(name, subject)
	if cc.MaxDeliver > 0 {
		consumerCfg.MaxDeliver = cc.MaxDeliver
	}
	return js.CreateConsumer(ctx, messaging.StreamRecords, consumerCfg)
}
