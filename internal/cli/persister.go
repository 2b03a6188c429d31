package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/buralog/etl-healthcare/internal/audit"
	"github.com/buralog/etl-healthcare/internal/dlq"
	"github.com/buralog/etl-healthcare/internal/messaging"
	natsmsg "github.com/buralog/etl-healthcare/internal/messaging/nats"
	"github.com/buralog/etl-healthcare/internal/persistence"
	"github.com/buralog/etl-healthcare/internal/repository"
	"github.com/buralog/etl-healthcare/internal/runner"
	"github.com/buralog/etl-healthcare/internal/validator"
)

var persisterCmd = &cobra.Command{
	Use:   "persister",
	Short: "Run the persistence workers",
	Long: `The persister consumes normalized observation events, writes them
into the keyed store through idempotent conditional upserts, and emits
persisted confirmations.`,
	RunE: runPersister,
}

func init() {
	rootCmd.AddCommand(persisterCmd)
}

func runPersister(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	js, err := natsmsg.NewJetStreamClient(natsConfig("healthetl-persister"))
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

	repo, err := repository.NewPostgresRepository(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect store: %w", err)
	}
	defer repo.Close()

	auditor := audit.NewNotifier(js.Client, log, audit.DefaultTimeout)

	engine := persistence.NewEngine(
		repo,
		validator.NewEnvelopeValidator(),
		js,
		auditor,
		log,
	)

	consumer, err := createStageConsumer(ctx, js,
		messaging.ConsumerPersister, messaging.SubjectNormalizedRecords,
		cfg.Persister.Consumer)
	if err != nil {
		return err
	}

	stopOps := startOpsServer(cfg.Persister.OpsPort)
	defer stopOps()

	run := runner.New(consumer, runner.PersistProcessor(engine), deadLetters, runner.Config{
		Stage:       "persist",
		BatchSize:   cfg.Persister.Consumer.BatchSize,
		FetchWait:   cfg.Persister.Consumer.FetchWait,
		BatchBudget: cfg.Persister.Consumer.BatchBudget,
		MaxDeliver:  cfg.Persister.Consumer.MaxDeliver,
	}, log)

	return run.Run(ctx)
}
