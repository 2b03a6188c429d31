// Package cli wires the healthetl services and tools behind one binary.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/buralog/etl-healthcare/internal/config"
	"github.com/buralog/etl-healthcare/internal/logging"
	natsmsg "github.com/buralog/etl-healthcare/internal/messaging/nats"
)

var (
	cfgFile string
	cfg     *config.Config
	log     *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "healthetl",
	Short: "Clinical record ETL pipeline",
	Long: `healthetl ingests clinical records in CSV, HL7v2, and JSON formats,
normalizes them into FHIR-shaped observation events, and persists them
idempotently into a keyed store.

Each subcommand runs one pipeline service; all services share one
configuration file.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log = logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
		logging.SetDefault(log)
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ./config.yaml or /etc/healthetl/config.yaml)")
}

// natsConfig builds the client config for one service from shared settings.
func natsConfig(name string) natsmsg.Config {
	c := natsmsg.DefaultConfig()
	c.Name = name
	c.URL = cfg.NATS.URL
	c.MaxReconnects = cfg.NATS.MaxReconnects
	if cfg.NATS.ReconnectWait > 0 {
		c.ReconnectWait = cfg.NATS.ReconnectWait
	}
	return c
}

// shutdownTimeout bounds graceful HTTP server shutdown.
const shutdownTimeout = 10 * time.Second
