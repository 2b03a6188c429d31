package cli

import (
	"github.com/spf13/cobra"

	"github.com/buralog/etl-healthcare/internal/seeder"
)

var seedOpts seeder.Options

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Submit synthetic records to a running receiver",
	Long: `Generates fake observation payloads in the chosen format and posts
them to the receiver. Development and load-testing tool only.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return seeder.New(seedOpts, log).Run(cmd.Context())
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedOpts.ReceiverURL, "url", "http://localhost:8090", "receiver base URL")
	seedCmd.Flags().StringVar(&seedOpts.TenantID, "tenant", "demo", "tenant identifier")
	seedCmd.Flags().StringVar(&seedOpts.Source, "source", "seeder", "source system identifier")
	seedCmd.Flags().StringVar(&seedOpts.Format, "format", "csv", "payload format: csv, hl7, or json")
	seedCmd.Flags().IntVar(&seedOpts.Batches, "batches", 1, "number of payloads to submit")
	seedCmd.Flags().IntVar(&seedOpts.RecordsPer, "records", 10, "records per payload")
	seedCmd.Flags().Int64Var(&seedOpts.Seed, "seed", 0, "random seed (0 for random)")
	rootCmd.AddCommand(seedCmd)
}
