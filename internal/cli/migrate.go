package cli

import (
	"github.com/spf13/cobra"

	"github.com/buralog/etl-healthcare/internal/repository"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := repository.Migrate(cfg.Database.URL); err != nil {
			return err
		}
		log.Info("migrations applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
