package cmd

import (
	"github.com/chepyr/team-kanban/internal/logger"
	"github.com/chepyr/team-kanban/tasks-service/db"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create missing tables and indexes, then exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := logger.NewLogger(serviceName, cfg.Env)
		defer log.Sync()

		dbConn, err := db.Connect(cmd.Context(), cfg.DBDriver, cfg.DSN)
		if err != nil {
			return err
		}
		defer dbConn.Close()

		if err := db.Migrate(cmd.Context(), dbConn); err != nil {
			return err
		}
		log.Info("schema is up to date", "driver", cfg.DBDriver)
		return nil
	},
}
