package cmd

import (
	"context"

	"github.com/chepyr/team-kanban/tasks-service/config"
	"github.com/spf13/cobra"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "tasks-service",
	Short: "Team kanban task service",
	Long: `tasks-service serves team boards and tasks over HTTP and pushes board
changes to websocket subscribers. Without a subcommand it runs the server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file read before the environment")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

// Execute runs the command line; ctx is cancelled on shutdown signals.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func loadConfig() (*config.Config, error) {
	return config.Load(envFile)
}
