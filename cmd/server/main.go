package main

import (
	"fmt"
	"os"

	"content-market/internal/config"
	"content-market/internal/database"
	"content-market/pkg/logging"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "content-market",
		Short:         "Pay-per-content and subscription marketplace backend",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Initialize configuration
			if err := config.InitConfig(); err != nil {
				return fmt.Errorf("failed to initialize config: %w", err)
			}

			// Initialize logging
			logging.InitLogging(config.AppConfig.LogLevel)

			// Initialize database
			if err := database.InitDatabase(); err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return database.CloseDatabase()
		},
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(drainCmd())
	rootCmd.AddCommand(retryCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(statsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
