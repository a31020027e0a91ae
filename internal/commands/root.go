package commands

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/tallyledger/backend/internal/app"
	"github.com/tallyledger/backend/internal/config"
)

// NewRootCommand creates the ledgerctl command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	var envFile string

	rootCmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Administer the double-entry ledger",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.InitViper(envFile)
		},
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "environment file with connection settings")

	rootCmd.AddCommand(newMigrateCommand())
	rootCmd.AddCommand(newSeedChartCommand())
	rootCmd.AddCommand(newImportCommand())
	rootCmd.AddCommand(newVerifyCommand())

	return rootCmd
}

func withApp(ctx context.Context, fn func(*app.App) error) error {
	a, err := app.Open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
