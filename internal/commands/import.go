package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/tallyledger/backend/internal/app"
	"github.com/tallyledger/backend/internal/services"
)

func newImportCommand() *cobra.Command {
	var businessID string

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Bulk import transactions from a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening %s: %w", args[0], err)
			}
			defer f.Close()

			return withApp(cmd.Context(), func(a *app.App) error {
				return runImport(cmd.Context(), a.Importer, businessID, f, cmd.OutOrStdout())
			})
		},
	}

	cmd.Flags().StringVar(&businessID, "business", "", "business id (required)")
	_ = cmd.MarkFlagRequired("business")

	return cmd
}

func runImport(ctx context.Context, importer *services.ImportService, businessID string, r io.Reader, out io.Writer) error {
	result, err := importer.ImportCSV(ctx, businessID, r)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Imported %d transactions, %d failed\n", result.Succeeded, result.Failed)
	for _, msg := range result.Errors {
		fmt.Fprintf(out, "  %s\n", msg)
	}
	if result.Failed > 0 {
		return fmt.Errorf("%d rows were not imported", result.Failed)
	}
	return nil
}
