package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/tallyledger/backend/internal/app"
	"github.com/tallyledger/backend/internal/models"
	"github.com/tallyledger/backend/internal/storage"
)

func newSeedChartCommand() *cobra.Command {
	var businessID string

	cmd := &cobra.Command{
		Use:   "seed-chart",
		Short: "Create the default chart of accounts for a business",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				return runSeedChart(cmd.Context(), a.Store, businessID, cmd.OutOrStdout())
			})
		},
	}

	cmd.Flags().StringVar(&businessID, "business", "", "business id (required)")
	_ = cmd.MarkFlagRequired("business")

	return cmd
}

// runSeedChart inserts the default accounts the business does not have yet,
// matched by code.
func runSeedChart(ctx context.Context, store storage.Store, businessID string, out io.Writer) error {
	created := 0
	err := store.WithTx(ctx, func(l storage.Ledger) error {
		existing, err := l.ListAccounts(ctx, businessID)
		if err != nil {
			return err
		}
		codes := make(map[string]bool, len(existing))
		for _, acc := range existing {
			codes[acc.Code] = true
		}

		for _, acc := range models.DefaultChart(businessID) {
			if codes[acc.Code] {
				continue
			}
			if err := l.InsertAccount(ctx, &acc); err != nil {
				return fmt.Errorf("inserting account %s: %w", acc.Code, err)
			}
			created++
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Created %d accounts for business %s\n", created, businessID)
	return nil
}
