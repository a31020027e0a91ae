package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/tallyledger/backend/internal/app"
	"github.com/tallyledger/backend/internal/services"
)

var errIntegrity = errors.New("ledger integrity check failed")

func newVerifyCommand() *cobra.Command {
	var businessID string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Recompute balances from journal entries and report drift",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				return runVerify(cmd.Context(), a.Ledger, businessID, cmd.OutOrStdout())
			})
		},
	}

	cmd.Flags().StringVar(&businessID, "business", "", "business id (required)")
	_ = cmd.MarkFlagRequired("business")

	return cmd
}

func runVerify(ctx context.Context, ledger *services.DoubleLedgerService, businessID string, out io.Writer) error {
	report, err := ledger.VerifyBalances(ctx, businessID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Accounts: %d\nDebits:   %s\nCredits:  %s\n",
		report.Accounts, report.TotalDebits.StringFixed(2), report.TotalCredits.StringFixed(2))
	for _, d := range report.Discrepancies {
		fmt.Fprintf(out, "DRIFT %s %s: recorded %s, journal %s\n",
			d.Code, d.Name, d.Recorded.StringFixed(2), d.Computed.StringFixed(2))
	}
	if !report.OK() {
		return errIntegrity
	}
	fmt.Fprintln(out, "OK")
	return nil
}
