package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eshaffer321/stripe-ledger-recon/internal/application/report"
	"github.com/eshaffer321/stripe-ledger-recon/internal/domain/records"
)

func newBalancesCommand(a *app) *cobra.Command {
	var status, format string

	cmd := &cobra.Command{
		Use:   "balances",
		Short: "List the stored balance summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			st := records.BalanceStatus(status)
			switch st {
			case "", records.BalanceMatch, records.BalanceMismatch:
			default:
				return fmt.Errorf("invalid status %q: want match or mismatch", status)
			}

			store, err := a.openStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			rows, err := store.ListBalanceSummaries(cmd.Context(), st)
			if err != nil {
				return fmt.Errorf("list balances: %w", err)
			}
			if outFormat == report.FormatCSV {
				return report.WriteBalancesCSV(cmd.OutOrStdout(), rows)
			}
			return printJSON(cmd.OutOrStdout(), newBalancesOutput(rows))
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "only rows with this status: match or mismatch")
	cmd.Flags().StringVar(&format, "format", report.FormatJSON, "output format: json or csv")
	return cmd
}
