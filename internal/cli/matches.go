package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eshaffer321/stripe-ledger-recon/internal/application/report"
)

func newMatchesCommand(a *app) *cobra.Command {
	var (
		params  report.FilterParams
		filters string
		format  string
	)

	cmd := &cobra.Command{
		Use:   "matches",
		Short: "List stored match records, newest first",
		Example: `  recon matches --match-type started --classification ledger_only
  recon matches --filters '{"date_from":"2024-01-01","date_to":"2024-01-31"}' --format csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			if filters != "" {
				// flags given explicitly override the JSON filters
				var fromJSON report.FilterParams
				if err := json.Unmarshal([]byte(filters), &fromJSON); err != nil {
					return fmt.Errorf("parse --filters: %w", err)
				}
				mergeFilters(&fromJSON, params, cmd)
				params = fromJSON
			}
			mf, err := params.MatchFilters()
			if err != nil {
				return err
			}

			store, err := a.openStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			result, err := store.ListMatches(cmd.Context(), mf)
			if err != nil {
				return fmt.Errorf("list matches: %w", err)
			}

			if outFormat == report.FormatCSV {
				return report.WriteMatchesCSV(cmd.OutOrStdout(), result.Records)
			}
			rows := report.ToMatchRows(result.Records)
			return printJSON(cmd.OutOrStdout(), matchesOutput{Matches: rows, Count: len(rows), TotalCount: result.TotalCount})
		},
	}

	f := cmd.Flags()
	f.StringVar(&params.Pass, "match-type", "", "pass to list: started or succeeded")
	f.StringVar(&params.Classification, "classification", "", "match, stripe_only or ledger_only")
	f.StringVar(&params.DateFrom, "date-from", "", "first day to include (YYYY-MM-DD)")
	f.StringVar(&params.DateTo, "date-to", "", "last day to include (YYYY-MM-DD)")
	f.StringVar(&filters, "filters", "", "filters as a JSON object (match_type, classification, date_from, date_to, limit, offset)")
	f.IntVar(&params.Limit, "limit", 0, "maximum rows (default 5000)")
	f.IntVar(&params.Offset, "offset", 0, "rows to skip")
	f.StringVar(&format, "format", report.FormatJSON, "output format: json or csv")
	return cmd
}

func mergeFilters(dst *report.FilterParams, flags report.FilterParams, cmd *cobra.Command) {
	changed := cmd.Flags().Changed
	if changed("match-type") {
		dst.Pass = flags.Pass
	}
	if changed("classification") {
		dst.Classification = flags.Classification
	}
	if changed("date-from") {
		dst.DateFrom = flags.DateFrom
	}
	if changed("date-to") {
		dst.DateTo = flags.DateTo
	}
	if changed("limit") {
		dst.Limit = flags.Limit
	}
	if changed("offset") {
		dst.Offset = flags.Offset
	}
}
