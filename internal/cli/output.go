package cli

import (
	"encoding/json"
	"io"

	"github.com/eshaffer321/stripe-ledger-recon/internal/application/report"
	"github.com/eshaffer321/stripe-ledger-recon/internal/domain/records"
)

// printJSON writes v as a single line.
func printJSON(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

type matchesOutput struct {
	Matches    []report.MatchRow `json:"matches"`
	Count      int               `json:"count"`
	TotalCount int               `json:"total_count"`
}

type balancesOutput struct {
	Balances   []records.BalanceSummary `json:"balances"`
	Count      int                      `json:"count"`
	Mismatched int                      `json:"mismatched"`
}

func newBalancesOutput(rows []records.BalanceSummary) balancesOutput {
	if rows == nil {
		rows = []records.BalanceSummary{}
	}
	out := balancesOutput{Balances: rows, Count: len(rows)}
	for _, r := range rows {
		if r.Status == records.BalanceMismatch {
			out.Mismatched++
		}
	}
	return out
}
