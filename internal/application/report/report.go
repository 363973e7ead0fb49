// Package report shapes stored reconciliation results for people: the flat
// match view, CSV export and the filter parsing shared by the API and CLI.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/eshaffer321/stripe-ledger-recon/internal/domain/records"
	"github.com/eshaffer321/stripe-ledger-recon/internal/infrastructure/storage"
)

// DateLayout is the layout of date_from / date_to filters.
const DateLayout = time.DateOnly

// Formats understood by the match and balance listings.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// ParseFormat validates an output format. Empty means JSON.
func ParseFormat(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	}
	return "", fmt.Errorf("unknown format %q: want json or csv", s)
}

// FilterParams are the raw, user-supplied match filters.
type FilterParams struct {
	Pass           string `json:"match_type"`
	Classification string `json:"classification"`
	DateFrom       string `json:"date_from"`
	DateTo         string `json:"date_to"`
	Limit          int    `json:"limit"`
	Offset         int    `json:"offset"`
}

// MatchFilters validates the params. Both dates are whole days and inclusive.
func (p FilterParams) MatchFilters() (storage.MatchFilters, error) {
	var f storage.MatchFilters
	var err error

	if p.Pass != "" {
		if f.Pass, err = records.ParsePass(p.Pass); err != nil {
			return f, err
		}
	}
	if p.Classification != "" {
		if f.Classification, err = records.ParseClassification(p.Classification); err != nil {
			return f, err
		}
	}
	if p.DateFrom != "" {
		if f.From, err = time.Parse(DateLayout, p.DateFrom); err != nil {
			return f, fmt.Errorf("date_from %q: want YYYY-MM-DD", p.DateFrom)
		}
	}
	if p.DateTo != "" {
		to, err := time.Parse(DateLayout, p.DateTo)
		if err != nil {
			return f, fmt.Errorf("date_to %q: want YYYY-MM-DD", p.DateTo)
		}
		f.To = to.AddDate(0, 0, 1)
	}
	if !f.From.IsZero() && !f.To.IsZero() && !f.From.Before(f.To) {
		return f, fmt.Errorf("date_from %s is after date_to %s", p.DateFrom, p.DateTo)
	}
	if p.Limit < 0 || p.Offset < 0 {
		return f, fmt.Errorf("limit and offset must not be negative")
	}
	f.Limit = min(p.Limit, storage.DefaultMatchLimit)
	f.Offset = p.Offset
	return f, nil
}

// MatchRow is the flat view of a match record.
type MatchRow struct {
	Pass           string `json:"pass"`
	LedgerID       string `json:"ledger_id"`
	Description    string `json:"description"`
	LedgerStatus   string `json:"ledger_status"`
	Date           string `json:"date"`
	AmountUSD      string `json:"amount_usd"`
	Currency       string `json:"currency"`
	Type           string `json:"type"`
	StripeID       string `json:"stripe_id"`
	StripeStatus   string `json:"stripe_status"`
	StripeAmount   string `json:"stripe_amount"`
	Classification string `json:"match_status"`
}

var matchHeader = []string{
	"pass", "ledger_id", "description", "ledger_status", "date", "amount_usd",
	"currency", "type", "stripe_id", "stripe_status", "stripe_amount", "match_status",
}

func (r MatchRow) fields() []string {
	return []string{
		r.Pass, r.LedgerID, r.Description, r.LedgerStatus, r.Date, r.AmountUSD,
		r.Currency, r.Type, r.StripeID, r.StripeStatus, r.StripeAmount, r.Classification,
	}
}

// ToMatchRow flattens a match record. Absent values become "".
func ToMatchRow(r records.MatchRecord) MatchRow {
	row := MatchRow{Pass: string(r.Pass), Classification: string(r.Classification)}
	if t := r.SortTime(); t != nil {
		row.Date = t.UTC().Format(time.DateTime)
	}
	if l := r.Ledger; l != nil {
		row.LedgerID = l.ID
		row.Description = deref(l.Description)
		row.LedgerStatus = deref(l.Status)
		row.Currency = deref(l.CurrencyUSD)
		row.Type = deref(l.MetadataType)
		if l.AmountUSD.Valid {
			row.AmountUSD = l.AmountUSD.Decimal.String()
		}
	}
	if s := r.Stripe; s != nil {
		row.StripeID = s.ID
		row.StripeStatus = deref(s.Status)
		row.StripeAmount = s.Amount.String()
		if row.Currency == "" {
			row.Currency = deref(s.Currency)
		}
	}
	return row
}

// ToMatchRows flattens a slice of match records.
func ToMatchRows(rs []records.MatchRecord) []MatchRow {
	rows := make([]MatchRow, 0, len(rs))
	for _, r := range rs {
		rows = append(rows, ToMatchRow(r))
	}
	return rows
}

// WriteMatchesCSV writes a header and one line per record.
func WriteMatchesCSV(w io.Writer, rs []records.MatchRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(matchHeader); err != nil {
		return err
	}
	for _, r := range rs {
		if err := cw.Write(ToMatchRow(r).fields()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

var balanceHeader = []string{
	"ledger_id", "account_name", "currency", "stripe_net_balance", "posted_balance", "difference", "status",
}

// WriteBalancesCSV writes a header and one line per summary row.
func WriteBalancesCSV(w io.Writer, rows []records.BalanceSummary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(balanceHeader); err != nil {
		return err
	}
	for _, b := range rows {
		if err := cw.Write([]string{
			b.LedgerID, b.AccountName, b.Currency,
			b.StripeNetBalance.String(), b.PostedBalance.String(), b.Difference.String(),
			string(b.Status),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ParseLimit parses a non-negative integer, returning def for "".
func ParseLimit(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return n, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
