// Package balance compares Stripe's net balance movements with the posted
// balances of the ledger accounts that hold Stripe money.
//
// Net amounts of balance events are attributed to a ledger by following the
// started ledger transaction that references the event's balance transaction
// id. They are summed per (ledger, currency) and compared with each
// allow-listed account of the same ledger and currency.
//
// Bad numeric data never aborts a run: the offending event or account is left
// out and reported as a *records.SoftDataError.
package balance

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/stripe-ledger-recon/internal/domain/records"
)

// Config holds aggregator settings.
type Config struct {
	// Tolerance is the exclusive bound on |difference| for a match. Default: 0.01.
	Tolerance decimal.Decimal
}

// DefaultTolerance is one cent.
var DefaultTolerance = decimal.New(1, -2)

// DefaultConfig returns the standard tolerance.
func DefaultConfig() Config {
	return Config{Tolerance: DefaultTolerance}
}

// Result is the output of one aggregation.
type Result struct {
	Summaries     []records.BalanceSummary `json:"summaries"`
	SoftErrors    []*records.SoftDataError `json:"-"`
	DroppedEvents int                      `json:"dropped_events"`
}

// Matched counts summaries within tolerance.
func (r *Result) Matched() int {
	n := 0
	for _, s := range r.Summaries {
		if s.Status == records.BalanceMatch {
			n++
		}
	}
	return n
}

// Aggregator computes balance summaries.
type Aggregator struct {
	config Config
	logger *slog.Logger
}

// NewAggregator creates an aggregator. A zero tolerance falls back to the default.
func NewAggregator(config Config, logger *slog.Logger) *Aggregator {
	if config.Tolerance.IsZero() {
		config.Tolerance = DefaultTolerance
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{config: config, logger: logger}
}

type groupKey struct {
	ledgerID string
	currency string
}

// Reconcile builds one summary per allow-listed account, in account input
// order. The caller passes accounts already restricted to the allow-list and
// ledger transactions already restricted to started candidates.
func (a *Aggregator) Reconcile(
	events []records.StripeBalanceEvent,
	startedLedger []records.LedgerTransaction,
	accounts []records.LedgerAccount,
) *Result {
	result := &Result{Summaries: []records.BalanceSummary{}}

	byTrx := make(map[string][]records.LedgerTransaction, len(startedLedger))
	for _, tx := range startedLedger {
		if trx, ok := records.Text(tx.Metadata.StripeBalanceTrxID); ok {
			byTrx[trx] = append(byTrx[trx], tx)
		}
	}

	sums := make(map[groupKey]decimal.Decimal)
	for _, ev := range events {
		raw, ok := records.Text(ev.Net)
		if !ok {
			result.DroppedEvents++
			continue
		}
		net, err := records.ParseDecimal(raw)
		if err != nil {
			a.soft(result, &records.SoftDataError{
				Record: "stripe_balance_event", ID: ev.BalanceTransactionID, Field: "net", Value: raw, Err: err,
			})
			continue
		}
		currency, ok := records.Text(ev.Currency)
		if !ok {
			result.DroppedEvents++
			continue
		}
		// Every linked ledger transaction contributes, as an inner join would.
		for _, tx := range byTrx[ev.BalanceTransactionID] {
			ledgerID, ok := records.Text(tx.LedgerID)
			if !ok {
				continue
			}
			k := groupKey{ledgerID: ledgerID, currency: records.NormalizeCurrency(currency)}
			sums[k] = sums[k].Add(net)
		}
	}

	seen := make(map[groupKey]struct{}, len(accounts))
	for _, acct := range accounts {
		ledgerID, ok := records.Text(acct.LedgerID)
		if !ok {
			continue
		}
		currency, ok := records.Text(acct.Currency)
		if !ok {
			continue
		}
		rawPosted, ok := records.Text(acct.PostedBalance)
		if !ok {
			continue
		}
		posted, err := records.ParseDecimal(rawPosted)
		if err != nil {
			a.soft(result, &records.SoftDataError{
				Record: "ledger_account", ID: acct.ID, Field: "posted_balance", Value: rawPosted, Err: err,
			})
			continue
		}

		k := groupKey{ledgerID: ledgerID, currency: records.NormalizeCurrency(currency)}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}

		net := sums[k]
		diff := net.Sub(posted)
		status := records.BalanceMismatch
		if diff.Abs().LessThan(a.config.Tolerance) {
			status = records.BalanceMatch
		}
		result.Summaries = append(result.Summaries, records.BalanceSummary{
			LedgerID:         ledgerID,
			AccountName:      acct.Name,
			Currency:         k.currency,
			StripeNetBalance: net,
			PostedBalance:    posted,
			Difference:       diff,
			Status:           status,
		})
	}

	a.logger.Debug("balance aggregation complete",
		"events", len(events),
		"accounts", len(accounts),
		"summaries", len(result.Summaries),
		"soft_errors", len(result.SoftErrors),
		"dropped_events", result.DroppedEvents)

	return result
}

func (a *Aggregator) soft(result *Result, err *records.SoftDataError) {
	result.SoftErrors = append(result.SoftErrors, err)
	a.logger.Warn("skipping row with unusable value",
		"record", err.Record, "id", err.ID, "field", err.Field, "value", err.Value)
}
