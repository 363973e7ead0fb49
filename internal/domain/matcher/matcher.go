// Package matcher pairs Stripe charges with ledger transactions.
//
// A pass joins on one key:
//   - started:   stripe id                == ledger metadata.latestStripeChargeId
//   - succeeded: stripe payment_intent_id == ledger metadata.paymentId
//
// Every stripe transaction yields exactly one record, Match or StripeOnly.
// Ledger candidates that no stripe transaction claimed follow as LedgerOnly.
// When several ledger candidates share a key the one earliest in input order
// wins and the collision is reported as a JoinAmbiguity.
//
// Example usage:
//
//	m := matcher.NewMatcher(logger)
//	result, err := m.Match(records.PassStarted, stripeTxns, ledgerTxns)
//	if err != nil {
//		// a record could not be converted; nothing was produced
//	}
//	fmt.Println(result.Stats.Match)
package matcher

import (
	"fmt"
	"log/slog"

	"github.com/eshaffer321/stripe-ledger-recon/internal/domain/records"
)

// Matcher runs matcher passes. It holds no state between calls.
type Matcher struct {
	logger *slog.Logger
}

// NewMatcher creates a matcher. A nil logger uses slog.Default().
func NewMatcher(logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{logger: logger}
}

// Match classifies stripe and ledger records for one pass.
// Inputs are expected to be filtered already (Paid charges, pass candidates).
// Any record that fails strict conversion aborts the pass with a
// *records.InputError and no partial result.
func (m *Matcher) Match(
	pass records.Pass,
	stripe []records.StripeTransaction,
	ledger []records.LedgerTransaction,
) (*Result, error) {
	stripeSides := make([]*records.StripeSide, len(stripe))
	for i, tx := range stripe {
		side, err := records.ToStripeSide(tx)
		if err != nil {
			return nil, fmt.Errorf("%s pass: %w", pass, err)
		}
		stripeSides[i] = side
	}

	ledgerSides := make([]*records.LedgerSide, len(ledger))
	for i, tx := range ledger {
		side, err := records.ToLedgerSide(tx)
		if err != nil {
			return nil, fmt.Errorf("%s pass: %w", pass, err)
		}
		ledgerSides[i] = side
	}

	stripeKey, ledgerKey := keysFor(pass)
	index, ambiguities := buildIndex(pass, ledgerSides, ledgerKey)
	for _, a := range ambiguities {
		m.logger.Warn("join key shared by several ledger transactions",
			"pass", pass, "key", a.Key, "ledger_ids", a.LedgerIDs)
	}

	result := &Result{
		Pass:        pass,
		Records:     make([]records.MatchRecord, 0, len(stripe)+len(ledger)),
		Ambiguities: ambiguities,
	}
	emitted := make(map[string]struct{}, len(ledger))

	appendRecord := func(c records.Classification, l *records.LedgerSide, s *records.StripeSide) {
		result.Records = append(result.Records, records.MatchRecord{
			Pass:           pass,
			Classification: c,
			Position:       len(result.Records),
			Ledger:         l,
			Stripe:         s,
		})
		result.Stats.Add(c)
		if l != nil {
			emitted[l.ID] = struct{}{}
		}
	}

	for _, s := range stripeSides {
		if key, ok := stripeKey(s); ok {
			if i, found := index[key]; found {
				appendRecord(records.ClassMatch, ledgerSides[i], s)
				continue
			}
		}
		appendRecord(records.ClassStripeOnly, nil, s)
	}

	// A ledger id already present anywhere in the output is not repeated,
	// even when it belongs to a different candidate record.
	for _, l := range ledgerSides {
		if _, done := emitted[l.ID]; done {
			continue
		}
		appendRecord(records.ClassLedgerOnly, l, nil)
	}

	m.logger.Debug("matcher pass complete",
		"pass", pass,
		"stripe", len(stripe),
		"ledger", len(ledger),
		"match", result.Stats.Match,
		"stripe_only", result.Stats.StripeOnly,
		"ledger_only", result.Stats.LedgerOnly)

	return result, nil
}

// buildIndex maps each join key to the lowest input index carrying it.
func buildIndex(pass records.Pass, ledger []*records.LedgerSide, key ledgerKeyFunc) (map[string]int, []JoinAmbiguity) {
	index := make(map[string]int, len(ledger))
	var dupes map[string]*JoinAmbiguity
	var order []string

	for i, l := range ledger {
		k, ok := key(l)
		if !ok {
			continue
		}
		first, seen := index[k]
		if !seen {
			index[k] = i
			continue
		}
		if dupes == nil {
			dupes = make(map[string]*JoinAmbiguity)
		}
		a, ok := dupes[k]
		if !ok {
			a = &JoinAmbiguity{Pass: pass, Key: k, LedgerIDs: []string{ledger[first].ID}}
			dupes[k] = a
			order = append(order, k)
		}
		a.LedgerIDs = append(a.LedgerIDs, l.ID)
	}

	if len(order) == 0 {
		return index, nil
	}
	out := make([]JoinAmbiguity, 0, len(order))
	for _, k := range order {
		out = append(out, *dupes[k])
	}
	return index, out
}
