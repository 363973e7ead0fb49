package matcher

import "github.com/eshaffer321/stripe-ledger-recon/internal/domain/records"

// Result is the output of one matcher pass.
type Result struct {
	Pass        records.Pass          `json:"pass"`
	Records     []records.MatchRecord `json:"records"`
	Stats       records.Stats         `json:"stats"`
	Ambiguities []JoinAmbiguity       `json:"ambiguities,omitempty"`
}

// JoinAmbiguity reports a join key shared by more than one ledger candidate.
// Only the first candidate in input order can ever be matched through it.
type JoinAmbiguity struct {
	Pass      records.Pass `json:"pass"`
	Key       string       `json:"key"`
	LedgerIDs []string     `json:"ledger_ids"`
}

// The key funcs extract the join key of one side. ok is false when the record has none.
type stripeKeyFunc func(*records.StripeSide) (string, bool)
type ledgerKeyFunc func(*records.LedgerSide) (string, bool)

func keysFor(pass records.Pass) (stripeKeyFunc, ledgerKeyFunc) {
	if pass == records.PassSucceeded {
		return func(s *records.StripeSide) (string, bool) { return records.Text(s.PaymentIntentID) },
			func(l *records.LedgerSide) (string, bool) { return records.Text(l.PaymentID) }
	}
	return func(s *records.StripeSide) (string, bool) { return s.ID, s.ID != "" },
		func(l *records.LedgerSide) (string, bool) { return records.Text(l.LatestStripeChargeID) }
}
