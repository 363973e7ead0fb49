package records

import "slices"

// LedgerFilter selects ledger transactions. The conditions are OR-combined:
// a transaction passes when any one of them holds. The same filter is applied
// in memory and translated to SQL by the record store.
type LedgerFilter struct {
	Types              []string
	Statuses           []string
	WithLatestChargeID bool
	WithPaymentID      bool
}

// StartedCandidates selects the ledger pool for the started pass.
func StartedCandidates() LedgerFilter {
	return LedgerFilter{
		Types:              []string{LedgerTypePayInStarted},
		WithLatestChargeID: true,
		WithPaymentID:      true,
	}
}

// SucceededCandidates selects the ledger pool for the succeeded pass.
func SucceededCandidates() LedgerFilter {
	return LedgerFilter{
		Types:    []string{LedgerTypePayInSucceeded},
		Statuses: []string{LedgerStatusSucceeded},
	}
}

// CandidatesFor returns the ledger filter of a pass.
func CandidatesFor(p Pass) LedgerFilter {
	if p == PassSucceeded {
		return SucceededCandidates()
	}
	return StartedCandidates()
}

// IsZero reports whether the filter has no conditions, which selects everything.
func (f LedgerFilter) IsZero() bool {
	return len(f.Types) == 0 && len(f.Statuses) == 0 && !f.WithLatestChargeID && !f.WithPaymentID
}

// Matches reports whether tx passes the filter.
func (f LedgerFilter) Matches(tx LedgerTransaction) bool {
	if f.IsZero() {
		return true
	}
	if v, ok := Text(tx.Metadata.Type); ok && slices.Contains(f.Types, v) {
		return true
	}
	if v, ok := Text(tx.Status); ok && slices.Contains(f.Statuses, v) {
		return true
	}
	if _, ok := Text(tx.Metadata.LatestStripeChargeID); ok && f.WithLatestChargeID {
		return true
	}
	if _, ok := Text(tx.Metadata.PaymentID); ok && f.WithPaymentID {
		return true
	}
	return false
}
