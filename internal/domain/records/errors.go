package records

import "fmt"

// InputError reports a record that could not be converted strictly.
// A matcher pass that hits one produces no output at all.
type InputError struct {
	Record string // "stripe_transaction", "ledger_transaction", ...
	ID     string
	Field  string
	Value  string
	Err    error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s %q: field %s=%q: %v", e.Record, e.ID, e.Field, e.Value, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// SoftDataError reports a value that excluded one row from a balance
// computation without stopping it.
type SoftDataError struct {
	Record string
	ID     string
	Field  string
	Value  string
	Err    error
}

func (e *SoftDataError) Error() string {
	return fmt.Sprintf("skipped %s %q: field %s=%q: %v", e.Record, e.ID, e.Field, e.Value, e.Err)
}

func (e *SoftDataError) Unwrap() error { return e.Err }
