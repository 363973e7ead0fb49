package storage

import "fmt"

// SinkError reports a failed result replacement. The previous contents of
// the table are kept because the replacement runs in one transaction.
type SinkError struct {
	Op    string // "clear" or "write"
	Table string
	Err   error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("result sink: %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }
