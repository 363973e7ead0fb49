package storage

import (
	"fmt"
	"strconv"
	"time"

	"github.com/eshaffer321/stripe-ledger-recon/internal/domain/records"
)

// Timestamps, flags and amounts are stored as text so both dialects share
// one schema. Amount columns go through decimal.NullDecimal directly.

// textArg stores blank optional text as NULL.
func textArg(s *string) any {
	if v, ok := records.Text(s); ok {
		return v
	}
	return nil
}

func timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return records.FormatTimestamp(*t)
}

func boolArg(b *bool) any {
	if b == nil {
		return nil
	}
	return strconv.FormatBool(*b)
}

// timeScanner scans a stored timestamp into a *time.Time.
type timeScanner struct{ dest **time.Time }

func scanTime(dest **time.Time) timeScanner { return timeScanner{dest: dest} }

func (s timeScanner) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*s.dest = nil
		return nil
	case time.Time:
		u := v.UTC()
		*s.dest = &u
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into timestamp", src)
	}
	t, err := records.ParseTimestamp(raw)
	if err != nil {
		return err
	}
	*s.dest = &t
	return nil
}

// boolScanner scans a stored flag into a *bool.
type boolScanner struct{ dest **bool }

func scanBool(dest **bool) boolScanner { return boolScanner{dest: dest} }

func (s boolScanner) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*s.dest = nil
		return nil
	case bool:
		*s.dest = &v
		return nil
	case int64:
		b := v != 0
		*s.dest = &b
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into bool", src)
	}
	b, err := records.ParseBool(raw)
	if err != nil {
		return err
	}
	*s.dest = &b
	return nil
}
