package records

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// timestampLayouts are the textual date formats found in the exports.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// CanonicalTimeLayout is the text form used when timestamps are stored.
const CanonicalTimeLayout = "2006-01-02T15:04:05Z"

// Text returns the trimmed value of an optional column and whether it holds a value.
func Text(s *string) (string, bool) {
	if s == nil {
		return "", false
	}
	v := strings.TrimSpace(*s)
	return v, v != ""
}

// Str returns a pointer to s, or nil when s is blank.
func Str(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// ParseDecimal parses a monetary or rate value. Thousands separators are not accepted.
func ParseDecimal(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("not a number: %q", raw)
	}
	return d, nil
}

// ParseTimestamp parses any of the known layouts and returns the instant in UTC.
// Values without a zone are taken as UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	v := strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("not a timestamp: %q", raw)
}

// FormatTimestamp renders t in the canonical stored form.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(CanonicalTimeLayout)
}

// ParseBool accepts the spellings used by the exports.
func ParseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "y":
		return true, nil
	case "no", "n":
		return false, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, fmt.Errorf("not a boolean: %q", raw)
	}
	return b, nil
}

// NormalizeCurrency lower-cases a currency code for grouping and joins.
func NormalizeCurrency(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
