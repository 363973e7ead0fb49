package report

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/stripe-ledger-recon/internal/domain/records"
)

func TestFilterParams_MatchFilters(t *testing.T) {
	t.Run("empty params select everything", func(t *testing.T) {
		f, err := FilterParams{}.MatchFilters()
		require.NoError(t, err)
		assert.Empty(t, f.Pass)
		assert.True(t, f.From.IsZero())
		assert.True(t, f.To.IsZero())
		assert.Zero(t, f.Limit)
	})

	t.Run("date_to is inclusive", func(t *testing.T) {
		f, err := FilterParams{Pass: "succeeded", DateFrom: "2024-01-01", DateTo: "2024-01-31"}.MatchFilters()
		require.NoError(t, err)
		assert.Equal(t, records.PassSucceeded, f.Pass)
		assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), f.From)
		assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), f.To)
	})

	t.Run("single day range", func(t *testing.T) {
		_, err := FilterParams{DateFrom: "2024-01-05", DateTo: "2024-01-05"}.MatchFilters()
		assert.NoError(t, err)
	})

	t.Run("limit is capped", func(t *testing.T) {
		f, err := FilterParams{Limit: 100000}.MatchFilters()
		require.NoError(t, err)
		assert.Equal(t, 5000, f.Limit)
	})

	for name, p := range map[string]FilterParams{
		"bad pass":       {Pass: "finished"},
		"bad class":      {Classification: "maybe"},
		"bad date_from":  {DateFrom: "01/02/2024"},
		"bad date_to":    {DateTo: "yesterday"},
		"inverted range": {DateFrom: "2024-02-01", DateTo: "2024-01-01"},
		"negative limit": {Limit: -1},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := p.MatchFilters()
			assert.Error(t, err)
		})
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat("CSV")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func sampleRecords() []records.MatchRecord {
	effective := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	return []records.MatchRecord{
		{
			Pass:           records.PassStarted,
			Classification: records.ClassMatch,
			Ledger: &records.LedgerSide{
				ID:            "L1",
				Description:   records.Str("Invoice, March"),
				EffectiveDate: &effective,
				AmountUSD:     decimal.NewNullDecimal(decimal.RequireFromString("100.50")),
				CurrencyUSD:   records.Str("USD"),
				MetadataType:  records.Str(records.LedgerTypePayInStarted),
			},
			Stripe: &records.StripeSide{ID: "ch_1", Amount: decimal.RequireFromString("100.50"), Status: records.Str("Paid")},
		},
		{
			Pass:           records.PassStarted,
			Classification: records.ClassStripeOnly,
			Stripe:         &records.StripeSide{ID: "ch_2", Amount: decimal.RequireFromString("7"), Currency: records.Str("usd")},
		},
	}
}

func TestToMatchRow(t *testing.T) {
	rows := ToMatchRows(sampleRecords())
	require.Len(t, rows, 2)

	assert.Equal(t, MatchRow{
		Pass:           "started",
		LedgerID:       "L1",
		Description:    "Invoice, March",
		Date:           "2024-03-01 12:30:00",
		AmountUSD:      "100.5",
		Currency:       "USD",
		Type:           "PAY_IN_STARTED",
		StripeID:       "ch_1",
		StripeStatus:   "Paid",
		StripeAmount:   "100.5",
		Classification: "match",
	}, rows[0])

	assert.Empty(t, rows[1].LedgerID)
	assert.Equal(t, "usd", rows[1].Currency)
	assert.Equal(t, "stripe_only", rows[1].Classification)
}

func TestWriteMatchesCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMatchesCSV(&buf, sampleRecords()))

	lines, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, matchHeader, lines[0])
	assert.Equal(t, "Invoice, March", lines[1][2])
	assert.Equal(t, "ch_2", lines[2][8])
}

func TestWriteBalancesCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteBalancesCSV(&buf, []records.BalanceSummary{{
		LedgerID:         "LG1",
		AccountName:      "Stripe Revenue",
		Currency:         "usd",
		StripeNetBalance: decimal.RequireFromString("70"),
		PostedBalance:    decimal.RequireFromString("70.005"),
		Difference:       decimal.RequireFromString("-0.005"),
		Status:           records.BalanceMatch,
	}})
	require.NoError(t, err)

	lines, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"LG1", "Stripe Revenue", "usd", "70", "70.005", "-0.005", "match"}, lines[1])
}

func TestParseLimit(t *testing.T) {
	n, err := ParseLimit("", 20)
	require.NoError(t, err)
	assert.Equal(t, 20, n)

	n, err = ParseLimit("5", 20)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	_, err = ParseLimit("-3", 20)
	assert.Error(t, err)
	_, err = ParseLimit("ten", 20)
	assert.Error(t, err)
}
