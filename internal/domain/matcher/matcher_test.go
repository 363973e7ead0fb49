package matcher

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/stripe-ledger-recon/internal/domain/records"
)

func makeStripe(id, paymentIntent, amount string) records.StripeTransaction {
	return records.StripeTransaction{
		ID:              id,
		PaymentIntentID: records.Str(paymentIntent),
		Amount:          amount,
		Status:          records.Str(records.DefaultPaidStatus),
	}
}

func makeLedger(id, chargeID, paymentID string) records.LedgerTransaction {
	return records.LedgerTransaction{
		ID: id,
		Metadata: records.LedgerMetadata{
			LatestStripeChargeID: records.Str(chargeID),
			PaymentID:            records.Str(paymentID),
		},
	}
}

func classes(result *Result) []records.Classification {
	out := make([]records.Classification, len(result.Records))
	for i, r := range result.Records {
		out[i] = r.Classification
	}
	return out
}

func TestMatcher_StartedPassScenario(t *testing.T) {
	// Arrange
	m := NewMatcher(nil)
	stripe := []records.StripeTransaction{
		makeStripe("ch_1", "pi_1", "100.00"),
		makeStripe("ch_2", "pi_2", "50.00"),
	}
	ledger := []records.LedgerTransaction{
		makeLedger("L1", "ch_1", ""),
		makeLedger("L3", "ch_9", ""),
	}

	// Act
	result, err := m.Match(records.PassStarted, stripe, ledger)

	// Assert
	require.NoError(t, err)
	require.Len(t, result.Records, 3)

	assert.Equal(t, records.ClassMatch, result.Records[0].Classification)
	assert.Equal(t, "ch_1", result.Records[0].StripeID())
	assert.Equal(t, "L1", result.Records[0].LedgerID())

	assert.Equal(t, records.ClassStripeOnly, result.Records[1].Classification)
	assert.Equal(t, "ch_2", result.Records[1].StripeID())
	assert.Nil(t, result.Records[1].Ledger)

	assert.Equal(t, records.ClassLedgerOnly, result.Records[2].Classification)
	assert.Equal(t, "L3", result.Records[2].LedgerID())
	assert.Nil(t, result.Records[2].Stripe)

	assert.Equal(t, records.Stats{Match: 1, StripeOnly: 1, LedgerOnly: 1}, result.Stats)
	for i, r := range result.Records {
		assert.Equal(t, i, r.Position)
		assert.Equal(t, records.PassStarted, r.Pass)
	}
}

func TestMatcher_SucceededPassScenario(t *testing.T) {
	// Arrange
	m := NewMatcher(nil)
	stripe := []records.StripeTransaction{makeStripe("ch_5", "pi_5", "20.00")}
	ledger := []records.LedgerTransaction{makeLedger("L5", "", "pi_5")}

	// Act
	result, err := m.Match(records.PassSucceeded, stripe, ledger)

	// Assert
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, records.ClassMatch, result.Records[0].Classification)
	assert.Equal(t, "L5", result.Records[0].LedgerID())
	assert.Equal(t, records.Stats{Match: 1}, result.Stats)
}

func TestMatcher_FirstCandidateWinsOnSharedKey(t *testing.T) {
	// Arrange
	m := NewMatcher(nil)
	stripe := []records.StripeTransaction{makeStripe("ch_7", "", "10")}
	ledger := []records.LedgerTransaction{
		makeLedger("La", "ch_7", ""),
		makeLedger("Lb", "ch_7", ""),
	}

	// Act
	result, err := m.Match(records.PassStarted, stripe, ledger)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []records.Classification{records.ClassMatch, records.ClassLedgerOnly}, classes(result))
	assert.Equal(t, "La", result.Records[0].LedgerID())
	assert.Equal(t, "Lb", result.Records[1].LedgerID())

	require.Len(t, result.Ambiguities, 1)
	assert.Equal(t, "ch_7", result.Ambiguities[0].Key)
	assert.Equal(t, []string{"La", "Lb"}, result.Ambiguities[0].LedgerIDs)
}

func TestMatcher_LedgerIDEmittedOnlyOnce(t *testing.T) {
	// Two candidate rows share a ledger id: the second is suppressed because
	// the id already appears in the output.
	m := NewMatcher(nil)
	stripe := []records.StripeTransaction{makeStripe("ch_1", "", "10")}
	ledger := []records.LedgerTransaction{
		makeLedger("L1", "ch_1", ""),
		makeLedger("L1", "ch_other", ""),
		makeLedger("L2", "", "pi_x"),
		makeLedger("L2", "", "pi_y"),
	}

	result, err := m.Match(records.PassStarted, stripe, ledger)

	require.NoError(t, err)
	assert.Equal(t, []records.Classification{records.ClassMatch, records.ClassLedgerOnly}, classes(result))
	assert.Equal(t, "L2", result.Records[1].LedgerID())
	assert.Equal(t, records.Stats{Match: 1, LedgerOnly: 1}, result.Stats)
}

func TestMatcher_AbsentKeysNeverMatch(t *testing.T) {
	m := NewMatcher(nil)
	stripe := []records.StripeTransaction{makeStripe("ch_1", "", "10")}
	ledger := []records.LedgerTransaction{
		{ID: "L1", Status: records.Str(records.LedgerStatusSucceeded)},
	}

	result, err := m.Match(records.PassSucceeded, stripe, ledger)

	require.NoError(t, err)
	assert.Equal(t, []records.Classification{records.ClassStripeOnly, records.ClassLedgerOnly}, classes(result))
}

func TestMatcher_SameLedgerMatchedByTwoCharges(t *testing.T) {
	m := NewMatcher(nil)
	stripe := []records.StripeTransaction{
		makeStripe("ch_1", "pi_1", "10"),
		makeStripe("ch_2", "pi_1", "10"),
	}
	ledger := []records.LedgerTransaction{makeLedger("L1", "", "pi_1")}

	result, err := m.Match(records.PassSucceeded, stripe, ledger)

	require.NoError(t, err)
	assert.Equal(t, []records.Classification{records.ClassMatch, records.ClassMatch}, classes(result))
	assert.Equal(t, records.Stats{Match: 2}, result.Stats)
}

func TestMatcher_PartitionProperty(t *testing.T) {
	m := NewMatcher(nil)
	stripe := []records.StripeTransaction{
		makeStripe("ch_1", "", "1"),
		makeStripe("ch_2", "", "2"),
		makeStripe("ch_3", "", "3"),
		makeStripe("ch_4", "", "4"),
	}
	ledger := []records.LedgerTransaction{
		makeLedger("L4", "ch_4", ""),
		makeLedger("L9", "ch_9", ""),
		makeLedger("L2", "ch_2", ""),
		makeLedger("L8", "", "pi_8"),
	}

	result, err := m.Match(records.PassStarted, stripe, ledger)
	require.NoError(t, err)

	stripeSeen := map[string]int{}
	ledgerSeen := map[string]int{}
	for _, r := range result.Records {
		if r.Stripe != nil {
			stripeSeen[r.Stripe.ID]++
		}
		if r.Ledger != nil {
			ledgerSeen[r.Ledger.ID]++
		}
	}
	for _, s := range stripe {
		assert.Equal(t, 1, stripeSeen[s.ID], s.ID)
	}
	for _, l := range ledger {
		assert.Equal(t, 1, ledgerSeen[l.ID], l.ID)
	}
	assert.Equal(t, len(stripe), result.Stats.Match+result.Stats.StripeOnly)
	assert.Equal(t, len(result.Records), result.Stats.Total())
	assert.Equal(t, records.Stats{Match: 2, StripeOnly: 2, LedgerOnly: 2}, result.Stats)
}

func TestMatcher_EmptyInputs(t *testing.T) {
	m := NewMatcher(nil)

	result, err := m.Match(records.PassStarted, nil, nil)

	require.NoError(t, err)
	assert.Empty(t, result.Records)
	assert.Equal(t, records.Stats{}, result.Stats)
}

func TestMatcher_InputErrorAbortsPass(t *testing.T) {
	m := NewMatcher(nil)
	stripe := []records.StripeTransaction{
		makeStripe("ch_1", "", "10"),
		makeStripe("ch_2", "", "ten"),
	}

	result, err := m.Match(records.PassStarted, stripe, []records.LedgerTransaction{makeLedger("L1", "ch_1", "")})

	require.Error(t, err)
	assert.Nil(t, result)
	var inputErr *records.InputError
	require.True(t, errors.As(err, &inputErr))
	assert.Equal(t, "ch_2", inputErr.ID)
	assert.Equal(t, "amount", inputErr.Field)
}

func TestMatcher_LedgerWithoutIDIsInputError(t *testing.T) {
	m := NewMatcher(nil)

	_, err := m.Match(records.PassStarted, nil, []records.LedgerTransaction{makeLedger("", "ch_1", "")})

	var inputErr *records.InputError
	require.True(t, errors.As(err, &inputErr))
	assert.Equal(t, "ledger_transaction", inputErr.Record)
}

func TestMatcher_Deterministic(t *testing.T) {
	m := NewMatcher(nil)
	stripe := []records.StripeTransaction{makeStripe("ch_1", "", "1"), makeStripe("ch_2", "", "2")}
	ledger := []records.LedgerTransaction{makeLedger("L1", "ch_2", ""), makeLedger("L2", "ch_3", "")}

	first, err := m.Match(records.PassStarted, stripe, ledger)
	require.NoError(t, err)
	second, err := m.Match(records.PassStarted, stripe, ledger)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
