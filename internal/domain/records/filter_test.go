package records

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStartedCandidates(t *testing.T) {
	f := StartedCandidates()

	tests := []struct {
		name string
		tx   LedgerTransaction
		want bool
	}{
		{"started type", LedgerTransaction{ID: "1", Metadata: LedgerMetadata{Type: Str(LedgerTypePayInStarted)}}, true},
		{"charge id only", LedgerTransaction{ID: "2", Metadata: LedgerMetadata{LatestStripeChargeID: Str("ch_1")}}, true},
		{"payment id only", LedgerTransaction{ID: "3", Metadata: LedgerMetadata{PaymentID: Str("pi_1")}}, true},
		{"succeeded type without ids", LedgerTransaction{ID: "4", Metadata: LedgerMetadata{Type: Str(LedgerTypePayInSucceeded)}}, false},
		{"blank charge id", LedgerTransaction{ID: "5", Metadata: LedgerMetadata{LatestStripeChargeID: Str(""), PaymentID: new(string)}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Matches(tt.tx))
		})
	}
}

func TestSucceededCandidates(t *testing.T) {
	f := SucceededCandidates()

	assert.True(t, f.Matches(LedgerTransaction{Metadata: LedgerMetadata{Type: Str(LedgerTypePayInSucceeded)}}))
	assert.True(t, f.Matches(LedgerTransaction{Status: Str(LedgerStatusSucceeded)}))
	assert.False(t, f.Matches(LedgerTransaction{Status: Str("PENDING"), Metadata: LedgerMetadata{PaymentID: Str("pi_1")}}))
}

func TestLedgerFilter_ZeroSelectsAll(t *testing.T) {
	var f LedgerFilter
	assert.True(t, f.IsZero())
	assert.True(t, f.Matches(LedgerTransaction{ID: "any"}))
}

func TestParsePass(t *testing.T) {
	p, err := ParsePass(" Started ")
	assert.NoError(t, err)
	assert.Equal(t, PassStarted, p)

	_, err = ParsePass("refunded")
	assert.Error(t, err)
}
