// Package records defines the typed entities that flow through reconciliation.
//
// Input records are snapshots read from the record store. Their numeric and
// date columns stay as raw text because the ingestion layer stores them that
// way; each consumer converts them with its own error policy. The matcher
// converts strictly and fails the whole pass on bad data, the balance
// aggregator converts softly and drops only the offending row.
//
// Optional values are pointers. Use Text to normalize a raw column: an empty
// or whitespace-only string is the same as no value.
package records

import (
	"fmt"
	"strings"
)

// Pass selects which join a matcher run performs.
type Pass string

const (
	// PassStarted joins stripe charge ids against ledger metadata.latestStripeChargeId.
	PassStarted Pass = "started"
	// PassSucceeded joins stripe payment intent ids against ledger metadata.paymentId.
	PassSucceeded Pass = "succeeded"
)

// Passes lists every pass in run order.
var Passes = []Pass{PassStarted, PassSucceeded}

// ParsePass converts user input into a Pass.
func ParsePass(s string) (Pass, error) {
	switch Pass(strings.ToLower(strings.TrimSpace(s))) {
	case PassStarted:
		return PassStarted, nil
	case PassSucceeded:
		return PassSucceeded, nil
	}
	return "", fmt.Errorf("unknown pass %q (want started or succeeded)", s)
}

// Classification is the outcome of matching one record.
type Classification string

const (
	ClassMatch      Classification = "match"
	ClassStripeOnly Classification = "stripe_only"
	ClassLedgerOnly Classification = "ledger_only"
)

// ParseClassification converts user input into a Classification.
func ParseClassification(s string) (Classification, error) {
	switch c := Classification(strings.ToLower(strings.TrimSpace(s))); c {
	case ClassMatch, ClassStripeOnly, ClassLedgerOnly:
		return c, nil
	}
	return "", fmt.Errorf("unknown classification %q", s)
}

// Ledger metadata types used by the candidate filters.
const (
	LedgerTypePayInStarted   = "PAY_IN_STARTED"
	LedgerTypePayInSucceeded = "PAY_IN_SUCCEEDED"
	LedgerStatusSucceeded    = "SUCCEEDED"
)

// DefaultPaidStatus is the stripe status that makes a charge eligible for matching.
const DefaultPaidStatus = "Paid"

// DefaultAccountAllowlist names the ledger accounts that hold Stripe money.
// "Stripe*" is a literal account name, not a pattern.
var DefaultAccountAllowlist = []string{
	"Stripe Revenue",
	"Stripe*",
	"Stripe Fees",
	"Stripe Payroll Balance",
}

// StripeTransaction is one row of the Stripe charge export.
type StripeTransaction struct {
	Position          int     `yaml:"-" json:"-"`
	ID                string  `yaml:"id" json:"id"`
	PaymentIntentID   *string `yaml:"payment_intent_id" json:"payment_intent_id,omitempty"`
	Amount            string  `yaml:"amount" json:"amount"`
	AmountRefunded    *string `yaml:"amount_refunded" json:"amount_refunded,omitempty"`
	Currency          *string `yaml:"currency" json:"currency,omitempty"`
	Captured          *string `yaml:"captured" json:"captured,omitempty"`
	ConvertedAmount   *string `yaml:"converted_amount" json:"converted_amount,omitempty"`
	ConvertedCurrency *string `yaml:"converted_currency" json:"converted_currency,omitempty"`
	Description       *string `yaml:"description" json:"description,omitempty"`
	Fee               *string `yaml:"fee" json:"fee,omitempty"`
	Mode              *string `yaml:"mode" json:"mode,omitempty"`
	PaymentSourceType *string `yaml:"payment_source_type" json:"payment_source_type,omitempty"`
	Status            *string `yaml:"status" json:"status,omitempty"`
	SellerMessage     *string `yaml:"seller_message" json:"seller_message,omitempty"`
	CardBrand         *string `yaml:"card_brand" json:"card_brand,omitempty"`
	CardLast4         *string `yaml:"card_last4" json:"card_last4,omitempty"`
	CustomerID        *string `yaml:"customer_id" json:"customer_id,omitempty"`
	CustomerEmail     *string `yaml:"customer_email" json:"customer_email,omitempty"`
	CreatedAt         *string `yaml:"created" json:"created,omitempty"`
	RefundedAt        *string `yaml:"refunded_at" json:"refunded_at,omitempty"`
}

// StripeBalanceEvent is one row of the Stripe balance-transaction export.
type StripeBalanceEvent struct {
	Position             int     `yaml:"-" json:"-"`
	BalanceTransactionID string  `yaml:"balance_transaction_id" json:"balance_transaction_id"`
	Net                  *string `yaml:"net" json:"net,omitempty"`
	Gross                *string `yaml:"gross" json:"gross,omitempty"`
	Fee                  *string `yaml:"fee" json:"fee,omitempty"`
	Currency             *string `yaml:"currency" json:"currency,omitempty"`
	Description          *string `yaml:"description" json:"description,omitempty"`
	CreatedAt            *string `yaml:"created" json:"created,omitempty"`
	AvailableOn          *string `yaml:"available_on" json:"available_on,omitempty"`
}

// AmountSlot is one currency column pair of a ledger transaction.
type AmountSlot struct {
	Amount   *string `yaml:"amount" json:"amount,omitempty"`
	Currency *string `yaml:"currency" json:"currency,omitempty"`
}

// LedgerAmounts reserves one slot per supported currency. Exactly one slot is
// expected to be populated.
type LedgerAmounts struct {
	USD AmountSlot `yaml:"usd" json:"usd"`
	EUR AmountSlot `yaml:"eur" json:"eur"`
	GBP AmountSlot `yaml:"gbp" json:"gbp"`
}

// LedgerMetadata is the flattened metadata bag of a ledger transaction.
type LedgerMetadata struct {
	Type                 *string `yaml:"type" json:"type,omitempty"`
	PayInType            *string `yaml:"payInType" json:"payInType,omitempty"`
	LatestStripeChargeID *string `yaml:"latestStripeChargeId" json:"latestStripeChargeId,omitempty"`
	PaymentID            *string `yaml:"paymentId" json:"paymentId,omitempty"`
	PaymentMethodID      *string `yaml:"paymentMethodId" json:"paymentMethodId,omitempty"`
	StripeBalanceTrxID   *string `yaml:"stripeBalanceTrxId" json:"stripeBalanceTrxId,omitempty"`
	StripeExchangeRate   *string `yaml:"stripeExchangeRate" json:"stripeExchangeRate,omitempty"`
	Raw                  *string `yaml:"raw" json:"raw,omitempty"`
}

// LedgerTransaction is one ledger entry.
type LedgerTransaction struct {
	Position      int            `yaml:"-" json:"-"`
	ID            string         `yaml:"id" json:"id"`
	LedgerID      *string        `yaml:"ledger_id" json:"ledger_id,omitempty"`
	Description   *string        `yaml:"description" json:"description,omitempty"`
	Status        *string        `yaml:"status" json:"status,omitempty"`
	EffectiveDate *string        `yaml:"effective_date" json:"effective_date,omitempty"`
	PostedAt      *string        `yaml:"posted_at" json:"posted_at,omitempty"`
	EffectiveAt   *string        `yaml:"effective_at" json:"effective_at,omitempty"`
	Amounts       LedgerAmounts  `yaml:"amounts" json:"amounts"`
	Metadata      LedgerMetadata `yaml:"metadata" json:"metadata"`
}

// LedgerAccount is a ledger account holding a posted balance.
type LedgerAccount struct {
	Position      int     `yaml:"-" json:"-"`
	ID            string  `yaml:"id" json:"id"`
	LedgerID      *string `yaml:"ledger_id" json:"ledger_id,omitempty"`
	Name          string  `yaml:"name" json:"name"`
	Currency      *string `yaml:"currency" json:"currency,omitempty"`
	PostedBalance *string `yaml:"posted_balance" json:"posted_balance,omitempty"`
	MetadataType  *string `yaml:"metadata_type" json:"metadata_type,omitempty"`
}
