package records

import (
	"time"

	"github.com/shopspring/decimal"
)

// StripeSide is the canonical stripe projection carried by a match record.
type StripeSide struct {
	ID                string              `json:"id"`
	PaymentIntentID   *string             `json:"payment_intent_id"`
	Amount            decimal.Decimal     `json:"amount"`
	AmountRefunded    decimal.NullDecimal `json:"amount_refunded"`
	Currency          *string             `json:"currency"`
	Captured          *bool               `json:"captured"`
	ConvertedAmount   decimal.NullDecimal `json:"converted_amount"`
	ConvertedCurrency *string             `json:"converted_currency"`
	Description       *string             `json:"description"`
	Fee               decimal.NullDecimal `json:"fee"`
	Mode              *string             `json:"mode"`
	PaymentSourceType *string             `json:"payment_source_type"`
	Status            *string             `json:"status"`
	SellerMessage     *string             `json:"seller_message"`
	CardBrand         *string             `json:"card_brand"`
	CardLast4         *string             `json:"card_last4"`
	CustomerID        *string             `json:"customer_id"`
	CustomerEmail     *string             `json:"customer_email"`
	CreatedAt         *time.Time          `json:"created_at"`
	RefundedAt        *time.Time          `json:"refunded_at"`
}

// LedgerSide is the canonical ledger projection carried by a match record.
type LedgerSide struct {
	ID                   string              `json:"id"`
	LedgerID             *string             `json:"ledger_id"`
	Description          *string             `json:"description"`
	Status               *string             `json:"status"`
	EffectiveDate        *time.Time          `json:"effective_date"`
	PostedAt             *time.Time          `json:"posted_at"`
	EffectiveAt          *time.Time          `json:"effective_at"`
	AmountUSD            decimal.NullDecimal `json:"amount_usd"`
	CurrencyUSD          *string             `json:"currency_usd"`
	AmountEUR            decimal.NullDecimal `json:"amount_eur"`
	CurrencyEUR          *string             `json:"currency_eur"`
	AmountGBP            decimal.NullDecimal `json:"amount_gbp"`
	CurrencyGBP          *string             `json:"currency_gbp"`
	MetadataType         *string             `json:"metadata_type"`
	PayInType            *string             `json:"pay_in_type"`
	LatestStripeChargeID *string             `json:"latest_stripe_charge_id"`
	PaymentID            *string             `json:"payment_id"`
	PaymentMethodID      *string             `json:"payment_method_id"`
	StripeBalanceTrxID   *string             `json:"stripe_balance_trx_id"`
	StripeExchangeRate   decimal.NullDecimal `json:"stripe_exchange_rate"`
	Metadata             *string             `json:"metadata"`
}

// MatchRecord is one row of a pass's output. Match rows carry both sides,
// StripeOnly rows only Stripe, LedgerOnly rows only Ledger.
type MatchRecord struct {
	Pass           Pass           `json:"pass"`
	Classification Classification `json:"classification"`
	Position       int            `json:"position"`
	Ledger         *LedgerSide    `json:"ledger,omitempty"`
	Stripe         *StripeSide    `json:"stripe,omitempty"`
}

// LedgerID returns the ledger transaction id of the row, or "".
func (r MatchRecord) LedgerID() string {
	if r.Ledger == nil {
		return ""
	}
	return r.Ledger.ID
}

// StripeID returns the stripe charge id of the row, or "".
func (r MatchRecord) StripeID() string {
	if r.Stripe == nil {
		return ""
	}
	return r.Stripe.ID
}

// SortTime is the time used to order rows newest first: the ledger effective
// date when there is one, else the stripe creation time.
func (r MatchRecord) SortTime() *time.Time {
	if r.Ledger != nil && r.Ledger.EffectiveDate != nil {
		return r.Ledger.EffectiveDate
	}
	if r.Stripe != nil {
		return r.Stripe.CreatedAt
	}
	return nil
}

// Stats counts the classifications of one pass.
type Stats struct {
	Match      int `json:"match"`
	StripeOnly int `json:"stripe_only"`
	LedgerOnly int `json:"ledger_only"`
}

// Add counts one classification.
func (s *Stats) Add(c Classification) {
	switch c {
	case ClassMatch:
		s.Match++
	case ClassStripeOnly:
		s.StripeOnly++
	case ClassLedgerOnly:
		s.LedgerOnly++
	}
}

// Total is the number of records the stats describe.
func (s Stats) Total() int {
	return s.Match + s.StripeOnly + s.LedgerOnly
}

// BalanceStatus is the verdict of one balance summary row.
type BalanceStatus string

const (
	BalanceMatch    BalanceStatus = "match"
	BalanceMismatch BalanceStatus = "mismatch"
)

// BalanceSummary compares Stripe's net movement with a ledger account's posted balance.
type BalanceSummary struct {
	LedgerID         string          `json:"ledger_id"`
	AccountName      string          `json:"account_name"`
	Currency         string          `json:"currency"`
	StripeNetBalance decimal.Decimal `json:"stripe_net_balance"`
	PostedBalance    decimal.Decimal `json:"posted_balance"`
	Difference       decimal.Decimal `json:"difference"`
	Status           BalanceStatus   `json:"status"`
	CreatedAt        *time.Time      `json:"created_at,omitempty"`
}
