package records

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var errMissing = errors.New("required value is missing")

// converter accumulates the first strict conversion failure of one record.
type converter struct {
	record string
	id     string
	err    *InputError
}

func (c *converter) fail(field, value string, err error) {
	if c.err == nil {
		c.err = &InputError{Record: c.record, ID: c.id, Field: field, Value: value, Err: err}
	}
}

func (c *converter) decimal(field string, raw *string) decimal.NullDecimal {
	v, ok := Text(raw)
	if !ok {
		return decimal.NullDecimal{}
	}
	d, err := ParseDecimal(v)
	if err != nil {
		c.fail(field, v, err)
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

func (c *converter) time(field string, raw *string) *time.Time {
	v, ok := Text(raw)
	if !ok {
		return nil
	}
	t, err := ParseTimestamp(v)
	if err != nil {
		c.fail(field, v, err)
		return nil
	}
	return &t
}

func (c *converter) bool(field string, raw *string) *bool {
	v, ok := Text(raw)
	if !ok {
		return nil
	}
	b, err := ParseBool(v)
	if err != nil {
		c.fail(field, v, err)
		return nil
	}
	return &b
}

func text(raw *string) *string {
	v, ok := Text(raw)
	if !ok {
		return nil
	}
	return &v
}

// ToStripeSide converts a stripe transaction strictly.
func ToStripeSide(tx StripeTransaction) (*StripeSide, error) {
	c := converter{record: "stripe_transaction", id: tx.ID}
	id, ok := Text(&tx.ID)
	if !ok {
		c.fail("id", tx.ID, errMissing)
	}
	amount := c.decimal("amount", &tx.Amount)
	if !amount.Valid {
		c.fail("amount", tx.Amount, errMissing)
	}
	side := &StripeSide{
		ID:                id,
		PaymentIntentID:   text(tx.PaymentIntentID),
		Amount:            amount.Decimal,
		AmountRefunded:    c.decimal("amount_refunded", tx.AmountRefunded),
		Currency:          text(tx.Currency),
		Captured:          c.bool("captured", tx.Captured),
		ConvertedAmount:   c.decimal("converted_amount", tx.ConvertedAmount),
		ConvertedCurrency: text(tx.ConvertedCurrency),
		Description:       text(tx.Description),
		Fee:               c.decimal("fee", tx.Fee),
		Mode:              text(tx.Mode),
		PaymentSourceType: text(tx.PaymentSourceType),
		Status:            text(tx.Status),
		SellerMessage:     text(tx.SellerMessage),
		CardBrand:         text(tx.CardBrand),
		CardLast4:         text(tx.CardLast4),
		CustomerID:        text(tx.CustomerID),
		CustomerEmail:     text(tx.CustomerEmail),
		CreatedAt:         c.time("created", tx.CreatedAt),
		RefundedAt:        c.time("refunded_at", tx.RefundedAt),
	}
	if c.err != nil {
		return nil, c.err
	}
	return side, nil
}

// ToLedgerSide converts a ledger transaction strictly.
func ToLedgerSide(tx LedgerTransaction) (*LedgerSide, error) {
	c := converter{record: "ledger_transaction", id: tx.ID}
	id, ok := Text(&tx.ID)
	if !ok {
		c.fail("id", tx.ID, errMissing)
	}
	m := tx.Metadata
	side := &LedgerSide{
		ID:                   id,
		LedgerID:             text(tx.LedgerID),
		Description:          text(tx.Description),
		Status:               text(tx.Status),
		EffectiveDate:        c.time("effective_date", tx.EffectiveDate),
		PostedAt:             c.time("posted_at", tx.PostedAt),
		EffectiveAt:          c.time("effective_at", tx.EffectiveAt),
		AmountUSD:            c.decimal("amount_usd", tx.Amounts.USD.Amount),
		CurrencyUSD:          text(tx.Amounts.USD.Currency),
		AmountEUR:            c.decimal("amount_eur", tx.Amounts.EUR.Amount),
		CurrencyEUR:          text(tx.Amounts.EUR.Currency),
		AmountGBP:            c.decimal("amount_gbp", tx.Amounts.GBP.Amount),
		CurrencyGBP:          text(tx.Amounts.GBP.Currency),
		MetadataType:         text(m.Type),
		PayInType:            text(m.PayInType),
		LatestStripeChargeID: text(m.LatestStripeChargeID),
		PaymentID:            text(m.PaymentID),
		PaymentMethodID:      text(m.PaymentMethodID),
		StripeBalanceTrxID:   text(m.StripeBalanceTrxID),
		StripeExchangeRate:   c.decimal("metadata.stripeExchangeRate", m.StripeExchangeRate),
		Metadata:             text(m.Raw),
	}
	if c.err != nil {
		return nil, c.err
	}
	return side, nil
}
