package storage

import (
	"context"
	"strings"

	"github.com/eshaffer321/stripe-ledger-recon/internal/domain/records"
)

const stripeTransactionColumns = `id, payment_intent_id, amount, amount_refunded, currency, captured,
	converted_amount, converted_currency, description, fee, mode, payment_source_type, status,
	seller_message, card_brand, card_last4, customer_id, customer_email, created, refunded_at, position`

// LoadStripeTransactions returns charges with the given status (empty = all)
func (s *Storage) LoadStripeTransactions(ctx context.Context, status string) ([]records.StripeTransaction, error) {
	query := `SELECT ` + stripeTransactionColumns + ` FROM stripe_transactions`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY position, id`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []records.StripeTransaction
	for rows.Next() {
		var tx records.StripeTransaction
		if err := rows.Scan(
			&tx.ID, &tx.PaymentIntentID, &tx.Amount, &tx.AmountRefunded, &tx.Currency, &tx.Captured,
			&tx.ConvertedAmount, &tx.ConvertedCurrency, &tx.Description, &tx.Fee, &tx.Mode,
			&tx.PaymentSourceType, &tx.Status, &tx.SellerMessage, &tx.CardBrand, &tx.CardLast4,
			&tx.CustomerID, &tx.CustomerEmail, &tx.CreatedAt, &tx.RefundedAt, &tx.Position,
		); err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// LoadStripeBalanceEvents returns every balance event
func (s *Storage) LoadStripeBalanceEvents(ctx context.Context) ([]records.StripeBalanceEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT balance_transaction_id, net, gross, fee, currency, description, created, available_on, position
		FROM stripe_balance_events
		ORDER BY position, balance_transaction_id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []records.StripeBalanceEvent
	for rows.Next() {
		var ev records.StripeBalanceEvent
		if err := rows.Scan(
			&ev.BalanceTransactionID, &ev.Net, &ev.Gross, &ev.Fee, &ev.Currency,
			&ev.Description, &ev.CreatedAt, &ev.AvailableOn, &ev.Position,
		); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

const ledgerTransactionColumns = `id, ledger_id, description, status, effective_date, posted_at, effective_at,
	amount_usd, currency_usd, amount_eur, currency_eur, amount_gbp, currency_gbp,
	metadata, metadata_type, metadata_pay_in_type, metadata_latest_stripe_charge_id, metadata_payment_id,
	metadata_payment_method_id, metadata_stripe_balance_trx_id, metadata_stripe_exchange_rate, position`

// LoadLedgerTransactions returns ledger transactions passing the filter
func (s *Storage) LoadLedgerTransactions(ctx context.Context, filter records.LedgerFilter) ([]records.LedgerTransaction, error) {
	where, args := ledgerFilterSQL(filter)
	query := `SELECT ` + ledgerTransactionColumns + ` FROM ledger_transactions`
	if where != "" {
		query += ` WHERE ` + where
	}
	query += ` ORDER BY position, id`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []records.LedgerTransaction
	for rows.Next() {
		var tx records.LedgerTransaction
		m := &tx.Metadata
		if err := rows.Scan(
			&tx.ID, &tx.LedgerID, &tx.Description, &tx.Status, &tx.EffectiveDate, &tx.PostedAt, &tx.EffectiveAt,
			&tx.Amounts.USD.Amount, &tx.Amounts.USD.Currency,
			&tx.Amounts.EUR.Amount, &tx.Amounts.EUR.Currency,
			&tx.Amounts.GBP.Amount, &tx.Amounts.GBP.Currency,
			&m.Raw, &m.Type, &m.PayInType, &m.LatestStripeChargeID, &m.PaymentID,
			&m.PaymentMethodID, &m.StripeBalanceTrxID, &m.StripeExchangeRate, &tx.Position,
		); err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// ledgerFilterSQL translates a filter into an OR-combined WHERE clause.
// It mirrors records.LedgerFilter.Matches.
func ledgerFilterSQL(f records.LedgerFilter) (string, []any) {
	if f.IsZero() {
		return "", nil
	}
	var conds []string
	var args []any
	if len(f.Types) > 0 {
		conds = append(conds, `metadata_type IN `+inClause(len(f.Types)))
		for _, t := range f.Types {
			args = append(args, t)
		}
	}
	if len(f.Statuses) > 0 {
		conds = append(conds, `status IN `+inClause(len(f.Statuses)))
		for _, st := range f.Statuses {
			args = append(args, st)
		}
	}
	if f.WithLatestChargeID {
		conds = append(conds, `(metadata_latest_stripe_charge_id IS NOT NULL AND metadata_latest_stripe_charge_id <> '')`)
	}
	if f.WithPaymentID {
		conds = append(conds, `(metadata_payment_id IS NOT NULL AND metadata_payment_id <> '')`)
	}
	return strings.Join(conds, " OR "), args
}

// LoadLedgerAccounts returns accounts whose name is in the allow-list
func (s *Storage) LoadLedgerAccounts(ctx context.Context, allowlist []string) ([]records.LedgerAccount, error) {
	if len(allowlist) == 0 {
		return nil, nil
	}
	args := make([]any, len(allowlist))
	for i, name := range allowlist {
		args[i] = name
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, ledger_id, name, currency, posted_balance, metadata_type, position
		FROM ledger_accounts
		WHERE name IN `+inClause(len(allowlist))+`
		ORDER BY position, id
	`), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []records.LedgerAccount
	for rows.Next() {
		var a records.LedgerAccount
		if err := rows.Scan(&a.ID, &a.LedgerID, &a.Name, &a.Currency, &a.PostedBalance, &a.MetadataType, &a.Position); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
