package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/eshaffer321/stripe-ledger-recon/internal/domain/records"
)

const matchRecordColumns = `pass, position, classification,
	ledger_transaction_id, ledger_id, ledger_description, ledger_status, effective_date, posted_at, effective_at,
	amount_usd, currency_usd, amount_eur, currency_eur, amount_gbp, currency_gbp,
	metadata_type, metadata_pay_in_type, metadata_latest_stripe_charge_id, metadata_payment_id,
	metadata_payment_method_id, metadata_stripe_balance_trx_id, metadata_stripe_exchange_rate, metadata,
	stripe_id, stripe_payment_intent_id, stripe_amount, stripe_amount_refunded, stripe_currency, stripe_captured,
	stripe_converted_amount, stripe_converted_currency, stripe_description, stripe_fee, stripe_mode,
	stripe_payment_source_type, stripe_status, stripe_seller_message, stripe_card_brand, stripe_card_last4,
	stripe_customer_id, stripe_customer_email, stripe_created, stripe_refunded_at`

// matchRecordColumnCount is the number of columns in matchRecordColumns.
const matchRecordColumnCount = 44

// ReplaceMatchResults replaces every stored record of one pass.
func (s *Storage) ReplaceMatchResults(ctx context.Context, pass records.Pass, rows []records.MatchRecord) error {
	insert := s.rebind(`INSERT INTO match_records (sort_time, ` + matchRecordColumns + `)
		VALUES ` + inClause(matchRecordColumnCount+1))

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM match_records WHERE pass = ?`), string(pass)); err != nil {
			return &SinkError{Op: "clear", Table: "match_records", Err: err}
		}

		stmt, err := tx.PrepareContext(ctx, insert)
		if err != nil {
			return &SinkError{Op: "write", Table: "match_records", Err: err}
		}
		defer func() { _ = stmt.Close() }()

		for i, r := range rows {
			args := append([]any{timeArg(r.SortTime()), string(pass), i, string(r.Classification)}, matchRecordArgs(r)...)
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return &SinkError{Op: "write", Table: "match_records", Err: err}
			}
		}
		return nil
	})
	if err != nil {
		return asSinkError(err, "match_records")
	}
	s.logger.Debug("replaced match records", "pass", pass, "rows", len(rows))
	return nil
}

// asSinkError wraps failures that happened outside the statements, such as commit.
func asSinkError(err error, table string) error {
	var sinkErr *SinkError
	if errors.As(err, &sinkErr) {
		return err
	}
	return &SinkError{Op: "write", Table: table, Err: err}
}

func matchRecordArgs(r records.MatchRecord) []any {
	l := r.Ledger
	if l == nil {
		l = &records.LedgerSide{}
	}
	st := r.Stripe
	if st == nil {
		st = &records.StripeSide{}
	}
	var stripeAmount any
	if r.Stripe != nil {
		stripeAmount = st.Amount.String()
	}
	return []any{
		textArg(&l.ID), textArg(l.LedgerID), textArg(l.Description), textArg(l.Status),
		timeArg(l.EffectiveDate), timeArg(l.PostedAt), timeArg(l.EffectiveAt),
		l.AmountUSD, textArg(l.CurrencyUSD), l.AmountEUR, textArg(l.CurrencyEUR), l.AmountGBP, textArg(l.CurrencyGBP),
		textArg(l.MetadataType), textArg(l.PayInType), textArg(l.LatestStripeChargeID), textArg(l.PaymentID),
		textArg(l.PaymentMethodID), textArg(l.StripeBalanceTrxID), l.StripeExchangeRate, textArg(l.Metadata),
		textArg(&st.ID), textArg(st.PaymentIntentID), stripeAmount, st.AmountRefunded, textArg(st.Currency), boolArg(st.Captured),
		st.ConvertedAmount, textArg(st.ConvertedCurrency), textArg(st.Description), st.Fee, textArg(st.Mode),
		textArg(st.PaymentSourceType), textArg(st.Status), textArg(st.SellerMessage), textArg(st.CardBrand), textArg(st.CardLast4),
		textArg(st.CustomerID), textArg(st.CustomerEmail), timeArg(st.CreatedAt), timeArg(st.RefundedAt),
	}
}

// scanMatchRecord reads one row selected with matchRecordColumns.
func scanMatchRecord(rows *sql.Rows) (records.MatchRecord, error) {
	var r records.MatchRecord
	var l records.LedgerSide
	var st records.StripeSide
	var ledgerID, stripeID, stripeAmount sql.NullString
	err := rows.Scan(
		&r.Pass, &r.Position, &r.Classification,
		&ledgerID, &l.LedgerID, &l.Description, &l.Status,
		scanTime(&l.EffectiveDate), scanTime(&l.PostedAt), scanTime(&l.EffectiveAt),
		&l.AmountUSD, &l.CurrencyUSD, &l.AmountEUR, &l.CurrencyEUR, &l.AmountGBP, &l.CurrencyGBP,
		&l.MetadataType, &l.PayInType, &l.LatestStripeChargeID, &l.PaymentID,
		&l.PaymentMethodID, &l.StripeBalanceTrxID, &l.StripeExchangeRate, &l.Metadata,
		&stripeID, &st.PaymentIntentID, &stripeAmount, &st.AmountRefunded, &st.Currency, scanBool(&st.Captured),
		&st.ConvertedAmount, &st.ConvertedCurrency, &st.Description, &st.Fee, &st.Mode,
		&st.PaymentSourceType, &st.Status, &st.SellerMessage, &st.CardBrand, &st.CardLast4,
		&st.CustomerID, &st.CustomerEmail, scanTime(&st.CreatedAt), scanTime(&st.RefundedAt),
	)
	if err != nil {
		return r, err
	}
	if ledgerID.Valid {
		l.ID = ledgerID.String
		r.Ledger = &l
	}
	if stripeID.Valid {
		st.ID = stripeID.String
		if stripeAmount.Valid {
			amount, err := records.ParseDecimal(stripeAmount.String)
			if err != nil {
				return r, err
			}
			st.Amount = amount
		}
		r.Stripe = &st
	}
	return r, nil
}

// ListMatches returns match records, newest first
func (s *Storage) ListMatches(ctx context.Context, filters MatchFilters) (*MatchListResult, error) {
	if filters.Limit <= 0 || filters.Limit > DefaultMatchLimit {
		filters.Limit = DefaultMatchLimit
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}

	var conds []string
	var args []any
	if filters.Pass != "" {
		conds = append(conds, "pass = ?")
		args = append(args, string(filters.Pass))
	}
	if filters.Classification != "" {
		conds = append(conds, "classification = ?")
		args = append(args, string(filters.Classification))
	}
	if !filters.From.IsZero() {
		conds = append(conds, "sort_time >= ?")
		args = append(args, records.FormatTimestamp(filters.From))
	}
	if !filters.To.IsZero() {
		conds = append(conds, "sort_time < ?")
		args = append(args, records.FormatTimestamp(filters.To))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	result := &MatchListResult{Records: []records.MatchRecord{}, Limit: filters.Limit, Offset: filters.Offset}
	if err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM match_records`+where), args...).
		Scan(&result.TotalCount); err != nil {
		return nil, err
	}

	query := `SELECT ` + matchRecordColumns + ` FROM match_records` + where +
		` ORDER BY sort_time IS NULL, sort_time DESC, pass, position LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, s.rebind(query), append(args, filters.Limit, filters.Offset)...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		r, err := scanMatchRecord(rows)
		if err != nil {
			return nil, err
		}
		result.Records = append(result.Records, r)
	}
	return result, rows.Err()
}

// ReplaceBalanceSummary replaces the balance summary table.
func (s *Storage) ReplaceBalanceSummary(ctx context.Context, rows []records.BalanceSummary) error {
	createdAt := records.FormatTimestamp(time.Now())
	insert := s.rebind(`INSERT INTO balance_summaries
		(position, ledger_id, account_name, currency, stripe_net_balance, posted_balance, difference, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM balance_summaries`); err != nil {
			return &SinkError{Op: "clear", Table: "balance_summaries", Err: err}
		}
		for i, r := range rows {
			if _, err := tx.ExecContext(ctx, insert,
				i, r.LedgerID, r.AccountName, r.Currency,
				r.StripeNetBalance.String(), r.PostedBalance.String(), r.Difference.String(),
				string(r.Status), createdAt,
			); err != nil {
				return &SinkError{Op: "write", Table: "balance_summaries", Err: err}
			}
		}
		return nil
	})
	if err != nil {
		return asSinkError(err, "balance_summaries")
	}
	s.logger.Debug("replaced balance summaries", "rows", len(rows))
	return nil
}

// ListBalanceSummaries returns summary rows in computation order, optionally by status
func (s *Storage) ListBalanceSummaries(ctx context.Context, status records.BalanceStatus) ([]records.BalanceSummary, error) {
	query := `SELECT ledger_id, account_name, currency, stripe_net_balance, posted_balance, difference, status, created_at
		FROM balance_summaries`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY position`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []records.BalanceSummary{}
	for rows.Next() {
		var b records.BalanceSummary
		if err := rows.Scan(
			&b.LedgerID, &b.AccountName, &b.Currency,
			&b.StripeNetBalance, &b.PostedBalance, &b.Difference, &b.Status, scanTime(&b.CreatedAt),
		); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// GetDashboardSummary returns aggregate counts over inputs and results
func (s *Storage) GetDashboardSummary(ctx context.Context) (*DashboardSummary, error) {
	sum := &DashboardSummary{PassStats: map[records.Pass]records.Stats{}}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM stripe_transactions`).Scan(&sum.StripeTransactions); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN metadata_stripe_balance_trx_id IS NOT NULL THEN 1 ELSE 0 END), 0)
		FROM ledger_transactions
	`).Scan(&sum.LedgerTransactions, &sum.LinkedToBalance); err != nil {
		return nil, err
	}
	sum.PendingBalanceLink = sum.LedgerTransactions - sum.LinkedToBalance

	rows, err := s.db.QueryContext(ctx, `SELECT pass, classification, COUNT(*) FROM match_records GROUP BY pass, classification`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var pass records.Pass
		var class records.Classification
		var n int
		if err := rows.Scan(&pass, &class, &n); err != nil {
			return nil, err
		}
		st := sum.PassStats[pass]
		switch class {
		case records.ClassMatch:
			st.Match = n
		case records.ClassStripeOnly:
			st.StripeOnly = n
		case records.ClassLedgerOnly:
			st.LedgerOnly = n
		}
		sum.PassStats[pass] = st
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM balance_summaries
	`), string(records.BalanceMismatch)).Scan(&sum.BalanceRows, &sum.BalanceMismatches); err != nil {
		return nil, err
	}

	runs, err := s.ListRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) > 0 {
		sum.LastRun = &runs[0]
	}
	return sum, nil
}
