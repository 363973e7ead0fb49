package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/eshaffer321/stripe-ledger-recon/internal/domain/records"
)

// Snapshot is a set of input records in file order. It is the ingestion
// format of the import command: YAML, or JSON (which YAML accepts).
type Snapshot struct {
	StripeTransactions  []records.StripeTransaction  `yaml:"stripe_transactions"`
	StripeBalanceEvents []records.StripeBalanceEvent `yaml:"stripe_balance_events"`
	LedgerTransactions  []records.LedgerTransaction  `yaml:"ledger_transactions"`
	LedgerAccounts      []records.LedgerAccount      `yaml:"ledger_accounts"`
}

// LoadSnapshotFile reads a snapshot file.
func LoadSnapshotFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	return &snap, nil
}

// ImportSnapshot upserts every record of snap in one transaction. New rows
// are positioned after existing ones in file order; with replace the input
// tables are emptied first.
func (s *Storage) ImportSnapshot(ctx context.Context, snap *Snapshot, replace bool) (*ImportStats, error) {
	stats := &ImportStats{}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if replace {
			for _, table := range []string{"stripe_transactions", "stripe_balance_events", "ledger_transactions", "ledger_accounts"} {
				if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
					return fmt.Errorf("clear %s: %w", table, err)
				}
			}
		}

		next, err := nextPosition(ctx, tx, "stripe_transactions")
		if err != nil {
			return err
		}
		for i, t := range snap.StripeTransactions {
			if _, err := tx.ExecContext(ctx, s.rebind(`
				INSERT INTO stripe_transactions (`+stripeTransactionColumns+`)
				VALUES `+inClause(21)+`
				ON CONFLICT (id) DO UPDATE SET
					payment_intent_id = excluded.payment_intent_id, amount = excluded.amount,
					amount_refunded = excluded.amount_refunded, currency = excluded.currency,
					captured = excluded.captured, converted_amount = excluded.converted_amount,
					converted_currency = excluded.converted_currency, description = excluded.description,
					fee = excluded.fee, mode = excluded.mode, payment_source_type = excluded.payment_source_type,
					status = excluded.status, seller_message = excluded.seller_message,
					card_brand = excluded.card_brand, card_last4 = excluded.card_last4,
					customer_id = excluded.customer_id, customer_email = excluded.customer_email,
					created = excluded.created, refunded_at = excluded.refunded_at
			`),
				t.ID, textArg(t.PaymentIntentID), t.Amount, textArg(t.AmountRefunded), textArg(t.Currency), textArg(t.Captured),
				textArg(t.ConvertedAmount), textArg(t.ConvertedCurrency), textArg(t.Description), textArg(t.Fee), textArg(t.Mode),
				textArg(t.PaymentSourceType), textArg(t.Status), textArg(t.SellerMessage), textArg(t.CardBrand), textArg(t.CardLast4),
				textArg(t.CustomerID), textArg(t.CustomerEmail), textArg(t.CreatedAt), textArg(t.RefundedAt), next+i,
			); err != nil {
				return fmt.Errorf("stripe transaction %q: %w", t.ID, err)
			}
			stats.StripeTransactions++
		}

		if next, err = nextPosition(ctx, tx, "stripe_balance_events"); err != nil {
			return err
		}
		for i, ev := range snap.StripeBalanceEvents {
			if _, err := tx.ExecContext(ctx, s.rebind(`
				INSERT INTO stripe_balance_events
					(balance_transaction_id, net, gross, fee, currency, description, created, available_on, position)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (balance_transaction_id) DO UPDATE SET
					net = excluded.net, gross = excluded.gross, fee = excluded.fee, currency = excluded.currency,
					description = excluded.description, created = excluded.created, available_on = excluded.available_on
			`),
				ev.BalanceTransactionID, textArg(ev.Net), textArg(ev.Gross), textArg(ev.Fee), textArg(ev.Currency),
				textArg(ev.Description), textArg(ev.CreatedAt), textArg(ev.AvailableOn), next+i,
			); err != nil {
				return fmt.Errorf("balance event %q: %w", ev.BalanceTransactionID, err)
			}
			stats.StripeBalanceEvents++
		}

		if next, err = nextPosition(ctx, tx, "ledger_transactions"); err != nil {
			return err
		}
		for i, t := range snap.LedgerTransactions {
			m := t.Metadata
			if _, err := tx.ExecContext(ctx, s.rebind(`
				INSERT INTO ledger_transactions (`+ledgerTransactionColumns+`)
				VALUES `+inClause(22)+`
				ON CONFLICT (id) DO UPDATE SET
					ledger_id = excluded.ledger_id, description = excluded.description, status = excluded.status,
					effective_date = excluded.effective_date, posted_at = excluded.posted_at,
					effective_at = excluded.effective_at,
					amount_usd = excluded.amount_usd, currency_usd = excluded.currency_usd,
					amount_eur = excluded.amount_eur, currency_eur = excluded.currency_eur,
					amount_gbp = excluded.amount_gbp, currency_gbp = excluded.currency_gbp,
					metadata = excluded.metadata, metadata_type = excluded.metadata_type,
					metadata_pay_in_type = excluded.metadata_pay_in_type,
					metadata_latest_stripe_charge_id = excluded.metadata_latest_stripe_charge_id,
					metadata_payment_id = excluded.metadata_payment_id,
					metadata_payment_method_id = excluded.metadata_payment_method_id,
					metadata_stripe_balance_trx_id = excluded.metadata_stripe_balance_trx_id,
					metadata_stripe_exchange_rate = excluded.metadata_stripe_exchange_rate
			`),
				t.ID, textArg(t.LedgerID), textArg(t.Description), textArg(t.Status),
				textArg(t.EffectiveDate), textArg(t.PostedAt), textArg(t.EffectiveAt),
				textArg(t.Amounts.USD.Amount), textArg(t.Amounts.USD.Currency),
				textArg(t.Amounts.EUR.Amount), textArg(t.Amounts.EUR.Currency),
				textArg(t.Amounts.GBP.Amount), textArg(t.Amounts.GBP.Currency),
				textArg(m.Raw), textArg(m.Type), textArg(m.PayInType), textArg(m.LatestStripeChargeID), textArg(m.PaymentID),
				textArg(m.PaymentMethodID), textArg(m.StripeBalanceTrxID), textArg(m.StripeExchangeRate), next+i,
			); err != nil {
				return fmt.Errorf("ledger transaction %q: %w", t.ID, err)
			}
			stats.LedgerTransactions++
		}

		if next, err = nextPosition(ctx, tx, "ledger_accounts"); err != nil {
			return err
		}
		for i, a := range snap.LedgerAccounts {
			if _, err := tx.ExecContext(ctx, s.rebind(`
				INSERT INTO ledger_accounts (id, ledger_id, name, currency, posted_balance, metadata_type, position)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (id) DO UPDATE SET
					ledger_id = excluded.ledger_id, name = excluded.name, currency = excluded.currency,
					posted_balance = excluded.posted_balance, metadata_type = excluded.metadata_type
			`),
				a.ID, textArg(a.LedgerID), a.Name, textArg(a.Currency), textArg(a.PostedBalance), textArg(a.MetadataType), next+i,
			); err != nil {
				return fmt.Errorf("ledger account %q: %w", a.ID, err)
			}
			stats.LedgerAccounts++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("imported snapshot",
		"stripe_transactions", stats.StripeTransactions,
		"stripe_balance_events", stats.StripeBalanceEvents,
		"ledger_transactions", stats.LedgerTransactions,
		"ledger_accounts", stats.LedgerAccounts,
		"replace", replace)
	return stats, nil
}

func nextPosition(ctx context.Context, tx *sql.Tx, table string) (int, error) {
	var next int
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(position), -1) + 1 FROM "+table).Scan(&next); err != nil {
		return 0, fmt.Errorf("next position in %s: %w", table, err)
	}
	return next, nil
}
