package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
)

// Migration represents a database schema migration
type Migration struct {
	Version int64
	Name    string
	Up      func(ctx context.Context, tx *sql.Tx) error
	Down    func(ctx context.Context, tx *sql.Tx) error
}

// allMigrations defines all migrations in order. Statements use only types
// and syntax shared by SQLite and PostgreSQL.
var allMigrations = []Migration{
	{
		Version: 1,
		Name:    "input_tables",
		Up: execAll(
			`CREATE TABLE IF NOT EXISTS stripe_transactions (
				id TEXT PRIMARY KEY,
				position INTEGER NOT NULL,
				payment_intent_id TEXT,
				amount TEXT NOT NULL,
				amount_refunded TEXT,
				currency TEXT,
				captured TEXT,
				converted_amount TEXT,
				converted_currency TEXT,
				description TEXT,
				fee TEXT,
				mode TEXT,
				payment_source_type TEXT,
				status TEXT,
				seller_message TEXT,
				card_brand TEXT,
				card_last4 TEXT,
				customer_id TEXT,
				customer_email TEXT,
				created TEXT,
				refunded_at TEXT
			)`,
			`CREATE INDEX IF NOT EXISTS idx_stripe_transactions_status ON stripe_transactions(status)`,
			`CREATE TABLE IF NOT EXISTS stripe_balance_events (
				balance_transaction_id TEXT PRIMARY KEY,
				position INTEGER NOT NULL,
				net TEXT,
				gross TEXT,
				fee TEXT,
				currency TEXT,
				description TEXT,
				created TEXT,
				available_on TEXT
			)`,
			`CREATE TABLE IF NOT EXISTS ledger_transactions (
				id TEXT PRIMARY KEY,
				position INTEGER NOT NULL,
				ledger_id TEXT,
				description TEXT,
				status TEXT,
				effective_date TEXT,
				posted_at TEXT,
				effective_at TEXT,
				amount_usd TEXT,
				currency_usd TEXT,
				amount_eur TEXT,
				currency_eur TEXT,
				amount_gbp TEXT,
				currency_gbp TEXT,
				metadata TEXT,
				metadata_type TEXT,
				metadata_pay_in_type TEXT,
				metadata_latest_stripe_charge_id TEXT,
				metadata_payment_id TEXT,
				metadata_payment_method_id TEXT,
				metadata_stripe_balance_trx_id TEXT,
				metadata_stripe_exchange_rate TEXT
			)`,
			`CREATE INDEX IF NOT EXISTS idx_ledger_transactions_trx ON ledger_transactions(metadata_stripe_balance_trx_id)`,
			`CREATE TABLE IF NOT EXISTS ledger_accounts (
				id TEXT PRIMARY KEY,
				position INTEGER NOT NULL,
				ledger_id TEXT,
				name TEXT NOT NULL,
				currency TEXT,
				posted_balance TEXT,
				metadata_type TEXT
			)`,
		),
		Down: execAll(
			`DROP TABLE IF EXISTS ledger_accounts`,
			`DROP TABLE IF EXISTS ledger_transactions`,
			`DROP TABLE IF EXISTS stripe_balance_events`,
			`DROP TABLE IF EXISTS stripe_transactions`,
		),
	},
	{
		Version: 2,
		Name:    "result_tables",
		Up: execAll(
			`CREATE TABLE IF NOT EXISTS match_records (
				pass TEXT NOT NULL,
				position INTEGER NOT NULL,
				classification TEXT NOT NULL,
				sort_time TEXT,
				ledger_transaction_id TEXT,
				ledger_id TEXT,
				ledger_description TEXT,
				ledger_status TEXT,
				effective_date TEXT,
				posted_at TEXT,
				effective_at TEXT,
				amount_usd TEXT,
				currency_usd TEXT,
				amount_eur TEXT,
				currency_eur TEXT,
				amount_gbp TEXT,
				currency_gbp TEXT,
				metadata_type TEXT,
				metadata_pay_in_type TEXT,
				metadata_latest_stripe_charge_id TEXT,
				metadata_payment_id TEXT,
				metadata_payment_method_id TEXT,
				metadata_stripe_balance_trx_id TEXT,
				metadata_stripe_exchange_rate TEXT,
				metadata TEXT,
				stripe_id TEXT,
				stripe_payment_intent_id TEXT,
				stripe_amount TEXT,
				stripe_amount_refunded TEXT,
				stripe_currency TEXT,
				stripe_captured TEXT,
				stripe_converted_amount TEXT,
				stripe_converted_currency TEXT,
				stripe_description TEXT,
				stripe_fee TEXT,
				stripe_mode TEXT,
				stripe_payment_source_type TEXT,
				stripe_status TEXT,
				stripe_seller_message TEXT,
				stripe_card_brand TEXT,
				stripe_card_last4 TEXT,
				stripe_customer_id TEXT,
				stripe_customer_email TEXT,
				stripe_created TEXT,
				stripe_refunded_at TEXT,
				PRIMARY KEY (pass, position)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_match_records_class ON match_records(pass, classification)`,
			`CREATE INDEX IF NOT EXISTS idx_match_records_sort ON match_records(sort_time)`,
			`CREATE TABLE IF NOT EXISTS balance_summaries (
				position INTEGER PRIMARY KEY,
				ledger_id TEXT NOT NULL,
				account_name TEXT NOT NULL,
				currency TEXT NOT NULL,
				stripe_net_balance TEXT NOT NULL,
				posted_balance TEXT NOT NULL,
				difference TEXT NOT NULL,
				status TEXT NOT NULL,
				created_at TEXT NOT NULL
			)`,
		),
		Down: execAll(
			`DROP TABLE IF EXISTS balance_summaries`,
			`DROP TABLE IF EXISTS match_records`,
		),
	},
	{
		Version: 3,
		Name:    "reconciliation_runs",
		Up: execAll(
			`CREATE TABLE IF NOT EXISTS reconciliation_runs (
				id TEXT PRIMARY KEY,
				kind TEXT NOT NULL,
				status TEXT NOT NULL,
				started_at TEXT NOT NULL,
				completed_at TEXT,
				summary TEXT,
				error_message TEXT
			)`,
			`CREATE INDEX IF NOT EXISTS idx_reconciliation_runs_started ON reconciliation_runs(started_at)`,
		),
		Down: execAll(`DROP TABLE IF EXISTS reconciliation_runs`),
	},
}

func execAll(statements ...string) func(context.Context, *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	}
}

// runMigrations applies pending migrations through goose, which records them
// in goose_db_version.
func (s *Storage) runMigrations(ctx context.Context, dialect goose.Dialect) error {
	goMigrations := make([]*goose.Migration, 0, len(allMigrations))
	for _, m := range allMigrations {
		goMigrations = append(goMigrations, goose.NewGoMigration(
			m.Version,
			&goose.GoFunc{RunTx: m.Up},
			&goose.GoFunc{RunTx: m.Down},
		))
	}

	provider, err := goose.NewProvider(dialect, s.db, nil,
		goose.WithGoMigrations(goMigrations...),
		goose.WithDisableGlobalRegistry(true),
	)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	for _, r := range results {
		s.logger.Info("applied migration", "version", r.Source.Version, "duration", r.Duration)
	}
	return nil
}
