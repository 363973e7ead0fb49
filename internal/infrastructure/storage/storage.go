package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/eshaffer321/stripe-ledger-recon/internal/infrastructure/config"
)

// Storage provides SQL database access for inputs, results and runs.
// It implements the Repository interface on SQLite and PostgreSQL.
type Storage struct {
	db     *sql.DB
	driver string
	logger *slog.Logger
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

// NewStorage opens the configured database and runs all pending migrations.
func NewStorage(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var dialect goose.Dialect
	switch cfg.Driver {
	case config.DriverSQLite:
		dialect = goose.DialectSQLite3
	case config.DriverPostgres:
		dialect = goose.DialectPostgres
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}

	dsn := cfg.DSN
	if cfg.Driver == config.DriverSQLite && !strings.Contains(dsn, "_busy_timeout") {
		dsn = withQueryParam(dsn, "_busy_timeout=5000")
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}

	s := &Storage{db: db, driver: cfg.Driver, logger: logger}

	if err := s.runMigrations(ctx, dialect); err != nil {
		_ = db.Close()
		return nil, err
	}

	if cfg.Driver == config.DriverSQLite {
		// SQLite allows one writer; a single connection queues them instead of failing.
		db.SetMaxOpenConns(1)
	}

	return s, nil
}

// NewSQLiteStorage opens a SQLite database file.
func NewSQLiteStorage(ctx context.Context, path string) (*Storage, error) {
	return NewStorage(ctx, config.StorageConfig{Driver: config.DriverSQLite, DSN: path}, nil)
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

func withQueryParam(dsn, param string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + param
	}
	return dsn + "?" + param
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *Storage) rebind(query string) string {
	if s.driver != config.DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// inClause returns "(?, ?, ?)" for n values.
func inClause(n int) string {
	return "(" + strings.TrimSuffix(strings.Repeat("?, ", n), ", ") + ")"
}

// withTx runs fn in a transaction, rolling back on error or panic.
func (s *Storage) withTx(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
