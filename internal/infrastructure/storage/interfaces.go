package storage

import (
	"context"
	"errors"
	"time"

	"github.com/eshaffer321/stripe-ledger-recon/internal/domain/records"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Repository defines the complete storage interface.
// This interface allows swapping implementations (SQLite, PostgreSQL, in-memory)
// and makes testing with mocks straightforward.
type Repository interface {
	RecordStore
	ResultSink
	ResultReader
	RunRepository
	Importer
	Close() error
}

// RecordStore reads the reconciliation inputs. Every load returns rows in
// ingestion order.
type RecordStore interface {
	// LoadStripeTransactions returns charges with the given status (empty = all)
	LoadStripeTransactions(ctx context.Context, status string) ([]records.StripeTransaction, error)

	// LoadStripeBalanceEvents returns every balance event
	LoadStripeBalanceEvents(ctx context.Context) ([]records.StripeBalanceEvent, error)

	// LoadLedgerTransactions returns ledger transactions passing the filter
	LoadLedgerTransactions(ctx context.Context, filter records.LedgerFilter) ([]records.LedgerTransaction, error)

	// LoadLedgerAccounts returns accounts whose name is in the allow-list
	LoadLedgerAccounts(ctx context.Context, allowlist []string) ([]records.LedgerAccount, error)
}

// ResultSink replaces result tables. A replace either fully happens or leaves
// the previous contents untouched.
type ResultSink interface {
	ReplaceMatchResults(ctx context.Context, pass records.Pass, rows []records.MatchRecord) error
	ReplaceBalanceSummary(ctx context.Context, rows []records.BalanceSummary) error
}

// ResultReader serves stored results to the API and CLI.
type ResultReader interface {
	// ListMatches returns match records, newest first
	ListMatches(ctx context.Context, filters MatchFilters) (*MatchListResult, error)

	// ListBalanceSummaries returns summary rows in computation order, optionally by status
	ListBalanceSummaries(ctx context.Context, status records.BalanceStatus) ([]records.BalanceSummary, error)

	// GetDashboardSummary returns aggregate counts over inputs and results
	GetDashboardSummary(ctx context.Context) (*DashboardSummary, error)
}

// RunRepository tracks reconciliation runs.
type RunRepository interface {
	// StartRun records the start of a run and returns its ID
	StartRun(ctx context.Context, kind RunKind) (string, error)

	// CompleteRun stores the run's JSON payload and marks it completed
	CompleteRun(ctx context.Context, runID string, summary any) error

	// FailRun marks the run failed with the error text
	FailRun(ctx context.Context, runID string, runErr error) error

	ListRuns(ctx context.Context, limit int) ([]Run, error)
	GetRun(ctx context.Context, runID string) (*Run, error)
}

// Importer loads input snapshots.
type Importer interface {
	ImportSnapshot(ctx context.Context, snap *Snapshot, replace bool) (*ImportStats, error)
}

// DefaultMatchLimit caps match listings when no limit is given.
const DefaultMatchLimit = 5000

// MatchFilters defines filters for listing match records
type MatchFilters struct {
	Pass           records.Pass           // empty = both passes
	Classification records.Classification // empty = all
	From           time.Time              // inclusive lower bound on sort time (zero = none)
	To             time.Time              // exclusive upper bound on sort time (zero = none)
	Limit          int                    // 0 = DefaultMatchLimit
	Offset         int
}

// MatchListResult contains paginated match records
type MatchListResult struct {
	Records    []records.MatchRecord `json:"records"`
	TotalCount int                   `json:"total_count"`
	Limit      int                   `json:"limit"`
	Offset     int                   `json:"offset"`
}

// DashboardSummary aggregates inputs and results for an overview page
type DashboardSummary struct {
	StripeTransactions int                            `json:"stripe_transactions"`
	LedgerTransactions int                            `json:"ledger_transactions"`
	LinkedToBalance    int                            `json:"linked_to_balance"`
	PendingBalanceLink int                            `json:"pending_balance_link"`
	PassStats          map[records.Pass]records.Stats `json:"pass_stats"`
	BalanceRows        int                            `json:"balance_rows"`
	BalanceMismatches  int                            `json:"balance_mismatches"`
	LastRun            *Run                           `json:"last_run,omitempty"`
}

// RunKind names what a run reconciled.
type RunKind string

const (
	RunTransactions RunKind = "transactions"
	RunBalances     RunKind = "balances"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run represents a reconciliation run record
type Run struct {
	ID          string     `json:"id"`
	Kind        RunKind    `json:"kind"`
	Status      RunStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Summary     string     `json:"summary,omitempty"` // JSON payload of a completed run
	Error       string     `json:"error,omitempty"`
}

// ImportStats counts rows written by an import
type ImportStats struct {
	StripeTransactions  int `json:"stripe_transactions"`
	StripeBalanceEvents int `json:"stripe_balance_events"`
	LedgerTransactions  int `json:"ledger_transactions"`
	LedgerAccounts      int `json:"ledger_accounts"`
}
