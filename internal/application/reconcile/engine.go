// Package reconcile wires the record store, the matcher, the balance
// aggregator and the result sink into the two reconciliation entry points.
//
// Both entry points load their inputs, compute in memory, and only then
// replace the result tables, so a failure before the write leaves previous
// results untouched. Every run is recorded and announced on the event
// publisher.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/stripe-ledger-recon/internal/domain/balance"
	"github.com/eshaffer321/stripe-ledger-recon/internal/domain/matcher"
	"github.com/eshaffer321/stripe-ledger-recon/internal/domain/records"
	"github.com/eshaffer321/stripe-ledger-recon/internal/infrastructure/config"
	"github.com/eshaffer321/stripe-ledger-recon/internal/infrastructure/events"
	"github.com/eshaffer321/stripe-ledger-recon/internal/infrastructure/storage"
)

// Config holds the run parameters.
type Config struct {
	PaidStatus       string
	AccountAllowlist []string
	Tolerance        decimal.Decimal
}

// DefaultConfig returns the standard run parameters.
func DefaultConfig() Config {
	return Config{
		PaidStatus:       records.DefaultPaidStatus,
		AccountAllowlist: records.DefaultAccountAllowlist,
		Tolerance:        balance.DefaultTolerance,
	}
}

// ConfigFrom converts the application configuration.
func ConfigFrom(cfg config.ReconciliationConfig) (Config, error) {
	tol, err := cfg.ToleranceDecimal()
	if err != nil {
		return Config{}, err
	}
	return Config{
		PaidStatus:       cfg.PaidStatus,
		AccountAllowlist: cfg.AccountAllowlist,
		Tolerance:        tol,
	}, nil
}

// TransactionSummary is the result of a transaction reconciliation.
type TransactionSummary struct {
	Started   records.Stats `json:"started_matches"`
	Succeeded records.Stats `json:"succeeded_matches"`
}

// BalanceOutcome is the result of a balance reconciliation.
type BalanceOutcome struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	Rows          int    `json:"rows"`
	Matched       int    `json:"matched"`
	Mismatched    int    `json:"mismatched"`
	SoftErrors    int    `json:"soft_errors"`
	DroppedEvents int    `json:"dropped_events"`
}

// AllSummary is the result of running both reconciliations.
type AllSummary struct {
	Transactions *TransactionSummary `json:"transactions,omitempty"`
	Balances     *BalanceOutcome     `json:"balances,omitempty"`
}

// Engine runs reconciliations against a repository.
type Engine struct {
	repo       storage.Repository
	publisher  events.Publisher
	matcher    *matcher.Matcher
	aggregator *balance.Aggregator
	config     Config
	logger     *slog.Logger
}

// NewEngine creates an engine. A nil publisher disables events and a nil
// logger uses slog.Default().
func NewEngine(repo storage.Repository, publisher events.Publisher, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if publisher == nil {
		publisher = events.NewNopPublisher(logger)
	}
	if cfg.PaidStatus == "" {
		cfg.PaidStatus = records.DefaultPaidStatus
	}
	return &Engine{
		repo:       repo,
		publisher:  publisher,
		matcher:    matcher.NewMatcher(logger.With("system", "matcher")),
		aggregator: balance.NewAggregator(balance.Config{Tolerance: cfg.Tolerance}, logger.With("system", "balance")),
		config:     cfg,
		logger:     logger,
	}
}

// RunTransactionReconciliation matches Paid stripe charges against both ledger
// candidate pools and replaces the stored match records of each pass.
// Nothing is written unless both passes succeed.
func (e *Engine) RunTransactionReconciliation(ctx context.Context) (*TransactionSummary, error) {
	return track(ctx, e, storage.RunTransactions, e.reconcileTransactions)
}

// RunBalanceReconciliation recomputes the balance summary table.
func (e *Engine) RunBalanceReconciliation(ctx context.Context) (*BalanceOutcome, error) {
	return track(ctx, e, storage.RunBalances, e.reconcileBalances)
}

// RunAll runs both reconciliations concurrently. The summary holds whatever
// succeeded; the error joins every failure.
func (e *Engine) RunAll(ctx context.Context) (*AllSummary, error) {
	var (
		wg      sync.WaitGroup
		summary AllSummary
		txErr   error
		balErr  error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		summary.Transactions, txErr = e.RunTransactionReconciliation(ctx)
	}()
	go func() {
		defer wg.Done()
		summary.Balances, balErr = e.RunBalanceReconciliation(ctx)
	}()
	wg.Wait()

	return &summary, errors.Join(txErr, balErr)
}

func (e *Engine) reconcileTransactions(ctx context.Context) (*TransactionSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stripe, err := e.repo.LoadStripeTransactions(ctx, e.config.PaidStatus)
	if err != nil {
		return nil, fmt.Errorf("load stripe transactions: %w", err)
	}

	results := make([]*matcher.Result, 0, len(records.Passes))
	for _, pass := range records.Passes {
		ledger, err := e.repo.LoadLedgerTransactions(ctx, records.CandidatesFor(pass))
		if err != nil {
			return nil, fmt.Errorf("load %s ledger candidates: %w", pass, err)
		}
		result, err := e.matcher.Match(pass, stripe, ledger)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	summary := &TransactionSummary{}
	for _, result := range results {
		if err := e.repo.ReplaceMatchResults(ctx, result.Pass, result.Records); err != nil {
			return nil, err
		}
		if result.Pass == records.PassSucceeded {
			summary.Succeeded = result.Stats
		} else {
			summary.Started = result.Stats
		}
	}

	e.logger.Info("transaction reconciliation complete",
		"stripe", len(stripe),
		"started_match", summary.Started.Match,
		"started_stripe_only", summary.Started.StripeOnly,
		"started_ledger_only", summary.Started.LedgerOnly,
		"succeeded_match", summary.Succeeded.Match,
		"succeeded_stripe_only", summary.Succeeded.StripeOnly,
		"succeeded_ledger_only", summary.Succeeded.LedgerOnly)
	return summary, nil
}

func (e *Engine) reconcileBalances(ctx context.Context) (*BalanceOutcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	balanceEvents, err := e.repo.LoadStripeBalanceEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("load stripe balance events: %w", err)
	}
	started, err := e.repo.LoadLedgerTransactions(ctx, records.StartedCandidates())
	if err != nil {
		return nil, fmt.Errorf("load started ledger candidates: %w", err)
	}
	accounts, err := e.repo.LoadLedgerAccounts(ctx, e.config.AccountAllowlist)
	if err != nil {
		return nil, fmt.Errorf("load ledger accounts: %w", err)
	}

	result := e.aggregator.Reconcile(balanceEvents, started, accounts)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := e.repo.ReplaceBalanceSummary(ctx, result.Summaries); err != nil {
		return nil, err
	}

	matched := result.Matched()
	outcome := &BalanceOutcome{
		Status:        "ok",
		Message:       fmt.Sprintf("balance summary updated: %d rows, %d mismatched", len(result.Summaries), len(result.Summaries)-matched),
		Rows:          len(result.Summaries),
		Matched:       matched,
		Mismatched:    len(result.Summaries) - matched,
		SoftErrors:    len(result.SoftErrors),
		DroppedEvents: result.DroppedEvents,
	}
	e.logger.Info("balance reconciliation complete",
		"rows", outcome.Rows,
		"matched", outcome.Matched,
		"mismatched", outcome.Mismatched,
		"soft_errors", outcome.SoftErrors)
	return outcome, nil
}

// track records a run around fn and publishes its outcome.
func track[T any](ctx context.Context, e *Engine, kind storage.RunKind, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	runID, err := e.repo.StartRun(ctx, kind)
	if err != nil {
		return zero, fmt.Errorf("start %s run: %w", kind, err)
	}
	logger := e.logger.With("run_id", runID, "kind", kind)
	logger.Info("reconciliation started")

	event := events.RunCompleted{RunID: runID, Kind: string(kind)}
	result, runErr := fn(ctx)

	// Bookkeeping must outlive a cancelled caller.
	bookCtx := context.WithoutCancel(ctx)
	if runErr != nil {
		logger.Error("reconciliation failed", "error", runErr)
		if err := e.repo.FailRun(bookCtx, runID, runErr); err != nil {
			logger.Warn("failed to record run failure", "error", err)
		}
		event.Status = string(storage.RunFailed)
		event.Error = runErr.Error()
	} else {
		if err := e.repo.CompleteRun(bookCtx, runID, result); err != nil {
			logger.Warn("failed to record run completion", "error", err)
		}
		event.Status = string(storage.RunCompleted)
		if payload, err := json.Marshal(result); err == nil {
			event.Summary = payload
		}
	}

	event.FinishedAt = time.Now().UTC()
	if err := e.publisher.Publish(bookCtx, event); err != nil {
		logger.Warn("failed to publish run event", "error", err)
	}

	if runErr != nil {
		return zero, runErr
	}
	return result, nil
}
