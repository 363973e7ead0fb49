package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eshaffer321/stripe-ledger-recon/internal/domain/records"
)

// MockRepository is an in-memory implementation of Repository for testing.
// Inputs are plain slices in ingestion order; results are kept per pass.
type MockRepository struct {
	mu sync.Mutex

	StripeTransactions  []records.StripeTransaction
	StripeBalanceEvents []records.StripeBalanceEvent
	LedgerTransactions  []records.LedgerTransaction
	LedgerAccounts      []records.LedgerAccount

	matches  map[records.Pass][]records.MatchRecord
	balances []records.BalanceSummary
	runs     map[string]*Run
	runOrder []string

	// Hooks for test assertions
	ReplaceMatchCalls   int
	ReplaceBalanceCalls int
	LastStatusFilter    string
	LastAllowlist       []string

	// Error injection for testing error paths
	LoadStripeErr     error
	LoadEventsErr     error
	LoadLedgerErr     error
	LoadAccountsErr   error
	ReplaceMatchErr   error
	ReplaceBalanceErr error
	StartRunErr       error
	ListErr           error
}

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		matches: make(map[records.Pass][]records.MatchRecord),
		runs:    make(map[string]*Run),
	}
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

func (m *MockRepository) LoadStripeTransactions(_ context.Context, status string) ([]records.StripeTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastStatusFilter = status
	if m.LoadStripeErr != nil {
		return nil, m.LoadStripeErr
	}
	var out []records.StripeTransaction
	for i, tx := range m.StripeTransactions {
		if v, _ := records.Text(tx.Status); status == "" || v == status {
			tx.Position = i
			out = append(out, tx)
		}
	}
	return out, nil
}

func (m *MockRepository) LoadStripeBalanceEvents(_ context.Context) ([]records.StripeBalanceEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadEventsErr != nil {
		return nil, m.LoadEventsErr
	}
	return slices.Clone(m.StripeBalanceEvents), nil
}

func (m *MockRepository) LoadLedgerTransactions(_ context.Context, filter records.LedgerFilter) ([]records.LedgerTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadLedgerErr != nil {
		return nil, m.LoadLedgerErr
	}
	var out []records.LedgerTransaction
	for _, tx := range m.LedgerTransactions {
		if filter.Matches(tx) {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (m *MockRepository) LoadLedgerAccounts(_ context.Context, allowlist []string) ([]records.LedgerAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastAllowlist = allowlist
	if m.LoadAccountsErr != nil {
		return nil, m.LoadAccountsErr
	}
	var out []records.LedgerAccount
	for _, a := range m.LedgerAccounts {
		if slices.Contains(allowlist, a.Name) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *MockRepository) ReplaceMatchResults(_ context.Context, pass records.Pass, rows []records.MatchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReplaceMatchCalls++
	if m.ReplaceMatchErr != nil {
		return &SinkError{Op: "write", Table: "match_records", Err: m.ReplaceMatchErr}
	}
	m.matches[pass] = slices.Clone(rows)
	return nil
}

func (m *MockRepository) ReplaceBalanceSummary(_ context.Context, rows []records.BalanceSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReplaceBalanceCalls++
	if m.ReplaceBalanceErr != nil {
		return &SinkError{Op: "write", Table: "balance_summaries", Err: m.ReplaceBalanceErr}
	}
	m.balances = slices.Clone(rows)
	return nil
}

// Matches returns the stored records of a pass.
func (m *MockRepository) Matches(pass records.Pass) []records.MatchRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.matches[pass])
}

// Balances returns the stored balance summaries.
func (m *MockRepository) Balances() []records.BalanceSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.balances)
}

func (m *MockRepository) ListMatches(_ context.Context, filters MatchFilters) (*MatchListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	if filters.Limit <= 0 || filters.Limit > DefaultMatchLimit {
		filters.Limit = DefaultMatchLimit
	}

	var all []records.MatchRecord
	for _, pass := range records.Passes {
		if filters.Pass != "" && filters.Pass != pass {
			continue
		}
		for _, r := range m.matches[pass] {
			if filters.Classification != "" && r.Classification != filters.Classification {
				continue
			}
			t := r.SortTime()
			if !filters.From.IsZero() && (t == nil || t.Before(filters.From)) {
				continue
			}
			if !filters.To.IsZero() && (t == nil || !t.Before(filters.To)) {
				continue
			}
			all = append(all, r)
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		ti, tj := all[i].SortTime(), all[j].SortTime()
		if ti == nil || tj == nil {
			return ti != nil && tj == nil
		}
		return ti.After(*tj)
	})

	result := &MatchListResult{Records: []records.MatchRecord{}, TotalCount: len(all), Limit: filters.Limit, Offset: filters.Offset}
	if filters.Offset < len(all) {
		end := min(filters.Offset+filters.Limit, len(all))
		result.Records = append(result.Records, all[filters.Offset:end]...)
	}
	return result, nil
}

func (m *MockRepository) ListBalanceSummaries(_ context.Context, status records.BalanceStatus) ([]records.BalanceSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	out := []records.BalanceSummary{}
	for _, b := range m.balances {
		if status == "" || b.Status == status {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *MockRepository) GetDashboardSummary(_ context.Context) (*DashboardSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	sum := &DashboardSummary{
		StripeTransactions: len(m.StripeTransactions),
		LedgerTransactions: len(m.LedgerTransactions),
		PassStats:          map[records.Pass]records.Stats{},
		BalanceRows:        len(m.balances),
	}
	for _, tx := range m.LedgerTransactions {
		if _, ok := records.Text(tx.Metadata.StripeBalanceTrxID); ok {
			sum.LinkedToBalance++
		}
	}
	sum.PendingBalanceLink = sum.LedgerTransactions - sum.LinkedToBalance
	for pass, rows := range m.matches {
		var st records.Stats
		for _, r := range rows {
			st.Add(r.Classification)
		}
		sum.PassStats[pass] = st
	}
	for _, b := range m.balances {
		if b.Status == records.BalanceMismatch {
			sum.BalanceMismatches++
		}
	}
	if n := len(m.runOrder); n > 0 {
		last := *m.runs[m.runOrder[n-1]]
		sum.LastRun = &last
	}
	return sum, nil
}

func (m *MockRepository) StartRun(_ context.Context, kind RunKind) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StartRunErr != nil {
		return "", m.StartRunErr
	}
	id := uuid.NewString()
	m.runs[id] = &Run{ID: id, Kind: kind, Status: RunRunning, StartedAt: time.Now().UTC()}
	m.runOrder = append(m.runOrder, id)
	return id, nil
}

func (m *MockRepository) CompleteRun(_ context.Context, runID string, summary any) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return m.finish(runID, RunCompleted, string(payload), "")
}

func (m *MockRepository) FailRun(_ context.Context, runID string, runErr error) error {
	msg := "unknown error"
	if runErr != nil {
		msg = runErr.Error()
	}
	return m.finish(runID, RunFailed, "", msg)
}

func (m *MockRepository) finish(runID string, status RunStatus, summary, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	now := time.Now().UTC()
	r.Status = status
	r.CompletedAt = &now
	r.Summary = summary
	r.Error = errMsg
	return nil
}

func (m *MockRepository) ListRuns(_ context.Context, limit int) ([]Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	if limit <= 0 {
		limit = 20
	}
	runs := []Run{}
	for i := len(m.runOrder) - 1; i >= 0 && len(runs) < limit; i-- {
		runs = append(runs, *m.runs[m.runOrder[i]])
	}
	return runs, nil
}

func (m *MockRepository) GetRun(_ context.Context, runID string) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (m *MockRepository) ImportSnapshot(_ context.Context, snap *Snapshot, replace bool) (*ImportStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if replace {
		m.StripeTransactions, m.StripeBalanceEvents, m.LedgerTransactions, m.LedgerAccounts = nil, nil, nil, nil
	}
	m.StripeTransactions = append(m.StripeTransactions, snap.StripeTransactions...)
	m.StripeBalanceEvents = append(m.StripeBalanceEvents, snap.StripeBalanceEvents...)
	m.LedgerTransactions = append(m.LedgerTransactions, snap.LedgerTransactions...)
	m.LedgerAccounts = append(m.LedgerAccounts, snap.LedgerAccounts...)
	return &ImportStats{
		StripeTransactions:  len(snap.StripeTransactions),
		StripeBalanceEvents: len(snap.StripeBalanceEvents),
		LedgerTransactions:  len(snap.LedgerTransactions),
		LedgerAccounts:      len(snap.LedgerAccounts),
	}, nil
}

func (m *MockRepository) Close() error { return nil }
