package dto

import (
	"encoding/json"
	"time"

	"github.com/eshaffer321/stripe-ledger-recon/internal/application/report"
	"github.com/eshaffer321/stripe-ledger-recon/internal/domain/records"
)

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// NewHealthResponse creates a health response with current timestamp.
func NewHealthResponse() HealthResponse {
	return HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// MatchListResponse is returned when listing matches.
// Matches is the flat view; Records carries both sides in full when
// detail=true was requested.
type MatchListResponse struct {
	Matches    []report.MatchRow     `json:"matches"`
	Records    []records.MatchRecord `json:"records,omitempty"`
	Count      int                   `json:"count"`
	TotalCount int                   `json:"total_count"`
	Limit      int                   `json:"limit"`
	Offset     int                   `json:"offset"`
}

// BalanceListResponse is returned when listing balance summaries.
type BalanceListResponse struct {
	Balances   []records.BalanceSummary `json:"balances"`
	Count      int                      `json:"count"`
	Mismatched int                      `json:"mismatched"`
}

// SummaryResponse is the dashboard overview.
type SummaryResponse struct {
	StripeTransactions int           `json:"stripe_transactions"`
	LedgerTransactions int           `json:"ledger_transactions"`
	LinkedToBalance    int           `json:"linked_to_balance"`
	PendingBalanceLink int           `json:"pending_balance_link"`
	StartedMatches     records.Stats `json:"started_matches"`
	SucceededMatches   records.Stats `json:"succeeded_matches"`
	BalanceRows        int           `json:"balance_rows"`
	BalanceMismatches  int           `json:"balance_mismatches"`
	LastRun            *RunResponse  `json:"last_run,omitempty"`
}

// RunResponse represents a reconciliation run in API responses.
type RunResponse struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind"`
	Status      string          `json:"status"`
	StartedAt   string          `json:"started_at"`
	CompletedAt string          `json:"completed_at,omitempty"`
	Summary     json.RawMessage `json:"summary,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// RunListResponse is returned when listing runs.
type RunListResponse struct {
	Runs  []RunResponse `json:"runs"`
	Count int           `json:"count"`
}

// MessageResponse is a generic message response.
type MessageResponse struct {
	Message string `json:"message"`
}
