package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eshaffer321/stripe-ledger-recon/internal/domain/records"
)

// runTimeLayout keeps sub-second order while sorting correctly as text.
const runTimeLayout = "2006-01-02T15:04:05.000000000Z"

func runTime() string {
	return time.Now().UTC().Format(runTimeLayout)
}

// StartRun records the start of a run and returns its ID
func (s *Storage) StartRun(ctx context.Context, kind RunKind) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO reconciliation_runs (id, kind, status, started_at)
		VALUES (?, ?, ?, ?)
	`), id, string(kind), string(RunRunning), runTime())
	if err != nil {
		return "", err
	}
	return id, nil
}

// CompleteRun stores the run's JSON payload and marks it completed
func (s *Storage) CompleteRun(ctx context.Context, runID string, summary any) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode run summary: %w", err)
	}
	return s.finishRun(ctx, runID, RunCompleted, string(payload), nil)
}

// FailRun marks the run failed with the error text
func (s *Storage) FailRun(ctx context.Context, runID string, runErr error) error {
	msg := "unknown error"
	if runErr != nil {
		msg = runErr.Error()
	}
	return s.finishRun(ctx, runID, RunFailed, "", &msg)
}

func (s *Storage) finishRun(ctx context.Context, runID string, status RunStatus, summary string, errMsg *string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE reconciliation_runs
		SET status = ?, completed_at = ?, summary = ?, error_message = ?
		WHERE id = ?
	`), string(status), runTime(), records.Str(summary), errMsg, runID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return nil
}

const runColumns = `id, kind, status, started_at, completed_at, summary, error_message`

func scanRun(row interface{ Scan(...any) error }) (Run, error) {
	var r Run
	var startedAt *time.Time
	var summary, errMsg sql.NullString
	if err := row.Scan(&r.ID, &r.Kind, &r.Status, scanTime(&startedAt), scanTime(&r.CompletedAt), &summary, &errMsg); err != nil {
		return r, err
	}
	if startedAt != nil {
		r.StartedAt = *startedAt
	}
	r.Summary = summary.String
	r.Error = errMsg.String
	return r, nil
}

// ListRuns returns recent runs, newest first
func (s *Storage) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT `+runColumns+`
		FROM reconciliation_runs
		ORDER BY started_at DESC, id
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun retrieves a run by ID
func (s *Storage) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+runColumns+` FROM reconciliation_runs WHERE id = ?`), runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}
