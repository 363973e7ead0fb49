// Package events publishes notifications about finished reconciliation runs.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// RunCompleted announces the outcome of one reconciliation run.
type RunCompleted struct {
	RunID      string          `json:"run_id"`
	Kind       string          `json:"kind"`
	Status     string          `json:"status"`
	Summary    json.RawMessage `json:"summary,omitempty"`
	Error      string          `json:"error,omitempty"`
	FinishedAt time.Time       `json:"finished_at"`
}

// Publisher sends run events somewhere.
type Publisher interface {
	Publish(ctx context.Context, event RunCompleted) error
	Close() error
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct {
	logger *slog.Logger
}

// NewNopPublisher creates a publisher that only logs at debug level.
func NewNopPublisher(logger *slog.Logger) *NopPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NopPublisher{logger: logger}
}

func (p *NopPublisher) Publish(_ context.Context, event RunCompleted) error {
	p.logger.Debug("event publishing disabled", "run_id", event.RunID, "kind", event.Kind)
	return nil
}

func (p *NopPublisher) Close() error { return nil }
