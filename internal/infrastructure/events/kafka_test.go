package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/stripe-ledger-recon/internal/infrastructure/config"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w, topic: "reconciliation.runs", logger: slog.Default()}

	event := RunCompleted{
		RunID:      "run-1",
		Kind:       "transactions",
		Status:     "completed",
		Summary:    json.RawMessage(`{"started_matches":{"match":1}}`),
		FinishedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.Publish(context.Background(), event))

	require.Len(t, w.messages, 1)
	assert.Equal(t, "transactions", string(w.messages[0].Key))

	var decoded RunCompleted
	require.NoError(t, json.Unmarshal(w.messages[0].Value, &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	assert.JSONEq(t, `{"started_matches":{"match":1}}`, string(decoded.Summary))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := &KafkaPublisher{writer: w, topic: "runs", logger: slog.Default()}

	err := p.Publish(context.Background(), RunCompleted{RunID: "r"})

	assert.ErrorContains(t, err, "broker down")
	assert.ErrorContains(t, err, "runs")
}

func TestNew_SelectsImplementation(t *testing.T) {
	_, nop := New(config.KafkaConfig{}, nil).(*NopPublisher)
	assert.True(t, nop)

	pub := New(config.KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "runs"}, nil)
	_, isKafka := pub.(*KafkaPublisher)
	assert.True(t, isKafka)
	assert.NoError(t, pub.Close())
}
