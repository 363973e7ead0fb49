package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/eshaffer321/stripe-ledger-recon/internal/infrastructure/config"
)

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes run events as JSON to a Kafka topic, keyed by run kind.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

// NewKafkaPublisher creates a publisher for the configured brokers and topic.
func NewKafkaPublisher(cfg config.KafkaConfig, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
		topic:  cfg.Topic,
		logger: logger,
	}
}

// New returns a Kafka publisher when brokers are configured, else a NopPublisher.
func New(cfg config.KafkaConfig, logger *slog.Logger) Publisher {
	if !cfg.Enabled() {
		return NewNopPublisher(logger)
	}
	return NewKafkaPublisher(cfg, logger)
}

func (p *KafkaPublisher) Publish(ctx context.Context, event RunCompleted) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Kind),
		Value: data,
	}); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}

	p.logger.Debug("published run event", "topic", p.topic, "run_id", event.RunID)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
