package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/yourorg/market-refresh/internal/model"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Producer publishes refresh lifecycle events to a single Kafka topic.
type Producer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewProducer creates a Kafka producer for the given topic.
func NewProducer(brokers []string, topic, clientID string, logger *zap.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		Transport: &kafka.Transport{
			ClientID: clientID,
		},
	}
	return &Producer{writer: writer, logger: logger}
}

// PublishRunCompleted emits one event per finished refresh run. Messages
// are keyed by market so a market's events stay ordered within a partition.
func (p *Producer) PublishRunCompleted(ctx context.Context, event model.RunCompletedEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to marshal run event",
			zap.Int64("run_id", event.RunID),
			zap.Error(err))
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.Market),
		Value: value,
		Time:  time.Now(),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish run event",
			zap.Int64("run_id", event.RunID),
			zap.String("kind", event.Kind),
			zap.Error(err))
		return err
	}

	p.logger.Debug("Run event published",
		zap.Int64("run_id", event.RunID),
		zap.String("kind", event.Kind))
	return nil
}

// Close closes the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
