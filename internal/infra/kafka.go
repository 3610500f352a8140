package infra

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/starveil/economy/internal/domain"
)

// EventPublisher mirrors economy events onto a Kafka topic. If
// disabled, publishes are no-ops; a publish failure never fails the
// economic operation it mirrors.
type EventPublisher struct {
	writer  *kafka.Writer
	topic   string
	logger  *slog.Logger
	enabled bool
}

// NewEventPublisher creates the publisher. If brokers is empty or
// enabled is false, publishing is disabled.
func NewEventPublisher(brokers, topic string, enabled bool, logger *slog.Logger) *EventPublisher {
	if !enabled || brokers == "" {
		logger.Info("event publisher disabled")
		return &EventPublisher{enabled: false, logger: logger}
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(brokers, ",")...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}

	logger.Info("event publisher initialized", "brokers", brokers, "topic", topic)
	return &EventPublisher{writer: w, topic: topic, logger: logger, enabled: true}
}

// Publish sends one event, keyed by its partition key. Best-effort:
// errors are logged, not returned.
func (p *EventPublisher) Publish(ctx context.Context, event domain.EconomyEvent) {
	if p == nil || !p.enabled {
		return
	}

	value, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("marshal economy event", "error", err, "event_type", event.EventType)
		return
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.PartitionKey),
		Value: value,
	})
	if err != nil {
		p.logger.Error("publish economy event", "error", err,
			"event_type", event.EventType, "room_id", event.RoomID)
	}
}

// Close shuts down the Kafka writer.
func (p *EventPublisher) Close() error {
	if p != nil && p.writer != nil {
		return p.writer.Close()
	}
	return nil
}
