package observers

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/commercekit/fulfillment/internal/events"
	"github.com/commercekit/fulfillment/pkg/tracing"
)

// Producer is the kafka writer surface the stream observer needs.
type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Stream forwards business events to a Kafka topic for external consumers.
// Delivery is best-effort by design: a failed write is logged and dropped,
// never retried or queued.
type Stream struct {
	log      *slog.Logger
	producer Producer
	topic    string
}

func NewStream(log *slog.Logger, producer Producer, topic string) *Stream {
	return &Stream{log: log, producer: producer, topic: topic}
}

func (s *Stream) Name() string { return "stream" }

func (s *Stream) Update(ctx context.Context, ev events.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	headers := []kafka.Header{
		{Key: "event_id", Value: []byte(ev.ID)},
		{Key: "event_type", Value: []byte(ev.Kind)},
	}
	headers = tracing.InjectKafkaHeaders(ctx, headers)

	msg := kafka.Message{
		Topic:   s.topic,
		Key:     []byte(ev.Order.ID),
		Value:   payload,
		Headers: headers,
	}
	if err := s.producer.WriteMessages(ctx, msg); err != nil {
		return err
	}
	s.log.Debug("event streamed", "event_id", ev.ID, "type", ev.Kind)
	return nil
}
