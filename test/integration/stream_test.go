package integration

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	segmentio "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commercekit/fulfillment/internal/events"
	eventskafka "github.com/commercekit/fulfillment/internal/events/kafka"
	"github.com/commercekit/fulfillment/internal/observers"
	"github.com/commercekit/fulfillment/internal/order/domain"
)

func TestStreamRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("containers")
	}
	ctx := context.Background()
	env, err := Setup(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { env.Teardown(context.Background()) })

	const topic = "fulfillment.events"
	writer := eventskafka.NewWriter(env.Brokers)
	writer.AllowAutoTopicCreation = true
	t.Cleanup(func() { _ = writer.Close() })

	stream := observers.NewStream(slog.New(slog.NewTextHandler(io.Discard, nil)), writer, topic)

	order := domain.Order{ID: "aaaaaaaaaaaaaaaaaaaa00ff", CustomerID: "alice", Status: domain.StatusPending}
	ev := events.New(events.OrderCreated, time.Now().UTC(), order)
	require.NoError(t, stream.Update(ctx, ev))

	reader := segmentio.NewReader(segmentio.ReaderConfig{
		Brokers:  env.Brokers,
		Topic:    topic,
		GroupID:  "stream-test",
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	t.Cleanup(func() { _ = reader.Close() })

	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	msg, err := reader.ReadMessage(readCtx)
	require.NoError(t, err)

	assert.Equal(t, order.ID, string(msg.Key))
	var got events.Event
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, ev.ID, got.ID)
	assert.Equal(t, events.OrderCreated, got.Kind)
	assert.Equal(t, "alice", got.Order.CustomerID)

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, ev.ID, headers["event_id"])
	assert.Equal(t, string(events.OrderCreated), headers["event_type"])
}
