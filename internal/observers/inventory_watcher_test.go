package observers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commercekit/fulfillment/internal/events"
	"github.com/commercekit/fulfillment/internal/order/domain"
)

// fakeLedger tracks stock in memory for watcher tests.
type fakeLedger struct {
	mu    sync.Mutex
	stock map[string]int
}

func (l *fakeLedger) Stock(_ context.Context, productID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stock[productID], nil
}

func (l *fakeLedger) Release(_ context.Context, productID string, quantity int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stock[productID] += quantity
	return nil
}

func cancelledEvent(lines []domain.OrderLine) events.Event {
	return events.New(events.OrderCancelled, time.Now().UTC(), domain.Order{
		ID:     "000000000000000000000001",
		Status: domain.StatusCancelled,
		Lines:  lines,
	})
}

func TestCancellationRestoresStock(t *testing.T) {
	ledger := &fakeLedger{stock: map[string]int{"p1": 0, "p2": 4}}
	w := NewInventoryWatcher(discardLogger(), ledger, ledger, 10)

	ev := cancelledEvent([]domain.OrderLine{
		{ProductID: "p1", Name: "widget", UnitPrice: decimal.NewFromInt(5), Quantity: 3},
		{ProductID: "p2", Name: "gadget", UnitPrice: decimal.NewFromInt(7), Quantity: 1},
	})
	require.NoError(t, w.Update(context.Background(), ev))

	assert.Equal(t, 3, ledger.stock["p1"])
	assert.Equal(t, 5, ledger.stock["p2"])
}

func TestCreatedEventOnlyReadsStock(t *testing.T) {
	ledger := &fakeLedger{stock: map[string]int{"p1": 2}}
	w := NewInventoryWatcher(discardLogger(), ledger, ledger, 10)

	ev := events.New(events.OrderCreated, time.Now().UTC(), domain.Order{
		ID:    "000000000000000000000002",
		Lines: []domain.OrderLine{{ProductID: "p1", Name: "widget", Quantity: 1}},
	})
	require.NoError(t, w.Update(context.Background(), ev))

	// Low-stock detection never mutates the ledger.
	assert.Equal(t, 2, ledger.stock["p1"])
}
