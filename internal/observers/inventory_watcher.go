package observers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	catalogdomain "github.com/commercekit/fulfillment/internal/catalog/domain"
	"github.com/commercekit/fulfillment/internal/events"
)

var stockLevel = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "fulfillment_product_stock",
	Help: "Stock remaining for products seen in recent orders",
}, []string{"product_id"})

// StockReader re-reads current stock after a sale.
type StockReader interface {
	Stock(ctx context.Context, productID string) (int, error)
}

// Releaser returns reserved quantity to stock.
type Releaser interface {
	Release(ctx context.Context, productID string, quantity int) error
}

// InventoryWatcher flags low and zero stock after each sale and restores
// stock when an order is cancelled. Alert delivery is someone else's job;
// this core only detects and logs.
type InventoryWatcher struct {
	log          *slog.Logger
	stock        StockReader
	ledger       Releaser
	lowThreshold int
}

func NewInventoryWatcher(log *slog.Logger, stock StockReader, ledger Releaser, lowThreshold int) *InventoryWatcher {
	if lowThreshold <= 0 {
		lowThreshold = 10
	}
	return &InventoryWatcher{log: log, stock: stock, ledger: ledger, lowThreshold: lowThreshold}
}

func (w *InventoryWatcher) Name() string { return "inventory-watcher" }

func (w *InventoryWatcher) Update(ctx context.Context, ev events.Event) error {
	switch ev.Kind {
	case events.OrderCreated:
		return w.checkLevels(ctx, ev)
	case events.OrderCancelled:
		return w.restoreStock(ctx, ev)
	}
	return nil
}

func (w *InventoryWatcher) checkLevels(ctx context.Context, ev events.Event) error {
	var firstErr error
	for _, line := range ev.Order.Lines {
		stock, err := w.stock.Stock(ctx, line.ProductID)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		stockLevel.WithLabelValues(line.ProductID).Set(float64(stock))
		switch {
		case stock == 0:
			w.log.Error("product out of stock", "product_id", line.ProductID, "name", line.Name)
		case stock < w.lowThreshold:
			w.log.Warn("product stock low",
				"product_id", line.ProductID, "name", line.Name, "stock", stock)
		}
	}
	return firstErr
}

// restoreStock releases every line's quantity exactly once per cancellation;
// the terminal cancelled state means no order is ever cancelled twice.
func (w *InventoryWatcher) restoreStock(ctx context.Context, ev events.Event) error {
	var firstErr error
	for _, line := range ev.Order.Lines {
		err := w.ledger.Release(ctx, line.ProductID, line.Quantity)
		if err != nil && !errors.Is(err, catalogdomain.ErrProductNotFound) {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		w.log.Info("stock restored",
			"product_id", line.ProductID, "quantity", line.Quantity, "order_id", ev.Order.ID)
	}
	return firstErr
}
