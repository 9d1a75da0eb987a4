package observers

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	catalogdomain "github.com/commercekit/fulfillment/internal/catalog/domain"
	"github.com/commercekit/fulfillment/internal/events"
)

var (
	ordersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fulfillment_orders_created_total",
		Help: "Orders committed by checkout",
	})
	ordersCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fulfillment_orders_cancelled_total",
		Help: "Orders moved to the cancelled state",
	})
)

// SalesRecorder is the rollup side of the analytics store.
type SalesRecorder interface {
	RecordSale(ctx context.Context, day time.Time, category string, orders, units int, revenue decimal.Decimal) error
	RecordCancellation(ctx context.Context, day time.Time, category string, orders int, revenue decimal.Decimal) error
}

// CategoryResolver maps order lines back to product categories.
type CategoryResolver interface {
	FindMany(ctx context.Context, ids []string) (map[string]catalogdomain.Product, error)
}

// Analytics records best-effort sales and cancellation rollups. Failures are
// logged by the bus and dropped.
type Analytics struct {
	log     *slog.Logger
	sales   SalesRecorder
	catalog CategoryResolver
}

func NewAnalytics(log *slog.Logger, sales SalesRecorder, catalog CategoryResolver) *Analytics {
	return &Analytics{log: log, sales: sales, catalog: catalog}
}

func (a *Analytics) Name() string { return "analytics" }

func (a *Analytics) Update(ctx context.Context, ev events.Event) error {
	switch ev.Kind {
	case events.OrderCreated:
		ordersCreated.Inc()
		return a.recordByCategory(ctx, ev, false)
	case events.OrderCancelled:
		ordersCancelled.Inc()
		return a.recordByCategory(ctx, ev, true)
	}
	return nil
}

func (a *Analytics) recordByCategory(ctx context.Context, ev events.Event, cancelled bool) error {
	ids := make([]string, 0, len(ev.Order.Lines))
	for _, l := range ev.Order.Lines {
		ids = append(ids, l.ProductID)
	}
	products, err := a.catalog.FindMany(ctx, ids)
	if err != nil {
		return err
	}

	type bucket struct {
		units   int
		revenue decimal.Decimal
	}
	buckets := map[string]*bucket{}
	for _, l := range ev.Order.Lines {
		category := "uncategorized"
		if p, ok := products[l.ProductID]; ok && p.Category != "" {
			category = p.Category
		}
		b, ok := buckets[category]
		if !ok {
			b = &bucket{revenue: decimal.Zero}
			buckets[category] = b
		}
		b.units += l.Quantity
		b.revenue = b.revenue.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	day := ev.At.UTC()
	for category, b := range buckets {
		if cancelled {
			err = a.sales.RecordCancellation(ctx, day, category, 1, b.revenue)
		} else {
			err = a.sales.RecordSale(ctx, day, category, 1, b.units, b.revenue)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
