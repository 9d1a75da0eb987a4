package application

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/commercekit/fulfillment/internal/events"
	"github.com/commercekit/fulfillment/internal/order/domain"
)

// Workflow orchestrates the checkout transaction and the order state
// transitions. Event notification always happens after commit, outside the
// transaction, so a broken observer can never roll back an order.
type Workflow struct {
	log     *slog.Logger
	orders  OrderStore
	carts   CartReader
	catalog Catalog
	pricing PricingPolicy
	bus     EventSink
	tracer  trace.Tracer
	now     func() time.Time
}

func NewWorkflow(log *slog.Logger, orders OrderStore, carts CartReader, catalog Catalog, pricing PricingPolicy, bus EventSink) *Workflow {
	return &Workflow{
		log:     log,
		orders:  orders,
		carts:   carts,
		catalog: catalog,
		pricing: pricing,
		bus:     bus,
		tracer:  otel.Tracer("order-workflow"),
		now:     time.Now,
	}
}

// CreateOrder converts the customer's cart into a priced, persisted order.
// Stock reservation, order insertion, and cart clearing commit atomically;
// on any failure nothing of the attempt remains.
func (w *Workflow) CreateOrder(ctx context.Context, customerID string, addr domain.Address, method domain.PaymentMethod) (domain.Order, error) {
	ctx, span := w.tracer.Start(ctx, "CreateOrder",
		trace.WithAttributes(attribute.String("customer.id", customerID)))
	defer span.End()

	if err := addr.Validate(); err != nil {
		return domain.Order{}, err
	}
	if !method.Valid() {
		return domain.Order{}, &domain.ValidationError{Field: "paymentMethod"}
	}

	lines, err := w.carts.Lines(ctx, customerID)
	if err != nil {
		return domain.Order{}, err
	}
	if len(lines) == 0 {
		return domain.Order{}, domain.ErrEmptyCart
	}

	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	products, err := w.catalog.FindMany(ctx, ids)
	if err != nil {
		return domain.Order{}, err
	}

	// Snapshot the lines from catalog prices, never client-supplied ones.
	orderLines := make([]domain.OrderLine, 0, len(lines))
	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok || !p.Active {
			return domain.Order{}, &domain.InvalidLineError{ProductID: l.ProductID}
		}
		orderLines = append(orderLines, domain.OrderLine{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  l.Quantity,
		})
	}

	quote := w.pricing.Price(orderLines)
	now := w.now().UTC()
	o := domain.Order{
		ID:              domain.NewOrderID(),
		CustomerID:      customerID,
		Lines:           orderLines,
		ShippingAddress: addr,
		PaymentMethod:   method,
		ItemsPrice:      quote.ItemsPrice,
		ShippingPrice:   quote.ShippingPrice,
		TaxPrice:        quote.TaxPrice,
		TotalPrice:      quote.TotalPrice,
		Status:          domain.StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := w.orders.Create(ctx, o); err != nil {
		return domain.Order{}, err
	}

	created, err := w.orders.GetByID(ctx, o.ID)
	if err != nil {
		// Committed but unreadable; surface the order we built.
		w.log.Error("re-read of created order failed", "order_id", o.ID, "err", err)
		created = o
	}

	w.log.Info("order created",
		"order_id", created.ID, "customer_id", customerID, "total", created.TotalPrice)
	w.bus.Notify(ctx, events.New(events.OrderCreated, now, created))
	return created, nil
}

// GetOrder enforces ownership: a non-empty requesterID must match the
// order's customer. Admin surfaces pass an empty requesterID.
func (w *Workflow) GetOrder(ctx context.Context, id, requesterID string) (domain.Order, error) {
	if !domain.ValidOrderID(id) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	o, err := w.orders.GetByID(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if requesterID != "" && requesterID != o.CustomerID {
		return domain.Order{}, domain.ErrForbidden
	}
	return o, nil
}

func (w *Workflow) GetUserOrders(ctx context.Context, customerID string) ([]domain.Order, error) {
	return w.orders.ListByCustomer(ctx, customerID)
}

func (w *Workflow) GetAllOrders(ctx context.Context) ([]domain.Order, error) {
	return w.orders.ListAll(ctx)
}

// UpdateOrderPayment marks the order paid with the gateway's settlement
// result. The transition is idempotent: repeating it leaves the persisted
// state unchanged.
func (w *Workflow) UpdateOrderPayment(ctx context.Context, id string, result domain.PaymentResult) (domain.Order, error) {
	ctx, span := w.tracer.Start(ctx, "UpdateOrderPayment")
	defer span.End()

	if !domain.ValidOrderID(id) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	now := w.now().UTC()
	o, err := w.orders.MarkPaid(ctx, id, result, now)
	if err != nil {
		return domain.Order{}, err
	}

	w.log.Info("order payment confirmed", "order_id", o.ID, "payment_id", result.ID)
	w.bus.Notify(ctx, events.New(events.OrderPaymentConfirmed, now, o))
	return o, nil
}

// UpdateOrderStatus moves the order along pending -> shipped. Cancellation
// has its own entry point; a cancelled order never transitions again.
func (w *Workflow) UpdateOrderStatus(ctx context.Context, id string, status domain.Status) (domain.Order, error) {
	if !domain.ValidOrderID(id) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if !status.Valid() || status == domain.StatusCancelled {
		return domain.Order{}, &domain.ValidationError{Field: "status"}
	}
	now := w.now().UTC()
	o, err := w.orders.UpdateStatus(ctx, id, status, now)
	if err != nil {
		return domain.Order{}, err
	}

	kind := events.OrderUpdated
	if status == domain.StatusShipped {
		kind = events.OrderShipped
	}
	w.log.Info("order status updated", "order_id", o.ID, "status", status)
	w.bus.Notify(ctx, events.New(kind, now, o))
	return o, nil
}

// CancelOrder moves the order to its terminal state. Stock restoration is an
// observer concern, triggered by the cancellation event.
func (w *Workflow) CancelOrder(ctx context.Context, id, reason string) (domain.Order, error) {
	ctx, span := w.tracer.Start(ctx, "CancelOrder")
	defer span.End()

	if !domain.ValidOrderID(id) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	now := w.now().UTC()
	o, err := w.orders.Cancel(ctx, id, reason, now)
	if err != nil {
		return domain.Order{}, err
	}

	w.log.Info("order cancelled", "order_id", o.ID, "reason", reason)
	w.bus.Notify(ctx, events.New(events.OrderCancelled, now, o))
	return o, nil
}
