package application

import (
	"context"
	"time"

	cartdomain "github.com/commercekit/fulfillment/internal/cart/domain"
	catalogdomain "github.com/commercekit/fulfillment/internal/catalog/domain"
	"github.com/commercekit/fulfillment/internal/events"
	"github.com/commercekit/fulfillment/internal/order/domain"
)

// OrderStore persists orders. Create is the atomic unit of work: it must
// reserve stock for every line, insert the order, and clear the customer's
// cart, committing or rolling back together.
type OrderStore interface {
	Create(ctx context.Context, o domain.Order) error
	GetByID(ctx context.Context, id string) (domain.Order, error)
	ListByCustomer(ctx context.Context, customerID string) ([]domain.Order, error)
	ListAll(ctx context.Context) ([]domain.Order, error)
	MarkPaid(ctx context.Context, id string, result domain.PaymentResult, at time.Time) (domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.Status, at time.Time) (domain.Order, error)
	Cancel(ctx context.Context, id, reason string, at time.Time) (domain.Order, error)
}

type CartReader interface {
	Lines(ctx context.Context, customerID string) ([]cartdomain.Line, error)
}

type Catalog interface {
	FindMany(ctx context.Context, ids []string) (map[string]catalogdomain.Product, error)
}

// EventSink receives business events after a transition commits. It must
// never block the caller.
type EventSink interface {
	Notify(ctx context.Context, ev events.Event)
}
