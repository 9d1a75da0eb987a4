package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/commercekit/fulfillment/internal/order/domain"
)

// Kind is the closed set of business events the bus carries.
type Kind string

const (
	OrderCreated          Kind = "order.created"
	OrderPaymentConfirmed Kind = "order.payment_confirmed"
	OrderCancelled        Kind = "order.cancelled"
	OrderUpdated          Kind = "order.updated"
	OrderShipped          Kind = "order.shipped"
)

// Event pairs a kind with the order snapshot it concerns. Events are not
// persisted; they exist only for the duration of a dispatch.
type Event struct {
	ID    string       `json:"id"`
	Kind  Kind         `json:"kind"`
	At    time.Time    `json:"at"`
	Order domain.Order `json:"order"`
}

func New(kind Kind, at time.Time, o domain.Order) Event {
	return Event{ID: uuid.NewString(), Kind: kind, At: at, Order: o}
}
