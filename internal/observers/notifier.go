package observers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/commercekit/fulfillment/internal/events"
)

// ErrNoEmail is returned by a Directory when the customer has no known
// address. The notifier logs and skips; it never fails checkout.
var ErrNoEmail = errors.New("no email on record")

// Mailer is the external email-delivery capability.
type Mailer interface {
	Send(ctx context.Context, recipient, template string, data map[string]any) error
}

// Directory resolves a customer id to an email address. Customer records
// live with an external identity service; this is just the lookup edge.
type Directory interface {
	EmailFor(ctx context.Context, customerID string) (string, error)
}

// Notifier emails customers on order transitions. Confirmation for gateway
// payment methods waits for settlement so nobody is told "confirmed" before
// their card is charged.
type Notifier struct {
	log       *slog.Logger
	mailer    Mailer
	directory Directory
}

func NewNotifier(log *slog.Logger, mailer Mailer, directory Directory) *Notifier {
	return &Notifier{log: log, mailer: mailer, directory: directory}
}

func (n *Notifier) Name() string { return "notifier" }

func (n *Notifier) Update(ctx context.Context, ev events.Event) error {
	var template string
	switch ev.Kind {
	case events.OrderCreated:
		if ev.Order.PaymentMethod.RequiresGateway() {
			// Confirmation mail is sent on OrderPaymentConfirmed instead.
			return nil
		}
		template = "orderConfirmation"
	case events.OrderPaymentConfirmed:
		template = "paymentConfirmed"
	case events.OrderCancelled:
		template = "orderCancelled"
	case events.OrderShipped:
		template = "orderShipped"
	case events.OrderUpdated:
		template = "orderUpdated"
	default:
		return nil
	}

	to, err := n.directory.EmailFor(ctx, ev.Order.CustomerID)
	if err != nil {
		if errors.Is(err, ErrNoEmail) {
			n.log.Warn("no email for customer, skipping notification",
				"customer_id", ev.Order.CustomerID, "event", ev.Kind)
			return nil
		}
		return err
	}

	data := map[string]any{
		"orderId":    ev.Order.ID,
		"totalPrice": ev.Order.TotalPrice,
		"status":     ev.Order.Status,
	}
	if err := n.mailer.Send(ctx, to, template, data); err != nil {
		return err
	}
	n.log.Info("notification sent", "template", template, "order_id", ev.Order.ID)
	return nil
}
