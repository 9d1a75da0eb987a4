package observers

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commercekit/fulfillment/internal/events"
	"github.com/commercekit/fulfillment/internal/order/domain"
)

type sentMail struct {
	to       string
	template string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *fakeMailer) Send(_ context.Context, recipient, template string, _ map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to: recipient, template: template})
	return nil
}

type mapDirectory map[string]string

func (d mapDirectory) EmailFor(_ context.Context, customerID string) (string, error) {
	email, ok := d[customerID]
	if !ok {
		return "", ErrNoEmail
	}
	return email, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func orderEvent(kind events.Kind, method domain.PaymentMethod) events.Event {
	return events.New(kind, time.Now().UTC(), domain.Order{
		ID:            "000000000000000000000001",
		CustomerID:    "cust-1",
		PaymentMethod: method,
	})
}

func TestBankTransferConfirmedImmediately(t *testing.T) {
	mailer := &fakeMailer{}
	n := NewNotifier(discardLogger(), mailer, mapDirectory{"cust-1": "a@example.com"})

	err := n.Update(context.Background(), orderEvent(events.OrderCreated, domain.PaymentBankTransfer))
	require.NoError(t, err)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "orderConfirmation", mailer.sent[0].template)
	assert.Equal(t, "a@example.com", mailer.sent[0].to)
}

func TestGatewayMethodsWaitForSettlement(t *testing.T) {
	mailer := &fakeMailer{}
	n := NewNotifier(discardLogger(), mailer, mapDirectory{"cust-1": "a@example.com"})

	// No mail at creation for card payments...
	require.NoError(t, n.Update(context.Background(), orderEvent(events.OrderCreated, domain.PaymentCreditCard)))
	assert.Empty(t, mailer.sent)

	// ...only once payment settles.
	require.NoError(t, n.Update(context.Background(), orderEvent(events.OrderPaymentConfirmed, domain.PaymentCreditCard)))
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "paymentConfirmed", mailer.sent[0].template)
}

func TestLifecycleTemplates(t *testing.T) {
	cases := []struct {
		kind     events.Kind
		template string
	}{
		{events.OrderCancelled, "orderCancelled"},
		{events.OrderShipped, "orderShipped"},
		{events.OrderUpdated, "orderUpdated"},
	}
	for _, tc := range cases {
		mailer := &fakeMailer{}
		n := NewNotifier(discardLogger(), mailer, mapDirectory{"cust-1": "a@example.com"})
		require.NoError(t, n.Update(context.Background(), orderEvent(tc.kind, domain.PaymentCreditCard)))
		require.Len(t, mailer.sent, 1)
		assert.Equal(t, tc.template, mailer.sent[0].template)
	}
}

func TestMissingEmailSkippedNotFailed(t *testing.T) {
	mailer := &fakeMailer{}
	n := NewNotifier(discardLogger(), mailer, mapDirectory{})

	err := n.Update(context.Background(), orderEvent(events.OrderCancelled, domain.PaymentCreditCard))
	assert.NoError(t, err)
	assert.Empty(t, mailer.sent)
}
