package application

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cartdomain "github.com/commercekit/fulfillment/internal/cart/domain"
	catalogdomain "github.com/commercekit/fulfillment/internal/catalog/domain"
)

type memCarts struct {
	lines map[string][]cartdomain.Line // keyed by customer
}

func newMemCarts() *memCarts {
	return &memCarts{lines: make(map[string][]cartdomain.Line)}
}

func (m *memCarts) Get(_ context.Context, customerID string) (cartdomain.Cart, error) {
	return cartdomain.Cart{CustomerID: customerID, Lines: m.lines[customerID]}, nil
}

func (m *memCarts) AddItem(_ context.Context, customerID, productID string, quantity int) error {
	for i, l := range m.lines[customerID] {
		if l.ProductID == productID {
			m.lines[customerID][i].Quantity += quantity
			return nil
		}
	}
	m.lines[customerID] = append(m.lines[customerID], cartdomain.Line{ProductID: productID, Quantity: quantity})
	return nil
}

func (m *memCarts) SetQuantity(_ context.Context, customerID, productID string, quantity int) error {
	for i, l := range m.lines[customerID] {
		if l.ProductID == productID {
			m.lines[customerID][i].Quantity = quantity
			return nil
		}
	}
	return cartdomain.ErrLineNotFound
}

func (m *memCarts) RemoveItem(_ context.Context, customerID, productID string) error {
	kept := m.lines[customerID][:0]
	for _, l := range m.lines[customerID] {
		if l.ProductID != productID {
			kept = append(kept, l)
		}
	}
	m.lines[customerID] = kept
	return nil
}

func (m *memCarts) Clear(_ context.Context, customerID string) error {
	delete(m.lines, customerID)
	return nil
}

type memCatalog map[string]catalogdomain.Product

func (c memCatalog) Find(_ context.Context, id string) (catalogdomain.Product, error) {
	p, ok := c[id]
	if !ok {
		return catalogdomain.Product{}, catalogdomain.ErrProductNotFound
	}
	return p, nil
}

const widgetID = "000000000000000000000010"

func testService(stock int, active bool) (*Service, *memCarts) {
	carts := newMemCarts()
	catalog := memCatalog{widgetID: {
		ID:     widgetID,
		Name:   "widget",
		Price:  decimal.RequireFromString("19.99"),
		Stock:  stock,
		Active: active,
	}}
	return NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), carts, catalog), carts
}

func TestAddItemAccumulates(t *testing.T) {
	svc, _ := testService(10, true)
	ctx := context.Background()

	require.NoError(t, svc.AddItem(ctx, "cust-1", widgetID, 2))
	require.NoError(t, svc.AddItem(ctx, "cust-1", widgetID, 3))

	cart, err := svc.Get(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, 5, cart.Quantity(widgetID))
}

func TestAddItemCountsExistingCartAgainstStock(t *testing.T) {
	svc, _ := testService(5, true)
	ctx := context.Background()

	require.NoError(t, svc.AddItem(ctx, "cust-1", widgetID, 4))

	err := svc.AddItem(ctx, "cust-1", widgetID, 2)
	var stockErr *catalogdomain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "widget", stockErr.ProductName)

	// The failed add leaves the cart as it was.
	cart, err := svc.Get(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, 4, cart.Quantity(widgetID))
}

func TestAddItemRejectsInactiveProduct(t *testing.T) {
	svc, _ := testService(5, false)
	err := svc.AddItem(context.Background(), "cust-1", widgetID, 1)
	assert.ErrorIs(t, err, catalogdomain.ErrProductNotFound)
}

func TestAddItemRejectsBadQuantity(t *testing.T) {
	svc, _ := testService(5, true)
	for _, qty := range []int{0, -1} {
		assert.ErrorIs(t, svc.AddItem(context.Background(), "cust-1", widgetID, qty), cartdomain.ErrBadQuantity)
	}
}

func TestSetQuantityReplacesNotAccumulates(t *testing.T) {
	svc, _ := testService(10, true)
	ctx := context.Background()

	require.NoError(t, svc.AddItem(ctx, "cust-1", widgetID, 2))
	require.NoError(t, svc.SetQuantity(ctx, "cust-1", widgetID, 7))

	cart, err := svc.Get(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, 7, cart.Quantity(widgetID))
}

func TestSetQuantityBoundedByStock(t *testing.T) {
	svc, _ := testService(5, true)
	ctx := context.Background()
	require.NoError(t, svc.AddItem(ctx, "cust-1", widgetID, 1))

	err := svc.SetQuantity(ctx, "cust-1", widgetID, 6)
	var stockErr *catalogdomain.InsufficientStockError
	assert.ErrorAs(t, err, &stockErr)
}

func TestSetQuantityUnknownLine(t *testing.T) {
	svc, _ := testService(5, true)
	err := svc.SetQuantity(context.Background(), "cust-1", widgetID, 2)
	assert.ErrorIs(t, err, cartdomain.ErrLineNotFound)
}

func TestRemoveAndClear(t *testing.T) {
	svc, _ := testService(10, true)
	ctx := context.Background()

	require.NoError(t, svc.AddItem(ctx, "cust-1", widgetID, 2))
	require.NoError(t, svc.RemoveItem(ctx, "cust-1", widgetID))

	cart, err := svc.Get(ctx, "cust-1")
	require.NoError(t, err)
	assert.True(t, cart.Empty())

	require.NoError(t, svc.AddItem(ctx, "cust-1", widgetID, 2))
	require.NoError(t, svc.Clear(ctx, "cust-1"))
	cart, err = svc.Get(ctx, "cust-1")
	require.NoError(t, err)
	assert.True(t, cart.Empty())
}
