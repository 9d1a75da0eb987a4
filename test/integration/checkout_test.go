package integration

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cartpg "github.com/commercekit/fulfillment/internal/cart/infrastructure/postgres"
	catalogdomain "github.com/commercekit/fulfillment/internal/catalog/domain"
	catalogpg "github.com/commercekit/fulfillment/internal/catalog/infrastructure/postgres"
	"github.com/commercekit/fulfillment/internal/events"
	"github.com/commercekit/fulfillment/internal/observers"
	orderapp "github.com/commercekit/fulfillment/internal/order/application"
	"github.com/commercekit/fulfillment/internal/order/domain"
	orderpg "github.com/commercekit/fulfillment/internal/order/infrastructure/postgres"
	storage "github.com/commercekit/fulfillment/internal/storage/postgres"
)

const (
	lastUnitID  = "aaaaaaaaaaaaaaaaaaaa0001"
	plentifulID = "aaaaaaaaaaaaaaaaaaaa0002"
	scarceID    = "aaaaaaaaaaaaaaaaaaaa0003"
)

type stack struct {
	pool     *pgxpool.Pool
	catalog  *catalogpg.Repository
	carts    *cartpg.Store
	bus      *events.Bus
	workflow *orderapp.Workflow
}

func newStack(ctx context.Context, t *testing.T, pgURL string) *stack {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	pool, err := storage.Connect(ctx, pgURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, storage.Migrate(ctx, pool))

	catalog := catalogpg.NewRepository(log, pool)
	carts := cartpg.NewStore(log, pool)
	orders := orderpg.NewRepository(log, pool, catalog, carts)
	bus := events.NewBus(log)
	workflow := orderapp.NewWorkflow(log, orders, carts, catalog, orderapp.DefaultPricingPolicy(), bus)

	require.NoError(t, catalog.Seed(ctx, []catalogdomain.Product{
		{ID: lastUnitID, Name: "last unit", Category: "gadgets", Price: decimal.RequireFromString("25.00"), Stock: 1, Active: true},
		{ID: plentifulID, Name: "plentiful", Category: "gadgets", Price: decimal.RequireFromString("10.00"), Stock: 100, Active: true},
		{ID: scarceID, Name: "scarce", Category: "widgets", Price: decimal.RequireFromString("5.00"), Stock: 2, Active: true},
	}))
	return &stack{pool: pool, catalog: catalog, carts: carts, bus: bus, workflow: workflow}
}

func shippingAddr() domain.Address {
	return domain.Address{
		Street: "1 Main St", City: "Springfield", State: "OR", ZipCode: "97477", Country: "US",
	}
}

func TestCheckout(t *testing.T) {
	if testing.Short() {
		t.Skip("containers")
	}
	ctx := context.Background()
	env, err := Setup(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { env.Teardown(context.Background()) })

	s := newStack(ctx, t, env.PGURL)

	t.Run("two buyers one unit", func(t *testing.T) {
		require.NoError(t, s.carts.AddItem(ctx, "alice", lastUnitID, 1))
		require.NoError(t, s.carts.AddItem(ctx, "bob", lastUnitID, 1))

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i, customer := range []string{"alice", "bob"} {
			i, customer := i, customer
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = s.workflow.CreateOrder(ctx, customer, shippingAddr(), domain.PaymentCreditCard)
			}()
		}
		wg.Wait()
		s.bus.Drain()

		var won, lost int
		for _, err := range errs {
			if err == nil {
				won++
				continue
			}
			lost++
			assert.ErrorIs(t, err, catalogdomain.ErrInsufficientStock)
		}
		assert.Equal(t, 1, won)
		assert.Equal(t, 1, lost)

		stock, err := s.catalog.Stock(ctx, lastUnitID)
		require.NoError(t, err)
		assert.Equal(t, 0, stock)
	})

	t.Run("failed checkout leaves nothing behind", func(t *testing.T) {
		require.NoError(t, s.carts.AddItem(ctx, "carol", plentifulID, 2))
		require.NoError(t, s.carts.AddItem(ctx, "carol", scarceID, 5)) // only 2 in stock

		_, err := s.workflow.CreateOrder(ctx, "carol", shippingAddr(), domain.PaymentCreditCard)
		var stockErr *catalogdomain.InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
		assert.Equal(t, "scarce", stockErr.ProductName)

		// The first line's reservation rolled back with the transaction.
		stock, err := s.catalog.Stock(ctx, plentifulID)
		require.NoError(t, err)
		assert.Equal(t, 100, stock)

		cart, err := s.carts.Get(ctx, "carol")
		require.NoError(t, err)
		assert.Len(t, cart.Lines, 2)

		all, err := s.workflow.GetAllOrders(ctx)
		require.NoError(t, err)
		for _, o := range all {
			assert.NotEqual(t, "carol", o.CustomerID)
		}
	})

	t.Run("cancellation restores stock", func(t *testing.T) {
		log := slog.New(slog.NewTextHandler(io.Discard, nil))
		s.bus.Attach(observers.NewInventoryWatcher(log, s.catalog, s.catalog, 10))

		require.NoError(t, s.carts.AddItem(ctx, "dave", plentifulID, 3))
		o, err := s.workflow.CreateOrder(ctx, "dave", shippingAddr(), domain.PaymentBankTransfer)
		require.NoError(t, err)
		s.bus.Drain()

		stock, err := s.catalog.Stock(ctx, plentifulID)
		require.NoError(t, err)
		assert.Equal(t, 97, stock)

		cancelled, err := s.workflow.CancelOrder(ctx, o.ID, "changed my mind")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCancelled, cancelled.Status)
		assert.Equal(t, "changed my mind", cancelled.CancellationReason)
		s.bus.Drain()

		stock, err = s.catalog.Stock(ctx, plentifulID)
		require.NoError(t, err)
		assert.Equal(t, 100, stock)

		// Cancellation is terminal.
		_, err = s.workflow.CancelOrder(ctx, o.ID, "again")
		assert.ErrorIs(t, err, domain.ErrAlreadyCancelled)
		_, err = s.workflow.UpdateOrderStatus(ctx, o.ID, domain.StatusShipped)
		assert.Error(t, err)
	})

	t.Run("payment settles once", func(t *testing.T) {
		require.NoError(t, s.carts.AddItem(ctx, "erin", plentifulID, 1))
		o, err := s.workflow.CreateOrder(ctx, "erin", shippingAddr(), domain.PaymentPayPal)
		require.NoError(t, err)
		s.bus.Drain()

		result := domain.PaymentResult{ID: "pay_1", Status: "COMPLETED", PaymentMethod: "PayPal"}
		paid, err := s.workflow.UpdateOrderPayment(ctx, o.ID, result)
		require.NoError(t, err)
		require.True(t, paid.IsPaid)
		require.NotNil(t, paid.PaidAt)

		time.Sleep(10 * time.Millisecond)
		again, err := s.workflow.UpdateOrderPayment(ctx, o.ID, domain.PaymentResult{ID: "pay_2"})
		require.NoError(t, err)
		assert.Equal(t, "pay_1", again.PaymentResult.ID)
		assert.True(t, paid.PaidAt.Equal(*again.PaidAt))
		s.bus.Drain()
	})

	t.Run("malformed order id is not found", func(t *testing.T) {
		_, err := s.workflow.GetOrder(ctx, "not-an-id", "")
		assert.True(t, errors.Is(err, domain.ErrOrderNotFound))
	})
}
