package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	catalogdomain "github.com/commercekit/fulfillment/internal/catalog/domain"
	"github.com/commercekit/fulfillment/internal/order/domain"
	storage "github.com/commercekit/fulfillment/internal/storage/postgres"
)

// Ledger reserves stock through an arbitrary executor so reservations can
// join the order transaction.
type Ledger interface {
	Reserve(ctx context.Context, exec storage.Executor, productID string, quantity int) error
}

// CartClearer empties a cart through an arbitrary executor for the same
// reason.
type CartClearer interface {
	ClearWith(ctx context.Context, exec storage.Executor, customerID string) error
}

type Repository struct {
	log    *slog.Logger
	pool   *pgxpool.Pool
	ledger Ledger
	carts  CartClearer
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool, ledger Ledger, carts CartClearer) *Repository {
	return &Repository{log: log, pool: pool, ledger: ledger, carts: carts}
}

// Create runs the checkout unit of work: reserve stock for every line,
// insert the order with its line snapshot, clear the cart. A failed
// reservation aborts the transaction, unwinding every earlier reservation.
func (r *Repository) Create(ctx context.Context, o domain.Order) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for _, line := range o.Lines {
		if err := r.ledger.Reserve(ctx, tx, line.ProductID, line.Quantity); err != nil {
			switch {
			case errors.Is(err, catalogdomain.ErrInsufficientStock):
				return &catalogdomain.InsufficientStockError{ProductName: line.Name}
			case errors.Is(err, catalogdomain.ErrProductNotFound):
				return &domain.InvalidLineError{ProductID: line.ProductID}
			}
			return err
		}
	}

	var result []byte
	if o.PaymentResult != nil {
		if result, err = json.Marshal(o.PaymentResult); err != nil {
			return err
		}
	}
	_, err = tx.Exec(ctx, `INSERT INTO orders
		(id, customer_id, payment_method,
		 ship_street, ship_city, ship_state, ship_zip, ship_country,
		 items_price, shipping_price, tax_price, total_price,
		 status, is_paid, payment_result, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		o.ID, o.CustomerID, string(o.PaymentMethod),
		o.ShippingAddress.Street, o.ShippingAddress.City, o.ShippingAddress.State,
		o.ShippingAddress.ZipCode, o.ShippingAddress.Country,
		o.ItemsPrice.StringFixed(2), o.ShippingPrice.StringFixed(2),
		o.TaxPrice.StringFixed(2), o.TotalPrice.StringFixed(2),
		string(o.Status), o.IsPaid, result, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, line := range o.Lines {
		batch.Queue(`INSERT INTO order_lines (order_id, product_id, name, unit_price, quantity)
			VALUES ($1,$2,$3,$4,$5)`,
			o.ID, line.ProductID, line.Name, line.UnitPrice.StringFixed(2), line.Quantity)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}

	if err := r.carts.ClearWith(ctx, tx, o.CustomerID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

const orderColumns = `id, customer_id, payment_method,
	ship_street, ship_city, ship_state, ship_zip, ship_country,
	items_price::text, shipping_price::text, tax_price::text, total_price::text,
	status, is_paid, paid_at, payment_result,
	cancellation_reason, cancelled_at, created_at, updated_at`

func (r *Repository) GetByID(ctx context.Context, id string) (domain.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if err != nil {
		return domain.Order{}, err
	}
	lines, err := r.loadLines(ctx, []string{id})
	if err != nil {
		return domain.Order{}, err
	}
	o.Lines = lines[id]
	return o, nil
}

func (r *Repository) ListByCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE customer_id = $1 ORDER BY created_at DESC`, customerID)
}

func (r *Repository) ListAll(ctx context.Context) ([]domain.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	var ids []string
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}

	lines, err := r.loadLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Lines = lines[orders[i].ID]
	}
	return orders, nil
}

// MarkPaid is idempotent: a second call with the same settlement result
// finds is_paid already set and leaves every persisted field untouched.
func (r *Repository) MarkPaid(ctx context.Context, id string, result domain.PaymentResult, at time.Time) (domain.Order, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return domain.Order{}, err
	}
	// The is_paid guard makes the update a no-op on repeat calls; an absent
	// order falls through to GetByID's not-found.
	_, err = r.pool.Exec(ctx,
		`UPDATE orders SET is_paid = TRUE, paid_at = $2, payment_result = $3, updated_at = $2
		 WHERE id = $1 AND is_paid = FALSE`,
		id, at, payload)
	if err != nil {
		return domain.Order{}, err
	}
	return r.GetByID(ctx, id)
}

func (r *Repository) UpdateStatus(ctx context.Context, id string, status domain.Status, at time.Time) (domain.Order, error) {
	ct, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1 AND status <> 'cancelled'`,
		id, string(status), at)
	if err != nil {
		return domain.Order{}, err
	}
	if ct.RowsAffected() == 0 {
		return domain.Order{}, r.missingOrCancelled(ctx, id)
	}
	return r.GetByID(ctx, id)
}

// Cancel moves the order to its terminal state. Cancelling twice is a
// conflict, not a no-op.
func (r *Repository) Cancel(ctx context.Context, id, reason string, at time.Time) (domain.Order, error) {
	ct, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = 'cancelled', cancellation_reason = $2, cancelled_at = $3, updated_at = $3
		 WHERE id = $1 AND status <> 'cancelled'`,
		id, reason, at)
	if err != nil {
		return domain.Order{}, err
	}
	if ct.RowsAffected() == 0 {
		return domain.Order{}, r.missingOrCancelled(ctx, id)
	}
	return r.GetByID(ctx, id)
}

func (r *Repository) missingOrCancelled(ctx context.Context, id string) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrOrderNotFound
	}
	return domain.ErrAlreadyCancelled
}

func (r *Repository) loadLines(ctx context.Context, orderIDs []string) (map[string][]domain.OrderLine, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT order_id, product_id, name, unit_price::text, quantity
		 FROM order_lines WHERE order_id = ANY($1)`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]domain.OrderLine, len(orderIDs))
	for rows.Next() {
		var orderID, price string
		var l domain.OrderLine
		if err := rows.Scan(&orderID, &l.ProductID, &l.Name, &price, &l.Quantity); err != nil {
			return nil, err
		}
		if l.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		out[orderID] = append(out[orderID], l)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var o domain.Order
	var method, status string
	var items, shipping, tax, total string
	var result []byte
	var reason *string
	err := row.Scan(&o.ID, &o.CustomerID, &method,
		&o.ShippingAddress.Street, &o.ShippingAddress.City, &o.ShippingAddress.State,
		&o.ShippingAddress.ZipCode, &o.ShippingAddress.Country,
		&items, &shipping, &tax, &total,
		&status, &o.IsPaid, &o.PaidAt, &result,
		&reason, &o.CancelledAt, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}

	o.PaymentMethod = domain.PaymentMethod(method)
	o.Status = domain.Status(status)
	if reason != nil {
		o.CancellationReason = *reason
	}
	if len(result) > 0 {
		var pr domain.PaymentResult
		if err := json.Unmarshal(result, &pr); err != nil {
			return domain.Order{}, err
		}
		o.PaymentResult = &pr
	}
	if o.ItemsPrice, err = decimal.NewFromString(items); err != nil {
		return domain.Order{}, err
	}
	if o.ShippingPrice, err = decimal.NewFromString(shipping); err != nil {
		return domain.Order{}, err
	}
	if o.TaxPrice, err = decimal.NewFromString(tax); err != nil {
		return domain.Order{}, err
	}
	if o.TotalPrice, err = decimal.NewFromString(total); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}
