package postgres

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/commercekit/fulfillment/internal/cart/domain"
	storage "github.com/commercekit/fulfillment/internal/storage/postgres"
)

// Store keeps one cart row per (customer, product). Increments are pushed
// into the database so concurrent adds for the same customer never lose an
// update.
type Store struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewStore(log *slog.Logger, pool *pgxpool.Pool) *Store {
	return &Store{log: log, pool: pool}
}

// Get returns the customer's cart. An absent cart is an empty one.
func (s *Store) Get(ctx context.Context, customerID string) (domain.Cart, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT product_id, quantity FROM cart_lines WHERE customer_id = $1 ORDER BY position`, customerID)
	if err != nil {
		return domain.Cart{}, err
	}
	defer rows.Close()

	cart := domain.Cart{CustomerID: customerID}
	for rows.Next() {
		var l domain.Line
		if err := rows.Scan(&l.ProductID, &l.Quantity); err != nil {
			return domain.Cart{}, err
		}
		cart.Lines = append(cart.Lines, l)
	}
	return cart, rows.Err()
}

// Lines returns just the cart's lines, in insertion order.
func (s *Store) Lines(ctx context.Context, customerID string) ([]domain.Line, error) {
	cart, err := s.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return cart.Lines, nil
}

// AddItem inserts a new line or increments an existing one in a single
// statement, so two concurrent adds both land.
func (s *Store) AddItem(ctx context.Context, customerID, productID string, quantity int) error {
	if quantity < 1 {
		return domain.ErrBadQuantity
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO cart_lines (customer_id, product_id, quantity) VALUES ($1,$2,$3)
		 ON CONFLICT (customer_id, product_id)
		 DO UPDATE SET quantity = cart_lines.quantity + EXCLUDED.quantity`,
		customerID, productID, quantity)
	return err
}

// SetQuantity replaces a line's quantity. The line must already exist.
func (s *Store) SetQuantity(ctx context.Context, customerID, productID string, quantity int) error {
	if quantity < 1 {
		return domain.ErrBadQuantity
	}
	ct, err := s.pool.Exec(ctx,
		`UPDATE cart_lines SET quantity = $3 WHERE customer_id = $1 AND product_id = $2`,
		customerID, productID, quantity)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrLineNotFound
	}
	return nil
}

func (s *Store) RemoveItem(ctx context.Context, customerID, productID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM cart_lines WHERE customer_id = $1 AND product_id = $2`, customerID, productID)
	return err
}

func (s *Store) Clear(ctx context.Context, customerID string) error {
	return s.ClearWith(ctx, s.pool, customerID)
}

// ClearWith empties the cart through the given executor, letting checkout
// clear it inside the order transaction.
func (s *Store) ClearWith(ctx context.Context, exec storage.Executor, customerID string) error {
	_, err := exec.Exec(ctx, `DELETE FROM cart_lines WHERE customer_id = $1`, customerID)
	return err
}
