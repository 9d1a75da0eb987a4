package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/commercekit/fulfillment/internal/catalog/domain"
	storage "github.com/commercekit/fulfillment/internal/storage/postgres"
)

// Repository reads catalog rows and implements the inventory ledger. All
// stock mutation goes through Reserve and Release; there is no plain stock
// setter.
type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

// Reserve atomically decrements stock, succeeding only when enough remains.
// It accepts any executor so a reservation can join an open transaction.
func (r *Repository) Reserve(ctx context.Context, exec storage.Executor, productID string, quantity int) error {
	ct, err := exec.Exec(ctx,
		`UPDATE products SET stock = stock - $2, updated_at = now() WHERE id = $1 AND stock >= $2`,
		productID, quantity)
	if err != nil {
		return err
	}
	if ct.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := exec.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrProductNotFound
	}
	return domain.ErrInsufficientStock
}

// Release unconditionally returns quantity to stock. Used when a cancelled
// order's reservations are restored.
func (r *Repository) Release(ctx context.Context, productID string, quantity int) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1`,
		productID, quantity)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

func (r *Repository) Find(ctx context.Context, id string) (domain.Product, error) {
	return scanProduct(r.pool.QueryRow(ctx,
		`SELECT id, name, category, price::text, stock, active FROM products WHERE id = $1`, id))
}

// FindMany resolves a set of product ids in one round trip. Missing ids are
// simply absent from the result map.
func (r *Repository) FindMany(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, category, price::text, stock, active FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]domain.Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

// Stock returns the current stock count, used by low-stock alerting.
func (r *Repository) Stock(ctx context.Context, id string) (int, error) {
	var stock int
	err := r.pool.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, id).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrProductNotFound
	}
	return stock, err
}

// Seed inserts catalog rows that do not exist yet. Dev and test helper.
func (r *Repository) Seed(ctx context.Context, products []domain.Product) error {
	batch := &pgx.Batch{}
	for _, p := range products {
		batch.Queue(`INSERT INTO products (id, name, category, price, stock, active)
			VALUES ($1,$2,$3,$4,$5,$6) ON CONFLICT (id) DO NOTHING`,
			p.ID, p.Name, p.Category, p.Price.StringFixed(2), p.Stock, p.Active)
	}
	return r.pool.SendBatch(ctx, batch).Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	var price string
	err := row.Scan(&p.ID, &p.Name, &p.Category, &price, &p.Stock, &p.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, domain.ErrProductNotFound
	}
	if err != nil {
		return domain.Product{}, err
	}
	p.Price, err = decimal.NewFromString(price)
	if err != nil {
		return domain.Product{}, err
	}
	return p, nil
}
