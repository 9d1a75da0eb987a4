package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Executor is the subset of pgx shared by *pgxpool.Pool and pgx.Tx, so
// repository operations can run either standalone or inside a transaction.
type Executor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Connect opens a pgx pool and verifies connectivity.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("pg connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg ping: %w", err)
	}
	return pool, nil
}

// Migrate creates the schema if it does not exist yet.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS products (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			category    TEXT NOT NULL DEFAULT '',
			price       NUMERIC(12,2) NOT NULL CHECK (price >= 0),
			stock       INT NOT NULL DEFAULT 0 CHECK (stock >= 0),
			active      BOOLEAN NOT NULL DEFAULT TRUE,
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS cart_lines (
			customer_id TEXT NOT NULL,
			product_id  TEXT NOT NULL,
			quantity    INT NOT NULL CHECK (quantity >= 1),
			position    BIGINT GENERATED ALWAYS AS IDENTITY,
			PRIMARY KEY (customer_id, product_id)
		);

		CREATE TABLE IF NOT EXISTS orders (
			id                  TEXT PRIMARY KEY,
			customer_id         TEXT NOT NULL,
			payment_method      TEXT NOT NULL,
			ship_street         TEXT NOT NULL,
			ship_city           TEXT NOT NULL,
			ship_state          TEXT NOT NULL,
			ship_zip            TEXT NOT NULL,
			ship_country        TEXT NOT NULL,
			items_price         NUMERIC(12,2) NOT NULL,
			shipping_price      NUMERIC(12,2) NOT NULL,
			tax_price           NUMERIC(12,2) NOT NULL,
			total_price         NUMERIC(12,2) NOT NULL,
			status              TEXT NOT NULL DEFAULT 'pending',
			is_paid             BOOLEAN NOT NULL DEFAULT FALSE,
			paid_at             TIMESTAMPTZ,
			payment_result      JSONB,
			cancellation_reason TEXT,
			cancelled_at        TIMESTAMPTZ,
			created_at          TIMESTAMPTZ NOT NULL,
			updated_at          TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS orders_customer_idx ON orders (customer_id, created_at DESC);

		CREATE TABLE IF NOT EXISTS order_lines (
			order_id   TEXT NOT NULL REFERENCES orders(id),
			product_id TEXT NOT NULL,
			name       TEXT NOT NULL,
			unit_price NUMERIC(12,2) NOT NULL,
			quantity   INT NOT NULL CHECK (quantity >= 1),
			PRIMARY KEY (order_id, product_id)
		);

		CREATE TABLE IF NOT EXISTS sales_daily (
			day               DATE NOT NULL,
			category          TEXT NOT NULL,
			orders            INT NOT NULL DEFAULT 0,
			units             INT NOT NULL DEFAULT 0,
			revenue           NUMERIC(14,2) NOT NULL DEFAULT 0,
			cancelled_orders  INT NOT NULL DEFAULT 0,
			cancelled_revenue NUMERIC(14,2) NOT NULL DEFAULT 0,
			PRIMARY KEY (day, category)
		);
	`)
	return err
}
