package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Store keeps daily sales rollups per product category. Rows are upserted
// with additive updates so concurrent recorders never clobber each other.
type Store struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewStore(log *slog.Logger, pool *pgxpool.Pool) *Store {
	return &Store{log: log, pool: pool}
}

func (s *Store) RecordSale(ctx context.Context, day time.Time, category string, orders, units int, revenue decimal.Decimal) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sales_daily (day, category, orders, units, revenue)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (day, category) DO UPDATE SET
			orders  = sales_daily.orders + EXCLUDED.orders,
			units   = sales_daily.units + EXCLUDED.units,
			revenue = sales_daily.revenue + EXCLUDED.revenue`,
		day.Format("2006-01-02"), category, orders, units, revenue.StringFixed(2))
	return err
}

func (s *Store) RecordCancellation(ctx context.Context, day time.Time, category string, orders int, revenue decimal.Decimal) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sales_daily (day, category, cancelled_orders, cancelled_revenue)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (day, category) DO UPDATE SET
			cancelled_orders  = sales_daily.cancelled_orders + EXCLUDED.cancelled_orders,
			cancelled_revenue = sales_daily.cancelled_revenue + EXCLUDED.cancelled_revenue`,
		day.Format("2006-01-02"), category, orders, revenue.StringFixed(2))
	return err
}

type Totals struct {
	Orders           int             `json:"orders"`
	Units            int             `json:"units"`
	Revenue          decimal.Decimal `json:"revenue"`
	CancelledOrders  int             `json:"cancelledOrders"`
	CancelledRevenue decimal.Decimal `json:"cancelledRevenue"`
}

type CategorySales struct {
	Category string `json:"category"`
	Totals
}

// SalesTotals sums the rollups over [from, to] inclusive.
func (s *Store) SalesTotals(ctx context.Context, from, to time.Time) (Totals, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(orders),0), COALESCE(SUM(units),0), COALESCE(SUM(revenue),0)::text,
		       COALESCE(SUM(cancelled_orders),0), COALESCE(SUM(cancelled_revenue),0)::text
		FROM sales_daily WHERE day BETWEEN $1 AND $2`,
		from.Format("2006-01-02"), to.Format("2006-01-02"))
	return scanTotals(row)
}

// SalesByCategory breaks the same range down per category.
func (s *Store) SalesByCategory(ctx context.Context, from, to time.Time) ([]CategorySales, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT category, SUM(orders), SUM(units), SUM(revenue)::text,
		       SUM(cancelled_orders), SUM(cancelled_revenue)::text
		FROM sales_daily WHERE day BETWEEN $1 AND $2
		GROUP BY category ORDER BY category`,
		from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CategorySales
	for rows.Next() {
		var c CategorySales
		var revenue, cancelled string
		if err := rows.Scan(&c.Category, &c.Orders, &c.Units, &revenue, &c.CancelledOrders, &cancelled); err != nil {
			return nil, err
		}
		if c.Revenue, err = decimal.NewFromString(revenue); err != nil {
			return nil, err
		}
		if c.CancelledRevenue, err = decimal.NewFromString(cancelled); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTotals(row rowScanner) (Totals, error) {
	var t Totals
	var revenue, cancelled string
	if err := row.Scan(&t.Orders, &t.Units, &revenue, &t.CancelledOrders, &cancelled); err != nil {
		return Totals{}, err
	}
	var err error
	if t.Revenue, err = decimal.NewFromString(revenue); err != nil {
		return Totals{}, err
	}
	if t.CancelledRevenue, err = decimal.NewFromString(cancelled); err != nil {
		return Totals{}, err
	}
	return t, nil
}
