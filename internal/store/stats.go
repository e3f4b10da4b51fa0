package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Surfinbird-star/aas2/internal/model"
)

// GetStats collects the admin dashboard counters and the most recent orders.
func GetStats(ctx context.Context, db *sql.DB) (*model.Stats, error) {
	s := &model.Stats{}

	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(status = 'processing'), 0),
		        COALESCE(SUM(status = 'confirmed'), 0),
		        COALESCE(SUM(status = 'completed'), 0)
		 FROM orders`,
	).Scan(&s.TotalOrders, &s.ProcessingOrders, &s.ConfirmedOrders, &s.CompletedOrders)
	if err != nil {
		return nil, fmt.Errorf("counting orders: %w", err)
	}

	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&s.Products); err != nil {
		return nil, fmt.Errorf("counting products: %w", err)
	}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&s.Users); err != nil {
		return nil, fmt.Errorf("counting profiles: %w", err)
	}

	s.RecentOrders, err = ListOrders(ctx, db, OrderFilter{Limit: 5})
	if err != nil {
		return nil, err
	}
	return s, nil
}
