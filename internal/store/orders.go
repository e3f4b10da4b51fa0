package store

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/Surfinbird-star/aas2/internal/model"
)

// OrderFilter narrows the order console listing.
type OrderFilter struct {
	Status    model.OrderStatus
	UserID    string
	Ascending bool
	Limit     uint64
}

var orderColumns = []string{
	"o.id", "o.user_id", "o.status", "o.total", "o.phone", "o.address", "o.comments",
	"o.created_at", "o.updated_at",
	"COALESCE(pr.first_name, '')", "COALESCE(pr.last_name, '')", "COALESCE(pr.name, '')",
	"COALESCE(pr.email, '')",
}

func orderQuery() sq.SelectBuilder {
	return sq.Select(orderColumns...).
		From("orders o").
		LeftJoin("profiles pr ON pr.id = o.user_id")
}

func scanOrder(row interface{ Scan(...any) error }) (*model.Order, error) {
	o := &model.Order{}
	var first, last, name string
	err := row.Scan(&o.ID, &o.UserID, &o.Status, &o.Total, &o.Phone, &o.Address, &o.Comments,
		&o.CreatedAt, &o.UpdatedAt, &first, &last, &name, &o.CustomerEmail)
	if err != nil {
		return nil, err
	}
	o.CustomerName = model.CustomerName(first, last, name)
	return o, nil
}

// CreateOrder inserts an order header and all its line items in one
// transaction. Product name and unit are copied onto each line. It fails with
// model.ErrOrderInProgress when the user already has a processing order.
func CreateOrder(ctx context.Context, db *sql.DB, userID string, details model.OrderDetails, lines []model.OrderLine) (*model.Order, error) {
	if len(lines) == 0 {
		return nil, model.ErrEmptyOrder
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var processing int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE user_id = ? AND status = ?`,
		userID, string(model.StatusProcessing),
	).Scan(&processing); err != nil {
		return nil, fmt.Errorf("checking processing orders: %w", err)
	}
	if processing > 0 {
		return nil, model.ErrOrderInProgress
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO orders (user_id, status, total, phone, address, comments) VALUES (?, ?, 0, ?, ?, ?)`,
		userID, string(model.StatusProcessing), details.Phone, details.Address, details.Comments,
	)
	if isUniqueViolation(err) {
		return nil, model.ErrOrderInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("inserting order: %w", err)
	}
	orderID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting order id: %w", err)
	}

	for _, line := range lines {
		if line.Quantity < 1 {
			return nil, model.NewValidationError("quantity", fmt.Sprintf("product %d: quantity must be positive", line.ProductID))
		}

		var name, unit string
		err := tx.QueryRowContext(ctx,
			`SELECT name, unit FROM products WHERE id = ?`, line.ProductID,
		).Scan(&name, &unit)
		if err == sql.ErrNoRows {
			return nil, model.NewValidationError("product_id", fmt.Sprintf("unknown product %d", line.ProductID))
		}
		if err != nil {
			return nil, fmt.Errorf("looking up product %d: %w", line.ProductID, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, product_id, product_name, product_unit, quantity, price)
			 VALUES (?, ?, ?, ?, ?, 0)`,
			orderID, line.ProductID, name, unit, line.Quantity,
		); err != nil {
			return nil, fmt.Errorf("inserting order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing order: %w", err)
	}

	return GetOrder(ctx, db, orderID)
}

// GetOrder returns an order with its line items.
func GetOrder(ctx context.Context, db *sql.DB, id int64) (*model.Order, error) {
	query, args, err := orderQuery().Where(sq.Eq{"o.id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building order query: %w", err)
	}

	o, err := scanOrder(db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting order: %w", err)
	}

	o.Items, err = ListOrderItems(ctx, db, id)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// ListOrders returns order headers matching the filter, sorted by creation
// date. Line items are not loaded.
func ListOrders(ctx context.Context, db *sql.DB, f OrderFilter) ([]model.Order, error) {
	qb := orderQuery()
	if f.Status != "" {
		qb = qb.Where(sq.Eq{"o.status": string(f.Status)})
	}
	if f.UserID != "" {
		qb = qb.Where(sq.Eq{"o.user_id": f.UserID})
	}
	if f.Ascending {
		qb = qb.OrderBy("o.created_at ASC", "o.id ASC")
	} else {
		qb = qb.OrderBy("o.created_at DESC", "o.id DESC")
	}
	if f.Limit > 0 {
		qb = qb.Limit(f.Limit)
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building order list query: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

// ListOrderItems returns the line items of an order.
func ListOrderItems(ctx context.Context, db *sql.DB, orderID int64) ([]model.OrderItem, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, order_id, product_id, product_name, product_unit, quantity, price
		 FROM order_items WHERE order_id = ? ORDER BY id`, orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing order items: %w", err)
	}
	defer rows.Close()

	items := []model.OrderItem{}
	for rows.Next() {
		var it model.OrderItem
		var productID sql.NullInt64
		if err := rows.Scan(&it.ID, &it.OrderID, &productID, &it.ProductName, &it.ProductUnit,
			&it.Quantity, &it.Price); err != nil {
			return nil, fmt.Errorf("scanning order item: %w", err)
		}
		if productID.Valid {
			id := productID.Int64
			it.ProductID = &id
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// HasProcessingOrder reports whether the user has an order awaiting processing.
func HasProcessingOrder(ctx context.Context, db *sql.DB, userID string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE user_id = ? AND status = ?`,
		userID, string(model.StatusProcessing),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking processing orders: %w", err)
	}
	return count > 0, nil
}

// SetOrderStatus moves an order to a new status when the transition is
// allowed. Setting the current status again changes nothing.
func SetOrderStatus(ctx context.Context, db *sql.DB, id int64, to model.OrderStatus) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var from model.OrderStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = ?`, id).Scan(&from)
	if err == sql.ErrNoRows {
		return fmt.Errorf("order %d: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("reading order status: %w", err)
	}

	if from == to {
		return nil
	}
	if !model.CanTransition(from, to) {
		return fmt.Errorf("%s -> %s: %w", from, to, model.ErrInvalidTransition)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE orders SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, string(to), id,
	)
	if isUniqueViolation(err) {
		// Reopening while the user already has another processing order.
		return model.ErrOrderInProgress
	}
	if err != nil {
		return fmt.Errorf("updating order status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing status change: %w", err)
	}
	return nil
}

// UpdateOrderItemQuantities saves edited line item quantities in one
// transaction. Every item must belong to the order and every quantity must be
// positive.
func UpdateOrderItemQuantities(ctx context.Context, db *sql.DB, orderID int64, quantities map[int64]int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM orders WHERE id = ?`, orderID).Scan(&exists)
	if err == sql.ErrNoRows {
		return fmt.Errorf("order %d: %w", orderID, model.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("checking order: %w", err)
	}

	for itemID, qty := range quantities {
		if qty < 1 {
			return model.NewValidationError("quantity", fmt.Sprintf("item %d: quantity must be positive", itemID))
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE order_items SET quantity = ? WHERE id = ? AND order_id = ?`,
			qty, itemID, orderID,
		)
		if err != nil {
			return fmt.Errorf("updating item %d: %w", itemID, err)
		}
		if err := requireAffected(res, fmt.Sprintf("order item %d", itemID)); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, orderID,
	); err != nil {
		return fmt.Errorf("touching order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing quantities: %w", err)
	}
	return nil
}
