package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Surfinbird-star/aas2/internal/model"
)

// CreateCategory creates a new category.
func CreateCategory(ctx context.Context, db *sql.DB, name string) (*model.Category, error) {
	result, err := db.ExecContext(ctx, `INSERT INTO categories (name) VALUES (?)`, name)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("category %q: %w", name, model.ErrAlreadyExists)
	}
	if err != nil {
		return nil, fmt.Errorf("creating category: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting category id: %w", err)
	}
	return GetCategory(ctx, db, id)
}

// GetCategory returns a category by ID with its product count.
func GetCategory(ctx context.Context, db *sql.DB, id int64) (*model.Category, error) {
	c := &model.Category{}
	err := db.QueryRowContext(ctx,
		`SELECT c.id, c.name, c.created_at,
		        (SELECT COUNT(*) FROM products p WHERE p.category_id = c.id)
		 FROM categories c WHERE c.id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.CreatedAt, &c.ProductCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting category: %w", err)
	}
	return c, nil
}

// ListCategories returns all categories ordered by name.
func ListCategories(ctx context.Context, db *sql.DB) ([]model.Category, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT c.id, c.name, c.created_at, COUNT(p.id)
		 FROM categories c
		 LEFT JOIN products p ON p.category_id = c.id
		 GROUP BY c.id
		 ORDER BY c.name`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt, &c.ProductCount); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// UpdateCategory renames a category.
func UpdateCategory(ctx context.Context, db *sql.DB, id int64, name string) error {
	res, err := db.ExecContext(ctx, `UPDATE categories SET name = ? WHERE id = ?`, name, id)
	if isUniqueViolation(err) {
		return fmt.Errorf("category %q: %w", name, model.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("updating category: %w", err)
	}
	return requireAffected(res, "category")
}

// DeleteCategory removes a category. It refuses with model.ErrCategoryInUse
// while any product still references it.
func DeleteCategory(ctx context.Context, db *sql.DB, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products WHERE category_id = ?`, id,
	).Scan(&count); err != nil {
		return fmt.Errorf("counting category products: %w", err)
	}
	if count > 0 {
		return model.ErrCategoryInUse
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting category: %w", err)
	}
	if err := requireAffected(res, "category"); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing category delete: %w", err)
	}
	return nil
}
