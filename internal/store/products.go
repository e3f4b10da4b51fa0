package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Surfinbird-star/aas2/internal/model"
)

const productSelect = `SELECT p.id, p.name, p.description, p.unit, p.image_url, p.image_path,
	p.category_id, c.name, p.created_at, p.updated_at
	FROM products p
	JOIN categories c ON c.id = p.category_id`

func scanProduct(row interface{ Scan(...any) error }) (*model.Product, error) {
	p := &model.Product{}
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Unit, &p.ImageURL, &p.ImagePath,
		&p.CategoryID, &p.CategoryName, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.HasImage = p.ImagePath != ""
	return p, nil
}

// CreateProduct creates a new product.
func CreateProduct(ctx context.Context, db *sql.DB, in model.ProductInput) (*model.Product, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO products (name, description, unit, image_url, category_id) VALUES (?, ?, ?, ?, ?)`,
		in.Name, in.Description, in.Unit, in.ImageURL, in.CategoryID,
	)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return nil, model.NewValidationError("category_id", "unknown category")
		}
		return nil, fmt.Errorf("creating product: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting product id: %w", err)
	}
	return GetProduct(ctx, db, id)
}

// GetProduct returns a product by ID.
func GetProduct(ctx context.Context, db *sql.DB, id int64) (*model.Product, error) {
	p, err := scanProduct(db.QueryRowContext(ctx, productSelect+` WHERE p.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting product: %w", err)
	}
	return p, nil
}

// ListProducts returns products ordered by name, optionally filtered by category.
func ListProducts(ctx context.Context, db *sql.DB, categoryID int64) ([]model.Product, error) {
	query := productSelect
	var args []any
	if categoryID > 0 {
		query += ` WHERE p.category_id = ?`
		args = append(args, categoryID)
	}
	query += ` ORDER BY p.name, p.id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// UpdateProduct updates a product's fields.
func UpdateProduct(ctx context.Context, db *sql.DB, id int64, in model.ProductInput) error {
	res, err := db.ExecContext(ctx,
		`UPDATE products
		 SET name = ?, description = ?, unit = ?, image_url = ?, category_id = ?,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		in.Name, in.Description, in.Unit, in.ImageURL, in.CategoryID, id,
	)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return model.NewValidationError("category_id", "unknown category")
		}
		return fmt.Errorf("updating product: %w", err)
	}
	return requireAffected(res, "product")
}

// SetProductImage records the storage path of a product's uploaded image.
func SetProductImage(ctx context.Context, db *sql.DB, id int64, path string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE products SET image_path = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		path, id,
	)
	if err != nil {
		return fmt.Errorf("setting product image: %w", err)
	}
	return requireAffected(res, "product")
}

// DeleteProduct removes a product. Order lines keep their copied name and unit.
func DeleteProduct(ctx context.Context, db *sql.DB, id int64) error {
	res, err := db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting product: %w", err)
	}
	return requireAffected(res, "product")
}
