package model

import "time"

// DefaultUnit is the unit assigned to products created without one.
const DefaultUnit = "шт."

// Category groups products in the catalog.
type Category struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	ProductCount int       `json:"product_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// Product is a catalog entry. Prices are not tracked.
type Product struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Unit         string    `json:"unit"`
	ImageURL     string    `json:"image_url,omitempty"`
	ImagePath    string    `json:"-"`
	HasImage     bool      `json:"has_image"`
	CategoryID   int64     `json:"category_id"`
	CategoryName string    `json:"category_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ProductInput carries the writable product fields.
type ProductInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Unit        string `json:"unit"`
	ImageURL    string `json:"image_url"`
	CategoryID  int64  `json:"category_id"`
}

// Validate checks required product fields and fills defaults.
func (in *ProductInput) Validate() error {
	ve := &ValidationError{}
	if in.Name == "" {
		ve.Add("name", "required")
	}
	if in.CategoryID <= 0 {
		ve.Add("category_id", "required")
	}
	if ve.HasErrors() {
		return ve
	}
	if in.Unit == "" {
		in.Unit = DefaultUnit
	}
	return nil
}
