package model

import (
	"fmt"
	"strings"
	"time"
)

// UnknownCustomer is shown when an order's profile has no usable name.
const UnknownCustomer = "Неизвестный пользователь"

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// Profile is a registered customer or administrator.
type Profile struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Name         string    `json:"name,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	Address      string    `json:"address,omitempty"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DisplayName returns "First Last", falling back to Name and then to
// UnknownCustomer.
func (p *Profile) DisplayName() string {
	return CustomerName(p.FirstName, p.LastName, p.Name)
}

// CustomerName builds the display name used across pages and exports.
func CustomerName(first, last, name string) string {
	full := strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
	if full != "" {
		return full
	}
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	return UnknownCustomer
}

// ProfileInput carries the writable profile fields.
type ProfileInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
}

// Normalize trims whitespace and lowercases the email.
func (in *ProfileInput) Normalize() {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	in.Address = strings.TrimSpace(in.Address)
}

// Validate checks the required registration fields.
func (in *ProfileInput) Validate() error {
	ve := &ValidationError{}
	if in.FirstName == "" {
		ve.Add("first_name", "required")
	}
	if in.LastName == "" {
		ve.Add("last_name", "required")
	}
	if in.Email == "" {
		ve.Add("email", "required")
	} else if !strings.Contains(in.Email, "@") {
		ve.Add("email", "invalid email")
	}
	if ve.HasErrors() {
		return ve
	}
	return nil
}

// ValidatePassword checks that a password meets minimum requirements.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}
