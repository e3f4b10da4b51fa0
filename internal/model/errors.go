package model

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared by services and handlers.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrValidation    = errors.New("validation error")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrConflict      = errors.New("conflict")
)

// Domain errors.
var (
	ErrOrderInProgress   = fmt.Errorf("%w: an order is already being processed", ErrConflict)
	ErrEmptyOrder        = fmt.Errorf("%w: order has no items", ErrValidation)
	ErrCategoryInUse     = fmt.Errorf("%w: category has products", ErrConflict)
	ErrDocumentExists    = fmt.Errorf("%w: document already uploaded", ErrAlreadyExists)
	ErrInvalidTransition = fmt.Errorf("%w: status transition not allowed", ErrValidation)
	ErrEmailTaken        = fmt.Errorf("%w: email already registered", ErrAlreadyExists)
)

// FieldError describes a validation failure on a single field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects field errors. It matches ErrValidation via errors.Is.
type ValidationError struct {
	Errors []FieldError
}

// NewValidationError creates a ValidationError with a single field error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Errors: []FieldError{{Field: field, Message: message}}}
}

// Add appends a field error.
func (e *ValidationError) Add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

// HasErrors reports whether any field error was added.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation error: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
