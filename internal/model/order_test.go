package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		expected bool
	}{
		{StatusProcessing, StatusConfirmed, true},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusCancelled, true},
		{StatusConfirmed, StatusCompleted, true},
		{StatusConfirmed, StatusProcessing, false},
		{StatusCompleted, StatusArchived, true},
		{StatusCompleted, StatusProcessing, true},
		{StatusCancelled, StatusProcessing, true},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusConfirmed, false},
		{StatusArchived, StatusProcessing, false},
		{StatusArchived, StatusArchived, true},
		{StatusConfirmed, StatusConfirmed, true},
		// Unknown statuses fail closed.
		{"shipped", StatusCompleted, false},
		{StatusProcessing, "", false},
	}

	for _, tt := range tests {
		got := CanTransition(tt.from, tt.to)
		assert.Equal(t, tt.expected, got, "CanTransition(%q, %q)", tt.from, tt.to)
	}
}

func TestStatusLabels(t *testing.T) {
	assert.Equal(t, "В обработке", StatusProcessing.Label())
	assert.Equal(t, "Подтвержден", StatusConfirmed.Label())
	assert.Equal(t, "Выполнен", StatusCompleted.Label())
	assert.Equal(t, "Отменен", StatusCancelled.Label())
	assert.Equal(t, "Архивный", StatusArchived.Label())
	assert.Equal(t, "mystery", OrderStatus("mystery").Label())

	for _, s := range OrderStatuses {
		assert.True(t, s.Valid())
	}
}

func TestParseOrderStatus(t *testing.T) {
	st, err := ParseOrderStatus("completed")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, st)

	_, err = ParseOrderStatus("pending")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestItemCount(t *testing.T) {
	o := Order{Items: []OrderItem{{Quantity: 2}, {Quantity: 1}}}
	assert.Equal(t, 3, o.ItemCount())
	assert.Equal(t, 0, (&Order{}).ItemCount())
}

func TestCustomerName(t *testing.T) {
	assert.Equal(t, "Иван Петров", CustomerName("Иван", "Петров", ""))
	assert.Equal(t, "Иван", CustomerName(" Иван ", "", "ignored"))
	assert.Equal(t, "Org", CustomerName("", "", "Org"))
	assert.Equal(t, UnknownCustomer, CustomerName("", " ", ""))
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		wantErr  bool
	}{
		{"", true},
		{"short", true},
		{"1234567", true},
		{"12345678", false},
		{"a-valid-password", false},
	}

	for _, tt := range tests {
		err := ValidatePassword(tt.password)
		assert.Equal(t, tt.wantErr, err != nil, "ValidatePassword(%q)", tt.password)
	}
}

func TestProfileInputValidate(t *testing.T) {
	in := ProfileInput{FirstName: " Анна ", Email: " Anna@Example.COM "}
	in.Normalize()
	assert.Equal(t, "anna@example.com", in.Email)

	err := in.Validate()
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Len(t, ve.Errors, 1)
	assert.Equal(t, "last_name", ve.Errors[0].Field)
	assert.ErrorIs(t, err, ErrValidation)
}
