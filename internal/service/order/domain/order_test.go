package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrder(t *testing.T) {
	o, err := NewOrder("  buyer@example.com ")
	require.NoError(t, err)
	assert.Equal(t, StatusOrdered, o.Status)
	assert.Equal(t, "buyer@example.com", o.OwnerEmail)
	assert.Zero(t, o.ID)

	_, err = NewOrder(" ")
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "buyer@example.com", NormalizeEmail("  Buyer@Example.COM\t"))

	o, err := NewOrder(" Buyer@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "buyer@example.com", o.OwnerEmail)
	assert.True(t, o.IsOwnedBy("BUYER@example.com "))
	assert.False(t, o.IsOwnedBy("other@example.com"))
}

func TestNewOrderLine(t *testing.T) {
	line, err := NewOrderLine(7, "mouse", 2)
	require.NoError(t, err)
	assert.Equal(t, OrderLine{ProductID: 7, ProductName: "mouse", Quantity: 2}, line)

	_, err = NewOrderLine(7, "mouse", 0)
	assert.ErrorIs(t, err, ErrInvalidOrder)
	_, err = NewOrderLine(7, "mouse", -1)
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestOrder_Validate(t *testing.T) {
	o, err := NewOrder("buyer@example.com")
	require.NoError(t, err)
	assert.ErrorIs(t, o.Validate(), ErrInvalidOrder)

	o.AddLine(OrderLine{ProductID: 1, ProductName: "a", Quantity: 2})
	o.AddLine(OrderLine{ProductID: 2, ProductName: "b", Quantity: 3})
	assert.NoError(t, o.Validate())
	assert.Equal(t, 5, o.TotalQuantity())
}

func TestOrder_Cancel(t *testing.T) {
	o, err := NewOrder("buyer@example.com")
	require.NoError(t, err)

	require.NoError(t, o.Cancel())
	assert.Equal(t, StatusCanceled, o.Status)

	assert.ErrorIs(t, o.Cancel(), ErrInvalidTransition)
	assert.Equal(t, StatusCanceled, o.Status)
}

func TestStatus_Transitions(t *testing.T) {
	assert.True(t, StatusOrdered.CanTransitionTo(StatusCanceled))
	assert.False(t, StatusCanceled.CanTransitionTo(StatusOrdered))
	assert.False(t, StatusOrdered.CanTransitionTo(StatusOrdered))
	assert.False(t, Status("SHIPPED").Valid())
}

func TestInsufficientStockError(t *testing.T) {
	err := error(&InsufficientStockError{ProductID: 1, ProductName: "a", Requested: 10, Available: 5})
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Contains(t, err.Error(), "requested 10, available 5")
}
