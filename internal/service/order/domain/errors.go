package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrInvalidOrder         = errors.New("invalid order")
	ErrLineRejected         = errors.New("order line rejected by policy")
	ErrProductNotFound      = errors.New("product not found")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrInventoryUnavailable = errors.New("inventory service unavailable")
	ErrPersistence          = errors.New("failed to persist order")
	ErrPublishUnavailable   = errors.New("publish channel unavailable")
	ErrOrderNotFound        = errors.New("order not found")
	ErrInvalidTransition    = errors.New("invalid order status transition")
	ErrForbidden            = errors.New("order does not belong to the caller")
)

// InsufficientStockError 指明库存不足的商品
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d (%s): requested %d, available %d",
		e.ProductID, e.ProductName, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }
