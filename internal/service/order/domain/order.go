// internal/service/order/domain/order.go
package domain

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// OrderLine 是订单行，商品名称在校验时从库存服务拷贝（快照），之后不再变化。
type OrderLine struct {
	ID          int64 // 持久化后分配
	ProductID   int64
	ProductName string
	Quantity    int
}

// NewOrderLine 创建订单行，数量必须大于 0
func NewOrderLine(productID int64, productName string, quantity int) (OrderLine, error) {
	if quantity <= 0 {
		return OrderLine{}, errors.Wrapf(ErrInvalidOrder, "product %d: quantity must be positive, got %d", productID, quantity)
	}
	return OrderLine{
		ProductID:   productID,
		ProductName: productName,
		Quantity:    quantity,
	}, nil
}

// Order 是订单聚合的根实体，独占并整体持久化它的订单行
type Order struct {
	ID         int64 // 持久化后分配
	Status     Status
	OwnerEmail string
	Lines      []OrderLine
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NormalizeEmail 去掉首尾空白并转为小写，订单所有者、查询条件和缓存 key 都使用它
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewOrder 创建一个尚未持久化的订单，初始状态显式设置为 ORDERED
func NewOrder(ownerEmail string) (*Order, error) {
	ownerEmail = NormalizeEmail(ownerEmail)
	if ownerEmail == "" {
		return nil, errors.Wrap(ErrInvalidOrder, "owner email is required")
	}
	now := time.Now()
	return &Order{
		Status:     StatusOrdered,
		OwnerEmail: ownerEmail,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// AddLine 追加一个已校验的订单行
func (o *Order) AddLine(line OrderLine) {
	o.Lines = append(o.Lines, line)
}

// Validate 检查订单可以被持久化：至少有一行，且每行数量为正
func (o *Order) Validate() error {
	if len(o.Lines) == 0 {
		return errors.Wrap(ErrInvalidOrder, "order must contain at least one line")
	}
	for _, line := range o.Lines {
		if line.Quantity <= 0 {
			return errors.Wrapf(ErrInvalidOrder, "product %d: quantity must be positive", line.ProductID)
		}
	}
	return nil
}

// TotalQuantity 所有订单行的数量之和
func (o *Order) TotalQuantity() int {
	total := 0
	for _, line := range o.Lines {
		total += line.Quantity
	}
	return total
}

// IsOwnedBy 判断订单是否属于该用户
func (o *Order) IsOwnedBy(email string) bool {
	return o.OwnerEmail == NormalizeEmail(email)
}

// Cancel 取消订单，只允许 ORDERED -> CANCELED
func (o *Order) Cancel() error {
	if !o.Status.CanTransitionTo(StatusCanceled) {
		return errors.Wrapf(ErrInvalidTransition, "order %d is %s", o.ID, o.Status)
	}
	o.Status = StatusCanceled
	o.UpdatedAt = time.Now()
	return nil
}
