// internal/service/order/application/dto.go
package application

import (
	"time"

	"ordersystem/internal/service/order/domain"
)

// CreateOrderRequest 是创建订单用例的输入数据
type CreateOrderRequest struct {
	OwnerEmail string
	Lines      []domain.RequestedLine
}

// CreateOrderResponse 是创建订单用例的输出数据
type CreateOrderResponse struct {
	OrderID int64
	Status  domain.Status
}

// OrderLineView 和 OrderView 是读路径返回给接口层的视图
type OrderLineView struct {
	ID          int64  `json:"id"`
	ProductID   int64  `json:"productId"`
	ProductName string `json:"productName"`
	Quantity    int    `json:"count"`
}

type OrderView struct {
	ID         int64           `json:"id"`
	OwnerEmail string          `json:"memberEmail"`
	Status     domain.Status   `json:"orderStatus"`
	Lines      []OrderLineView `json:"orderDetails"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// ToOrderView 把领域对象转换为视图
func ToOrderView(order *domain.Order) OrderView {
	lines := make([]OrderLineView, 0, len(order.Lines))
	for _, l := range order.Lines {
		lines = append(lines, OrderLineView{
			ID:          l.ID,
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Quantity:    l.Quantity,
		})
	}
	return OrderView{
		ID:         order.ID,
		OwnerEmail: order.OwnerEmail,
		Status:     order.Status,
		Lines:      lines,
		CreatedAt:  order.CreatedAt,
	}
}

func toOrderViews(orders []*domain.Order) []OrderView {
	views := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, ToOrderView(o))
	}
	return views
}
