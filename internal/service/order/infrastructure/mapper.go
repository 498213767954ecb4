package infrastructure

import (
	"ordersystem/internal/service/order/domain"
)

// ToDomainOrder 将数据库模型转换为领域模型
func ToDomainOrder(model *OrderModel) *domain.Order {
	if model == nil {
		return nil
	}
	lines := make([]domain.OrderLine, 0, len(model.Details))
	for _, d := range model.Details {
		lines = append(lines, domain.OrderLine{
			ID:          d.ID,
			ProductID:   d.ProductID,
			ProductName: d.ProductName,
			Quantity:    d.Quantity,
		})
	}
	return &domain.Order{
		ID:         model.ID,
		Status:     model.OrderStatus,
		OwnerEmail: model.MemberEmail,
		Lines:      lines,
		CreatedAt:  model.CreatedAt,
		UpdatedAt:  model.UpdatedAt,
	}
}

// FromDomainOrder 将领域模型转换为数据库模型 (用于插入)
func FromDomainOrder(order *domain.Order) *OrderModel {
	if order == nil {
		return nil
	}
	details := make([]OrderLineModel, 0, len(order.Lines))
	for _, l := range order.Lines {
		details = append(details, OrderLineModel{
			ID:          l.ID,
			OrderingID:  order.ID,
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Quantity:    l.Quantity,
		})
	}
	return &OrderModel{
		ID:          order.ID,
		MemberEmail: order.OwnerEmail,
		OrderStatus: order.Status,
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
		Details:     details,
	}
}
