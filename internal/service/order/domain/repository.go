// internal/service/order/domain/repository.go
package domain

import "context"

// OrderStore 是订单编排唯一需要的写接口：原子地保存整个聚合并返回 ID。
type OrderStore interface {
	Save(ctx context.Context, order *Order) (int64, error)
}

// OrderReader 是读路径使用的查询接口，结果按 ID 升序返回。
type OrderReader interface {
	FindAll(ctx context.Context) ([]*Order, error)
	FindByOwner(ctx context.Context, ownerEmail string) ([]*Order, error)
	FindByID(ctx context.Context, id int64) (*Order, error)
}

// OrderRepository 定义了订单聚合的完整持久化接口。
// 它位于领域层，但由基础设施层实现。
type OrderRepository interface {
	OrderStore
	OrderReader

	// UpdateStatus 仅当当前状态仍为 from 时改为 to。
	// 订单不存在返回 ErrOrderNotFound，状态已被改变返回 ErrInvalidTransition。
	UpdateStatus(ctx context.Context, id int64, from, to Status) error
}
