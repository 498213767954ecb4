package port

import (
	"context"
)

// Product 是库存服务返回的商品快照
type Product struct {
	ID            int64
	Name          string
	StockQuantity int
}

// InventoryClient 是库存服务的出站端口。
// 商品不存在时返回 domain.ErrProductNotFound；
// 库存服务超时、故障或熔断时返回 domain.ErrInventoryUnavailable 包装的错误。
type InventoryClient interface {
	Lookup(ctx context.Context, productID int64) (Product, error)
}
