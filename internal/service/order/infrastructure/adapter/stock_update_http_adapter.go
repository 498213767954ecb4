package adapter

import (
	"context"
	"fmt"

	"ordersystem/internal/pkg/httpclient"
	"ordersystem/internal/service/order/domain"
)

const updateStockPath = "/product/updatestock"

type updateStockRequest struct {
	ProductID    int64 `json:"productId"`
	ProductCount int   `json:"productCount"`
}

// StockUpdateHTTPAdapter 同步调用商品服务扣减库存，只在 stock_update_mode=http 时使用。
type StockUpdateHTTPAdapter struct {
	client   *httpclient.Client
	resolver Resolver
}

func NewStockUpdateHTTPAdapter(client *httpclient.Client, resolver Resolver) *StockUpdateHTTPAdapter {
	return &StockUpdateHTTPAdapter{client: client, resolver: resolver}
}

func (a *StockUpdateHTTPAdapter) Publish(ctx context.Context, productID int64, quantity int) error {
	base, err := a.resolver.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPublishUnavailable, err)
	}
	body := updateStockRequest{ProductID: productID, ProductCount: quantity}
	if err := a.client.PutJSON(ctx, base+updateStockPath, body, nil); err != nil {
		return fmt.Errorf("%w: update stock of product %d: %w", domain.ErrPublishUnavailable, productID, err)
	}
	return nil
}
