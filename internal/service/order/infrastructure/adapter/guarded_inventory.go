package adapter

import (
	"context"
	"errors"

	"ordersystem/internal/pkg/circuitbreaker"
	"ordersystem/internal/service/order/domain"
	"ordersystem/internal/service/order/domain/port"
)

// GuardedInventoryClient 让每次库存查询都经过熔断器。
// 熔断打开时直接返回 circuitbreaker.ErrCircuitOpen，不会调用下游。
type GuardedInventoryClient struct {
	next    port.InventoryClient
	breaker *circuitbreaker.Breaker
}

func NewGuardedInventoryClient(next port.InventoryClient, breaker *circuitbreaker.Breaker) *GuardedInventoryClient {
	return &GuardedInventoryClient{next: next, breaker: breaker}
}

// IsBreakerFailure 商品不存在是业务结果，不计入熔断统计
func IsBreakerFailure(err error) bool {
	return !errors.Is(err, domain.ErrProductNotFound)
}

func (c *GuardedInventoryClient) Lookup(ctx context.Context, productID int64) (port.Product, error) {
	var product port.Product
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		p, err := c.next.Lookup(ctx, productID)
		if err != nil {
			return err
		}
		product = p
		return nil
	})
	if err != nil {
		return port.Product{}, err
	}
	return product, nil
}
