package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ordersystem/internal/pkg/httpclient"
	"ordersystem/internal/service/order/domain"
	"ordersystem/internal/service/order/domain/port"
)

const productDetailPath = "/product/detail/%d"

// productDetailResponse 是商品服务返回的通用包装
type productDetailResponse struct {
	Result struct {
		ID            int64  `json:"id"`
		Name          string `json:"name"`
		StockQuantity int    `json:"stockQuantity"`
	} `json:"result"`
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
}

// InventoryHTTPAdapter 实现了 port.InventoryClient 接口。
type InventoryHTTPAdapter struct {
	client   *httpclient.Client
	resolver Resolver
	timeout  time.Duration
}

// NewInventoryHTTPAdapter 创建一个新的库存服务适配器，timeout 是单次调用的上限。
func NewInventoryHTTPAdapter(client *httpclient.Client, resolver Resolver, timeout time.Duration) *InventoryHTTPAdapter {
	return &InventoryHTTPAdapter{client: client, resolver: resolver, timeout: timeout}
}

// Lookup 查询商品详情。
// 400/404 说明请求的商品本身无效，归为商品不存在；其余失败视为库存服务不可用。
func (a *InventoryHTTPAdapter) Lookup(ctx context.Context, productID int64) (port.Product, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	base, err := a.resolver.Resolve(ctx)
	if err != nil {
		return port.Product{}, fmt.Errorf("%w: %w", domain.ErrInventoryUnavailable, err)
	}

	var resp productDetailResponse
	err = a.client.GetJSON(ctx, base+fmt.Sprintf(productDetailPath, productID), &resp)
	if err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) && isUnknownProductStatus(statusErr.StatusCode) {
			return port.Product{}, fmt.Errorf("%w: product %d: %w", domain.ErrProductNotFound, productID, err)
		}
		return port.Product{}, fmt.Errorf("%w: product %d: %w", domain.ErrInventoryUnavailable, productID, err)
	}

	id := resp.Result.ID
	if id == 0 {
		id = productID
	}
	return port.Product{
		ID:            id,
		Name:          resp.Result.Name,
		StockQuantity: resp.Result.StockQuantity,
	}, nil
}

func isUnknownProductStatus(code int) bool {
	return code == http.StatusNotFound || code == http.StatusBadRequest
}
