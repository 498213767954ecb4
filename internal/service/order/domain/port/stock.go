package port

import "context"

// StockUpdatePublisher 发布一条库存扣减消息，发出即返回，不等待消费结果。
type StockUpdatePublisher interface {
	Publish(ctx context.Context, productID int64, quantity int) error
}
