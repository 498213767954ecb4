package interfaces

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"ordersystem/internal/pkg/logger"
	"ordersystem/internal/pkg/mq"
	"ordersystem/internal/service/product/application"
)

// StockUpdateConsumer 把 stock-update-topic 上的消息交给应用层处理。
// 返回的错误由 mq.Consumer 转发到死信队列。
type StockUpdateConsumer struct {
	service *application.ProductService
}

func NewStockUpdateConsumer(service *application.ProductService) *StockUpdateConsumer {
	return &StockUpdateConsumer{service: service}
}

// Handle 满足 mq.HandlerFunc
func (c *StockUpdateConsumer) Handle(ctx context.Context, msg kafka.Message) error {
	var event application.StockUpdateEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return errors.Wrap(err, "decode stock update event")
	}
	logger.Ctx(ctx).Debug().Str("event_id", event.EventID).Int64("product_id", event.ProductID).
		Int("quantity", event.Quantity).Msg("stock update received")
	return c.service.ApplyStockUpdate(ctx, event)
}

var _ mq.HandlerFunc = (*StockUpdateConsumer)(nil).Handle
