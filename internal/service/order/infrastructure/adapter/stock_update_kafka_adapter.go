package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"ordersystem/internal/pkg/mq"
	"ordersystem/internal/service/order/domain"
)

// StockUpdateKafkaAdapter 实现了 port.StockUpdatePublisher 接口。
// 以商品 ID 作为消息 key，同一商品的扣减落在同一分区上。
type StockUpdateKafkaAdapter struct {
	writer mq.MessageWriter
}

func NewStockUpdateKafkaAdapter(writer mq.MessageWriter) *StockUpdateKafkaAdapter {
	return &StockUpdateKafkaAdapter{writer: writer}
}

func (a *StockUpdateKafkaAdapter) Publish(ctx context.Context, productID int64, quantity int) error {
	cmd := domain.StockUpdateCommand{
		EventID:   uuid.NewString(),
		ProductID: productID,
		Quantity:  quantity,
		IssuedAt:  time.Now(),
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal stock update command: %w", err)
	}

	// mq.ProduceMessage 会自动处理追踪上下文注入
	if err := mq.ProduceMessage(ctx, a.writer, []byte(strconv.FormatInt(productID, 10)), payload); err != nil {
		return fmt.Errorf("%w: stock update for product %d: %w", domain.ErrPublishUnavailable, productID, err)
	}
	return nil
}

// Close 关闭底层的Kafka writer。
func (a *StockUpdateKafkaAdapter) Close() error {
	return a.writer.Close()
}
