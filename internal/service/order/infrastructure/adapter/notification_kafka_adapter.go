package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ordersystem/internal/pkg/mq"
	"ordersystem/internal/service/order/domain"
)

// NotificationKafkaAdapter 实现了 port.NotificationPublisher 接口。
type NotificationKafkaAdapter struct {
	writer mq.MessageWriter
}

// NewNotificationKafkaAdapter 创建一个新的通知生产者适配器。
func NewNotificationKafkaAdapter(writer mq.MessageWriter) *NotificationKafkaAdapter {
	return &NotificationKafkaAdapter{writer: writer}
}

// Publish 以收件人作为消息 key，推送网关按收件人分发
func (a *NotificationKafkaAdapter) Publish(ctx context.Context, recipient, actorEmail string, orderID int64) error {
	event := domain.OrderPlacedNotification{
		RecipientEmail: recipient,
		ActorEmail:     actorEmail,
		OrderID:        orderID,
		PlacedAt:       time.Now(),
	}
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal notification event: %w", err)
	}

	if err := mq.ProduceMessage(ctx, a.writer, []byte(recipient), eventBytes); err != nil {
		return fmt.Errorf("%w: notify %s of order %d: %w", domain.ErrPublishUnavailable, recipient, orderID, err)
	}
	return nil
}

// Close 关闭底层的Kafka writer。
func (a *NotificationKafkaAdapter) Close() error {
	return a.writer.Close()
}
