package push

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"ordersystem/internal/pkg/logger"
)

// OrderPlacedNotification 是订单服务发布到 order-notifications 的消息
type OrderPlacedNotification struct {
	RecipientEmail string `json:"recipientEmail"`
	ActorEmail     string `json:"actorEmail"`
	OrderID        int64  `json:"orderId"`
}

// NotificationConsumer 把通知推送给收件人的所有在线会话。
// 收件人不在线时丢弃消息，不重试。
type NotificationConsumer struct {
	hub *Hub
}

func NewNotificationConsumer(hub *Hub) *NotificationConsumer {
	return &NotificationConsumer{hub: hub}
}

// Handle 满足 mq.HandlerFunc
func (c *NotificationConsumer) Handle(ctx context.Context, msg kafka.Message) error {
	var n OrderPlacedNotification
	if err := json.Unmarshal(msg.Value, &n); err != nil {
		return errors.Wrap(err, "decode order notification")
	}
	if n.RecipientEmail == "" {
		return errors.New("order notification without recipient")
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return errors.Wrap(err, "encode push payload")
	}

	delivered := c.hub.Deliver(n.RecipientEmail, payload)
	if delivered == 0 {
		msg := "recipient offline, notification dropped"
		if c.hub.Sessions(n.RecipientEmail) > 0 {
			msg = "all send queues full, notification dropped"
		}
		logger.Ctx(ctx).Warn().Str("recipient", n.RecipientEmail).Int64("order_id", n.OrderID).Msg(msg)
		return nil
	}
	logger.Ctx(ctx).Info().Str("recipient", n.RecipientEmail).Int64("order_id", n.OrderID).Int("sessions", delivered).Msg("order notification pushed")
	return nil
}
