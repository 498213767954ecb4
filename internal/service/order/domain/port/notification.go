package port

import (
	"context"
)

// NotificationPublisher 是通知推送的出站端口。
type NotificationPublisher interface {
	// Publish 通知 recipient：actorEmail 刚刚创建了订单 orderID。
	Publish(ctx context.Context, recipient, actorEmail string, orderID int64) error
}
