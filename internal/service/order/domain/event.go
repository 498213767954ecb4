// internal/service/order/domain/event.go
package domain

import "time"

// StockUpdateCommand 是发往库存服务的扣减指令。
// 投递语义为至少一次，消费方依靠 EventID 去重。
type StockUpdateCommand struct {
	EventID   string    `json:"eventId"`
	ProductID int64     `json:"productId"`
	Quantity  int       `json:"quantity"`
	IssuedAt  time.Time `json:"issuedAt"`
}

// OrderPlacedNotification 推送给管理员的下单通知
type OrderPlacedNotification struct {
	RecipientEmail string    `json:"recipientEmail"`
	ActorEmail     string    `json:"actorEmail"`
	OrderID        int64     `json:"orderId"`
	PlacedAt       time.Time `json:"placedAt"`
}

// RequestedLine 是调用方提交的一行：商品 + 数量
type RequestedLine struct {
	ProductID int64
	Quantity  int
}
