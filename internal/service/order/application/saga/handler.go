package saga

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"ordersystem/internal/service/order/domain"
	"ordersystem/internal/service/order/domain/port"
)

// LineChecker 是订单行的准入规则，在调用库存服务之前执行
type LineChecker interface {
	Check(ctx context.Context, ownerEmail string, line domain.RequestedLine) error
}

// SideEffectObserver 记录被吞掉的副作用失败（库存消息、通知）
type SideEffectObserver interface {
	SideEffectFailed(channel string)
}

// Dependencies 是一条链所需的全部出站端口，由应用服务构造一次后复用
type Dependencies struct {
	Tracer         trace.Tracer
	Inventory      port.InventoryClient
	Store          domain.OrderStore
	StockPublisher port.StockUpdatePublisher
	Notifier       port.NotificationPublisher
	Policy         LineChecker // 可选
	Observer       SideEffectObserver
	AdminRecipient string
	PublishTimeout time.Duration
}

// OrderContext 在责任链中传递一次下单请求的全部数据。
type OrderContext struct {
	Ctx        context.Context
	OwnerEmail string
	Requested  []domain.RequestedLine
	Deps       *Dependencies

	// 由链上的步骤逐步填充
	Order   *domain.Order
	OrderID int64
}

// Handler 和 NextHandler 组成责任链
type Handler interface {
	SetNext(handler Handler) Handler
	Handle(orderCtx *OrderContext) error
}

type NextHandler struct {
	next Handler
}

func (h *NextHandler) SetNext(handler Handler) Handler {
	h.next = handler
	return handler
}

func (h *NextHandler) executeNext(orderCtx *OrderContext) error {
	if h.next != nil {
		return h.next.Handle(orderCtx)
	}
	return nil
}

// BuildChain 校验 -> 持久化 -> 库存消息 -> 通知
func BuildChain() Handler {
	head := &ValidateLinesHandler{}
	head.SetNext(&PersistOrderHandler{}).
		SetNext(&StockUpdateHandler{}).
		SetNext(&NotificationHandler{})
	return head
}

// sideEffectContext 副作用与调用方的取消解耦，但有自己的超时
func sideEffectContext(orderCtx *OrderContext) (context.Context, context.CancelFunc) {
	ctx := context.WithoutCancel(orderCtx.Ctx)
	if orderCtx.Deps.PublishTimeout > 0 {
		return context.WithTimeout(ctx, orderCtx.Deps.PublishTimeout)
	}
	return context.WithCancel(ctx)
}

func (c *OrderContext) sideEffectFailed(channel string) {
	if c.Deps.Observer != nil {
		c.Deps.Observer.SideEffectFailed(channel)
	}
}
