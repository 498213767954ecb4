package saga

import (
	"go.opentelemetry.io/otel/attribute"
	"ordersystem/internal/pkg/logger"
)

// NotificationHandler 是链的最后一步，向管理员推送下单通知。
// 通知是旁路，失败只记录警告。
type NotificationHandler struct {
	NextHandler
}

func (h *NotificationHandler) Handle(orderCtx *OrderContext) error {
	ctx, cancel := sideEffectContext(orderCtx)
	defer cancel()
	ctx, span := orderCtx.Deps.Tracer.Start(ctx, "saga.Notification")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order.id", orderCtx.OrderID),
		attribute.String("notification.recipient", orderCtx.Deps.AdminRecipient),
	)

	err := orderCtx.Deps.Notifier.Publish(ctx, orderCtx.Deps.AdminRecipient, orderCtx.OwnerEmail, orderCtx.OrderID)
	if err != nil {
		span.RecordError(err)
		orderCtx.sideEffectFailed("notification")
		logger.Ctx(ctx).Warn().Err(err).Int64("order_id", orderCtx.OrderID).Msg("failed to publish notification")
	}

	return h.executeNext(orderCtx)
}
