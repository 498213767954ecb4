package saga

import (
	"go.opentelemetry.io/otel/attribute"
	"ordersystem/internal/pkg/logger"
)

// StockUpdateHandler 每个订单行发布一条库存扣减消息。
// 订单已经落库，这里的失败只记录，不影响下单结果，也不回滚。
type StockUpdateHandler struct {
	NextHandler
}

func (h *StockUpdateHandler) Handle(orderCtx *OrderContext) error {
	ctx, cancel := sideEffectContext(orderCtx)
	defer cancel()
	ctx, span := orderCtx.Deps.Tracer.Start(ctx, "saga.PublishStockUpdates")
	defer span.End()

	span.SetAttributes(attribute.Int64("order.id", orderCtx.OrderID))

	for _, line := range orderCtx.Order.Lines {
		if err := orderCtx.Deps.StockPublisher.Publish(ctx, line.ProductID, line.Quantity); err != nil {
			span.RecordError(err)
			orderCtx.sideEffectFailed("stock_update")
			logger.Ctx(ctx).Error().Err(err).
				Int64("order_id", orderCtx.OrderID).
				Int64("product_id", line.ProductID).
				Int("quantity", line.Quantity).
				Msg("failed to publish stock update")
		}
	}

	return h.executeNext(orderCtx)
}
