package saga

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"ordersystem/internal/pkg/logger"
	"ordersystem/internal/service/order/domain"
)

// PersistOrderHandler 把整个聚合作为一个事务写入，失败时不发布任何消息
type PersistOrderHandler struct {
	NextHandler
}

func (h *PersistOrderHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Deps.Tracer.Start(orderCtx.Ctx, "saga.PersistOrder")
	defer span.End()

	if err := orderCtx.Order.Validate(); err != nil {
		span.SetStatus(codes.Error, "invalid aggregate")
		return err
	}

	id, err := orderCtx.Deps.Store.Save(ctx, orderCtx.Order)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		logger.Ctx(ctx).Error().Err(err).Str("owner", orderCtx.OwnerEmail).Msg("failed to persist order")
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}

	orderCtx.Order.ID = id
	orderCtx.OrderID = id
	span.SetAttributes(attribute.Int64("order.id", id))
	logger.Ctx(ctx).Info().Int64("order_id", id).Int("lines", len(orderCtx.Order.Lines)).Msg("order persisted")

	return h.executeNext(orderCtx)
}
