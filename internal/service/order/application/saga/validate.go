package saga

import (
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"ordersystem/internal/pkg/logger"
	"ordersystem/internal/service/order/domain"
)

// ValidateLinesHandler 按提交顺序逐行校验，任何一行失败立即终止，之后的行不再查询。
type ValidateLinesHandler struct {
	NextHandler
}

func (h *ValidateLinesHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Deps.Tracer.Start(orderCtx.Ctx, "saga.ValidateLines")
	defer span.End()
	span.SetAttributes(attribute.Int("order.lines", len(orderCtx.Requested)))

	if len(orderCtx.Requested) == 0 {
		err := fmt.Errorf("%w: order must contain at least one line", domain.ErrInvalidOrder)
		span.SetStatus(codes.Error, "empty order")
		return err
	}

	order, err := domain.NewOrder(orderCtx.OwnerEmail)
	if err != nil {
		span.SetStatus(codes.Error, "invalid owner")
		return err
	}

	for i, req := range orderCtx.Requested {
		if req.ProductID <= 0 {
			span.SetStatus(codes.Error, "invalid product id")
			return fmt.Errorf("%w: line %d: product id must be positive, got %d", domain.ErrInvalidOrder, i, req.ProductID)
		}
		if req.Quantity <= 0 {
			span.SetStatus(codes.Error, "invalid quantity")
			return fmt.Errorf("%w: line %d (product %d): quantity must be positive", domain.ErrInvalidOrder, i, req.ProductID)
		}

		if policy := orderCtx.Deps.Policy; policy != nil {
			if err := policy.Check(ctx, order.OwnerEmail, req); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "line rejected")
				return err
			}
		}

		product, err := orderCtx.Deps.Inventory.Lookup(ctx, req.ProductID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "inventory lookup failed")
			return classifyLookupError(req.ProductID, err)
		}

		if product.StockQuantity < req.Quantity {
			err := &domain.InsufficientStockError{
				ProductID:   req.ProductID,
				ProductName: product.Name,
				Requested:   req.Quantity,
				Available:   product.StockQuantity,
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, "insufficient stock")
			logger.Ctx(ctx).Info().Int64("product_id", req.ProductID).
				Int("requested", req.Quantity).Int("available", product.StockQuantity).
				Msg("order rejected: insufficient stock")
			return err
		}

		line, err := domain.NewOrderLine(req.ProductID, product.Name, req.Quantity)
		if err != nil {
			return err
		}
		order.AddLine(line)
	}

	orderCtx.Order = order
	span.AddEvent("all lines validated")
	return h.executeNext(orderCtx)
}

// classifyLookupError 把库存客户端的错误归为 NotFound 或 Unavailable。
// 熔断错误会被包装，ErrInventoryUnavailable 与 ErrCircuitOpen 都能被 errors.Is 识别。
func classifyLookupError(productID int64, err error) error {
	if errors.Is(err, domain.ErrProductNotFound) || errors.Is(err, domain.ErrInventoryUnavailable) {
		return err
	}
	return fmt.Errorf("%w: product %d: %w", domain.ErrInventoryUnavailable, productID, err)
}
