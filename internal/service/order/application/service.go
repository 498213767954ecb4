// internal/service/order/application/service.go
package application

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"ordersystem/internal/pkg/circuitbreaker"
	"ordersystem/internal/pkg/logger"
	"ordersystem/internal/service/order/application/saga"
	"ordersystem/internal/service/order/domain"
	"ordersystem/internal/service/order/domain/port"
)

// Options 是编排所需的可调参数
type Options struct {
	AdminRecipient    string
	ProcessingTimeout time.Duration
	PublishTimeout    time.Duration
	Policy            saga.LineChecker // 可为 nil
}

// OrderApplicationService 只关注业务流程编排，所有外部依赖都通过端口注入。
type OrderApplicationService struct {
	orderRepo         domain.OrderRepository
	processingTimeout time.Duration
	tracer            trace.Tracer
	metrics           *Metrics
	deps              *saga.Dependencies
	chain             saga.Handler
}

func NewOrderApplicationService(
	orderRepo domain.OrderRepository,
	tracer trace.Tracer,
	metrics *Metrics,
	inventory port.InventoryClient,
	stockPublisher port.StockUpdatePublisher,
	notifier port.NotificationPublisher,
	opts Options,
) *OrderApplicationService {
	deps := &saga.Dependencies{
		Tracer:         tracer,
		Inventory:      inventory,
		Store:          orderRepo,
		StockPublisher: stockPublisher,
		Notifier:       notifier,
		Policy:         opts.Policy,
		Observer:       metrics,
		AdminRecipient: opts.AdminRecipient,
		PublishTimeout: opts.PublishTimeout,
	}
	// 避免把 nil *Metrics 装进接口
	if metrics == nil {
		deps.Observer = nil
	}
	return &OrderApplicationService{
		orderRepo:         orderRepo,
		processingTimeout: opts.ProcessingTimeout,
		tracer:            tracer,
		metrics:           metrics,
		deps:              deps,
		chain:             saga.BuildChain(),
	}
}

// CreateOrder 校验所有订单行，全部通过后原子地保存订单，然后异步发布库存消息与通知。
// 只有校验失败或持久化失败会返回错误。
func (s *OrderApplicationService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.CreateOrder")
	defer span.End()
	owner := domain.NormalizeEmail(req.OwnerEmail)
	span.SetAttributes(
		attribute.String("order.owner", owner),
		attribute.Int("order.lines", len(req.Lines)),
	)

	if s.processingTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.processingTimeout)
		defer cancel()
	}

	orderCtx := &saga.OrderContext{
		Ctx:        ctx,
		OwnerEmail: owner,
		Requested:  req.Lines,
		Deps:       s.deps,
	}

	if err := s.chain.Handle(orderCtx); err != nil {
		reason := rejectionReason(err)
		if s.metrics != nil {
			s.metrics.orderRejected(reason)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, reason)
		logger.Ctx(ctx).Warn().Err(err).Str("owner", owner).Str("reason", reason).Msg("order not created")
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.orderCreated()
	}
	total := orderCtx.Order.TotalQuantity()
	span.SetAttributes(
		attribute.Int64("order.id", orderCtx.OrderID),
		attribute.Int("order.total_quantity", total),
	)
	logger.Ctx(ctx).Info().Int64("order_id", orderCtx.OrderID).Str("owner", owner).Int("total_quantity", total).Msg("order created")

	return &CreateOrderResponse{OrderID: orderCtx.OrderID, Status: orderCtx.Order.Status}, nil
}

// ListOrders 返回所有订单，按 ID 升序
func (s *OrderApplicationService) ListOrders(ctx context.Context) ([]OrderView, error) {
	ctx, span := s.tracer.Start(ctx, "app.ListOrders")
	defer span.End()

	orders, err := s.orderRepo.FindAll(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return toOrderViews(orders), nil
}

// MyOrders 返回调用者自己的订单，按 ID 升序
func (s *OrderApplicationService) MyOrders(ctx context.Context, ownerEmail string) ([]OrderView, error) {
	ctx, span := s.tracer.Start(ctx, "app.MyOrders")
	defer span.End()

	ownerEmail = domain.NormalizeEmail(ownerEmail)
	if ownerEmail == "" {
		return nil, errors.Wrap(domain.ErrInvalidOrder, "owner email is required")
	}
	orders, err := s.orderRepo.FindByOwner(ctx, ownerEmail)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return toOrderViews(orders), nil
}

func (s *OrderApplicationService) GetOrder(ctx context.Context, id int64) (*OrderView, error) {
	ctx, span := s.tracer.Start(ctx, "app.GetOrder")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", id))

	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	view := ToOrderView(order)
	return &view, nil
}

// CancelOrder 只有订单所有者可以取消；库存不回补。
func (s *OrderApplicationService) CancelOrder(ctx context.Context, id int64, actorEmail string) (*OrderView, error) {
	ctx, span := s.tracer.Start(ctx, "app.CancelOrder")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", id))

	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !order.IsOwnedBy(actorEmail) {
		return nil, errors.Wrapf(domain.ErrForbidden, "order %d", id)
	}
	from := order.Status
	if err := order.Cancel(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := s.orderRepo.UpdateStatus(ctx, id, from, order.Status); err != nil {
		span.RecordError(err)
		// 并发取消或订单已被删除
		if errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, domain.ErrOrderNotFound) {
			return nil, err
		}
		span.SetStatus(codes.Error, "update status failed")
		return nil, errors.Wrapf(domain.ErrPersistence, "cancel order %d: %v", id, err)
	}

	logger.Ctx(ctx).Info().Int64("order_id", id).Str("actor", actorEmail).Msg("order canceled")
	view := ToOrderView(order)
	return &view, nil
}

// rejectionReason 作为指标标签，取值有限
func rejectionReason(err error) string {
	var stockErr *domain.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, domain.ErrInventoryUnavailable):
		return "inventory_unavailable"
	case errors.Is(err, domain.ErrLineRejected):
		return "policy"
	case errors.Is(err, domain.ErrInvalidOrder):
		return "invalid"
	case errors.Is(err, domain.ErrPersistence):
		return "persistence"
	default:
		return "other"
	}
}
