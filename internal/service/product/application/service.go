// internal/service/product/application/service.go
package application

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ordersystem/internal/pkg/logger"
	"ordersystem/internal/service/product/domain"
)

// StockUpdateEvent 是订单服务发出的库存扣减消息
type StockUpdateEvent struct {
	EventID   string `json:"eventId"`
	ProductID int64  `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// CreateProductRequest 是创建商品用例的输入数据
type CreateProductRequest struct {
	Name          string `json:"name"`
	Category      string `json:"category"`
	Price         int    `json:"price"`
	StockQuantity int    `json:"stockQuantity"`
}

// UpdateProductRequest 是修改商品用例的输入数据，所有可编辑字段整体覆盖
type UpdateProductRequest = CreateProductRequest

// ProductView 是返回给调用方的商品视图
type ProductView struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Category      string `json:"category"`
	Price         int    `json:"price"`
	StockQuantity int    `json:"stockQuantity"`
}

func toView(p *domain.Product) ProductView {
	return ProductView{
		ID:            p.ID,
		Name:          p.Name,
		Category:      p.Category,
		Price:         p.Price,
		StockQuantity: p.StockQuantity,
	}
}

type ProductService struct {
	repo   domain.Repository
	dedup  Deduplicator
	locker Locker
	tracer trace.Tracer
}

func NewProductService(repo domain.Repository, dedup Deduplicator, locker Locker, tracer trace.Tracer) *ProductService {
	return &ProductService{repo: repo, dedup: dedup, locker: locker, tracer: tracer}
}

func (s *ProductService) Create(ctx context.Context, req CreateProductRequest, memberEmail string) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "app.CreateProduct")
	defer span.End()

	p, err := domain.NewProduct(req.Name, req.Category, req.Price, req.StockQuantity, memberEmail)
	if err != nil {
		return 0, err
	}
	id, err := s.repo.Create(ctx, p)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	logger.Ctx(ctx).Info().Int64("product_id", id).Str("name", p.Name).Msg("product created")
	return id, nil
}

func (s *ProductService) List(ctx context.Context) ([]ProductView, error) {
	ctx, span := s.tracer.Start(ctx, "app.ListProducts")
	defer span.End()

	products, err := s.repo.FindAll(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	views := make([]ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, toView(p))
	}
	return views, nil
}

func (s *ProductService) Detail(ctx context.Context, id int64) (*ProductView, error) {
	ctx, span := s.tracer.Start(ctx, "app.ProductDetail")
	defer span.End()
	span.SetAttributes(attribute.Int64("product.id", id))

	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	v := toView(p)
	return &v, nil
}

// Update 修改商品信息。与库存扣减共用商品级别的锁，避免覆盖并发扣减的结果。
func (s *ProductService) Update(ctx context.Context, id int64, req UpdateProductRequest) error {
	ctx, span := s.tracer.Start(ctx, "app.UpdateProduct")
	defer span.End()
	span.SetAttributes(attribute.Int64("product.id", id))

	release, err := s.locker.Acquire(ctx, stockLockKey(id))
	if err != nil {
		span.RecordError(err)
		return errors.Wrapf(err, "lock product %d", id)
	}
	defer func() {
		if err := release(); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Int64("product_id", id).Msg("failed to release product lock")
		}
	}()

	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if err := p.Update(req.Name, req.Category, req.Price, req.StockQuantity); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update product failed")
		return err
	}
	logger.Ctx(ctx).Info().Int64("product_id", id).Str("name", p.Name).Msg("product updated")
	return nil
}

// UpdateStock 是同步扣减入口
func (s *ProductService) UpdateStock(ctx context.Context, productID int64, quantity int) error {
	ctx, span := s.tracer.Start(ctx, "app.UpdateStock")
	defer span.End()
	return s.decrease(ctx, span, productID, quantity)
}

// ApplyStockUpdate 处理一条异步扣减消息：按事件 ID 去重，并在商品级别的锁内扣减。
func (s *ProductService) ApplyStockUpdate(ctx context.Context, event StockUpdateEvent) error {
	ctx, span := s.tracer.Start(ctx, "app.ApplyStockUpdate")
	defer span.End()
	span.SetAttributes(
		attribute.String("event.id", event.EventID),
		attribute.Int64("product.id", event.ProductID),
		attribute.Int("quantity", event.Quantity),
	)

	release, err := s.locker.Acquire(ctx, stockLockKey(event.ProductID))
	if err != nil {
		span.RecordError(err)
		return errors.Wrapf(err, "lock product %d", event.ProductID)
	}
	defer func() {
		if err := release(); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Int64("product_id", event.ProductID).Msg("failed to release product lock")
		}
	}()

	if event.EventID != "" {
		seen, err := s.dedup.Seen(ctx, event.EventID)
		if err != nil {
			// 去重存储不可用时照常扣减
			logger.Ctx(ctx).Warn().Err(err).Str("event_id", event.EventID).Msg("dedup lookup failed")
		} else if seen {
			span.AddEvent("duplicate event skipped")
			logger.Ctx(ctx).Info().Str("event_id", event.EventID).Msg("duplicate stock update skipped")
			return nil
		}
	}

	if err := s.decrease(ctx, span, event.ProductID, event.Quantity); err != nil {
		return err
	}

	if event.EventID != "" {
		if err := s.dedup.MarkProcessed(ctx, event.EventID); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("event_id", event.EventID).Msg("failed to mark event processed")
		}
	}
	return nil
}

func stockLockKey(productID int64) string {
	return fmt.Sprintf("product-stock-%d", productID)
}

func (s *ProductService) decrease(ctx context.Context, span trace.Span, productID int64, quantity int) error {
	if quantity <= 0 {
		return errors.Wrapf(domain.ErrInvalidProduct, "product %d: quantity must be positive, got %d", productID, quantity)
	}
	if err := s.repo.DecreaseStock(ctx, productID, quantity); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decrease stock failed")
		return err
	}
	logger.Ctx(ctx).Info().Int64("product_id", productID).Int("quantity", quantity).Msg("stock decreased")
	return nil
}
