package infrastructure

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"ordersystem/internal/service/product/domain"
)

// GormProductRepository 是 domain.Repository 的 GORM 实现
type GormProductRepository struct {
	db *gorm.DB
}

func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&ProductModel{})
}

func (r *GormProductRepository) Create(ctx context.Context, p *domain.Product) (int64, error) {
	model := fromDomain(p)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return 0, errors.Wrap(err, "insert product")
	}
	p.ID = model.ID
	return model.ID, nil
}

func (r *GormProductRepository) FindAll(ctx context.Context) ([]*domain.Product, error) {
	var models []ProductModel
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	out := make([]*domain.Product, 0, len(models))
	for i := range models {
		out = append(out, toDomain(&models[i]))
	}
	return out, nil
}

func (r *GormProductRepository) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	var model ProductModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(domain.ErrProductNotFound, "product %d", id)
		}
		return nil, errors.Wrapf(err, "find product %d", id)
	}
	return toDomain(&model), nil
}

// DecreaseStock 用带条件的 UPDATE 扣减，库存不会被扣成负数
func (r *GormProductRepository) DecreaseStock(ctx context.Context, id int64, quantity int) error {
	res := r.db.WithContext(ctx).Model(&ProductModel{}).
		Where("id = ? AND stock_quantity >= ?", id, quantity).
		Update("stock_quantity", gorm.Expr("stock_quantity - ?", quantity))
	if res.Error != nil {
		return errors.Wrapf(res.Error, "decrease stock of product %d", id)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// 没有行被更新：区分商品不存在与库存不足
	if _, err := r.FindByID(ctx, id); err != nil {
		return err
	}
	return errors.Wrapf(domain.ErrInsufficientStock, "product %d: cannot decrease by %d", id, quantity)
}

// Update 只写可编辑字段，member_email 与 created_at 保持不变
func (r *GormProductRepository) Update(ctx context.Context, p *domain.Product) error {
	res := r.db.WithContext(ctx).Model(&ProductModel{}).
		Where("id = ?", p.ID).
		Select("name", "category", "price", "stock_quantity", "updated_at").
		Updates(&ProductModel{
			Name:          p.Name,
			Category:      p.Category,
			Price:         p.Price,
			StockQuantity: p.StockQuantity,
			UpdatedAt:     time.Now(),
		})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "update product %d", p.ID)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	// 没有行被更新说明商品不存在
	_, err := r.FindByID(ctx, p.ID)
	return err
}

func toDomain(m *ProductModel) *domain.Product {
	return &domain.Product{
		ID:            m.ID,
		Name:          m.Name,
		Category:      m.Category,
		Price:         m.Price,
		StockQuantity: m.StockQuantity,
		MemberEmail:   m.MemberEmail,
		CreatedAt:     m.CreatedAt,
	}
}

func fromDomain(p *domain.Product) *ProductModel {
	return &ProductModel{
		ID:            p.ID,
		Name:          p.Name,
		Category:      p.Category,
		Price:         p.Price,
		StockQuantity: p.StockQuantity,
		MemberEmail:   p.MemberEmail,
		CreatedAt:     p.CreatedAt,
	}
}
