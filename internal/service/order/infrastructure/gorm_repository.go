package infrastructure

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"ordersystem/internal/service/order/domain"
)

// GormOrderRepository 是 OrderRepository 的 GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository 创建一个新的 GORM 仓储实例
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// AutoMigrate 创建或更新订单相关的表
func (r *GormOrderRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&OrderModel{}, &OrderLineModel{})
}

// Save 在一个事务中写入订单和它的全部订单行，返回新订单的 ID
func (r *GormOrderRepository) Save(ctx context.Context, order *domain.Order) (int64, error) {
	model := FromDomainOrder(order)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 订单行随关联一起创建
		return tx.Create(model).Error
	})
	if err != nil {
		return 0, errors.Wrap(err, "insert order")
	}

	order.ID = model.ID
	for i := range order.Lines {
		if i < len(model.Details) {
			order.Lines[i].ID = model.Details[i].ID
		}
	}
	return model.ID, nil
}

func (r *GormOrderRepository) FindAll(ctx context.Context) ([]*domain.Order, error) {
	var models []OrderModel
	err := r.db.WithContext(ctx).Preload("Details", orderedByID).Order("id ASC").Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return toDomainOrders(models), nil
}

func (r *GormOrderRepository) FindByOwner(ctx context.Context, ownerEmail string) ([]*domain.Order, error) {
	var models []OrderModel
	err := r.db.WithContext(ctx).Preload("Details", orderedByID).
		Where("member_email = ?", ownerEmail).Order("id ASC").Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "list orders by owner")
	}
	return toDomainOrders(models), nil
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id int64) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).Preload("Details", orderedByID).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(domain.ErrOrderNotFound, "order %d", id)
		}
		return nil, errors.Wrapf(err, "find order %d", id)
	}
	return ToDomainOrder(&model), nil
}

// UpdateStatus 以 from 为条件更新状态，并发的两次取消只有一次成功
func (r *GormOrderRepository) UpdateStatus(ctx context.Context, id int64, from, to domain.Status) error {
	res := r.db.WithContext(ctx).Model(&OrderModel{}).
		Where("id = ? AND order_status = ?", id, string(from)).
		Update("order_status", string(to))
	if res.Error != nil {
		return errors.Wrapf(res.Error, "update order %d status", id)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&OrderModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return errors.Wrapf(err, "check order %d", id)
	}
	if count == 0 {
		return errors.Wrapf(domain.ErrOrderNotFound, "order %d", id)
	}
	return errors.Wrapf(domain.ErrInvalidTransition, "order %d is no longer %s", id, from)
}

func orderedByID(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}

func toDomainOrders(models []OrderModel) []*domain.Order {
	orders := make([]*domain.Order, 0, len(models))
	for i := range models {
		orders = append(orders, ToDomainOrder(&models[i]))
	}
	return orders
}
