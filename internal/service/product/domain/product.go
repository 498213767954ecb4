// internal/service/product/domain/product.go
package domain

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrInvalidProduct    = errors.New("invalid product")
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Product 是商品聚合，库存数量只能通过 Repository.DecreaseStock 原子地减少
type Product struct {
	ID            int64
	Name          string
	Category      string
	Price         int
	StockQuantity int
	MemberEmail   string // 登记商品的管理员
	CreatedAt     time.Time
}

func validate(name string, price, stock int) error {
	if name == "" {
		return errors.Wrap(ErrInvalidProduct, "name is required")
	}
	if price < 0 {
		return errors.Wrapf(ErrInvalidProduct, "price must not be negative, got %d", price)
	}
	if stock < 0 {
		return errors.Wrapf(ErrInvalidProduct, "stock must not be negative, got %d", stock)
	}
	return nil
}

// NewProduct 创建一个尚未持久化的商品
func NewProduct(name, category string, price, stock int, memberEmail string) (*Product, error) {
	name = strings.TrimSpace(name)
	if err := validate(name, price, stock); err != nil {
		return nil, err
	}
	return &Product{
		Name:          name,
		Category:      category,
		Price:         price,
		StockQuantity: stock,
		MemberEmail:   memberEmail,
		CreatedAt:     time.Now(),
	}, nil
}

// Update 覆盖商品的可编辑字段，校验规则与 NewProduct 相同。
// 已经下单的订单保存了当时的商品名，不受改名影响。
func (p *Product) Update(name, category string, price, stock int) error {
	name = strings.TrimSpace(name)
	if err := validate(name, price, stock); err != nil {
		return err
	}
	p.Name = name
	p.Category = category
	p.Price = price
	p.StockQuantity = stock
	return nil
}

// Repository 定义了商品的持久化接口
type Repository interface {
	Create(ctx context.Context, p *Product) (int64, error)
	FindAll(ctx context.Context) ([]*Product, error)
	FindByID(ctx context.Context, id int64) (*Product, error)
	// DecreaseStock 在库存充足时原子地扣减，否则返回 ErrInsufficientStock
	DecreaseStock(ctx context.Context, id int64, quantity int) error
	// Update 保存商品的可编辑字段，商品不存在时返回 ErrProductNotFound
	Update(ctx context.Context, p *Product) error
}
