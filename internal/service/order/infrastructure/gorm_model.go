package infrastructure

import (
	"time"

	"ordersystem/internal/service/order/domain"
)

// OrderModel 对应数据库中的 ordering 表
type OrderModel struct {
	ID          int64         `gorm:"primaryKey;autoIncrement"`
	MemberEmail string        `gorm:"type:varchar(255);index;not null"`
	OrderStatus domain.Status `gorm:"type:varchar(16);not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	// 关联关系，订单行随订单一起写入
	Details []OrderLineModel `gorm:"foreignKey:OrderingID;constraint:OnDelete:CASCADE"`
}

// TableName 指定 GORM 应该使用的表名
func (OrderModel) TableName() string {
	return "ordering"
}

// OrderLineModel 对应数据库中的 order_detail 表
type OrderLineModel struct {
	ID          int64 `gorm:"primaryKey;autoIncrement"`
	OrderingID  int64 `gorm:"index;not null"`
	ProductID   int64 `gorm:"not null"`
	ProductName string
	Quantity    int `gorm:"not null"`
}

// TableName 指定 GORM 应该使用的表名
func (OrderLineModel) TableName() string {
	return "order_detail"
}
