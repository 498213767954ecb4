package infrastructure

import "time"

// ProductModel 对应数据库中的 product 表
type ProductModel struct {
	ID            int64  `gorm:"primaryKey;autoIncrement"`
	Name          string `gorm:"type:varchar(255);not null"`
	Category      string `gorm:"type:varchar(64)"`
	Price         int
	StockQuantity int    `gorm:"not null"`
	MemberEmail   string `gorm:"type:varchar(255)"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName 指定 GORM 应该使用的表名
func (ProductModel) TableName() string {
	return "product"
}
