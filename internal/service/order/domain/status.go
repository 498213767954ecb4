// internal/service/order/domain/status.go
package domain

// Status 定义了订单的生命周期状态
type Status string

const (
	StatusOrdered  Status = "ORDERED"  // 所有订单行校验通过并已持久化
	StatusCanceled Status = "CANCELED" // 已取消，终态
)

// CanTransitionTo 只允许 ORDERED -> CANCELED，不可逆
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusOrdered && next == StatusCanceled
}

// Valid 判断是否为已知状态（从存储读出时使用）
func (s Status) Valid() bool {
	return s == StatusOrdered || s == StatusCanceled
}
