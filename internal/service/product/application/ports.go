package application

import "context"

// Deduplicator 记录已经处理过的库存事件，消息至少投递一次，重复的事件直接跳过
type Deduplicator interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
}

// Locker 对同一个 key 的操作做互斥，返回的函数用于释放锁
type Locker interface {
	Acquire(ctx context.Context, key string) (func() error, error)
}
