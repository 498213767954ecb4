package infrastructure

import (
	"context"
	"time"

	"ordersystem/internal/pkg/cache"
)

const dedupKeyPrefix = "product:stock-event:"

// EventDeduplicator 把已处理的事件 ID 记在缓存里（生产环境为 Redis），过期后自动清理
type EventDeduplicator struct {
	cache cache.Cache
	ttl   time.Duration
}

func NewEventDeduplicator(c cache.Cache, ttl time.Duration) *EventDeduplicator {
	return &EventDeduplicator{cache: c, ttl: ttl}
}

func (d *EventDeduplicator) Seen(ctx context.Context, eventID string) (bool, error) {
	return d.cache.Exists(ctx, dedupKeyPrefix+eventID)
}

func (d *EventDeduplicator) MarkProcessed(ctx context.Context, eventID string) error {
	return d.cache.Set(ctx, dedupKeyPrefix+eventID, "1", d.ttl)
}
