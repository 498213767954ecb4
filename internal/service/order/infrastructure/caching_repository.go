package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
	"ordersystem/internal/pkg/cache"
	"ordersystem/internal/pkg/logger"
	"ordersystem/internal/service/order/domain"
)

const (
	cacheKeyAll     = "ordering:list:all"
	cacheKeyOwner   = "ordering:list:owner:%s"
	cacheKeyOrderID = "ordering:detail:%d"

	// 每个缓存条目都有一个版本号 key，数据 key = 条目 key + ":" + 版本号
	versionSuffix = ":ver"
)

// CachingOrderRepository 为读路径加一层缓存。
// 写操作不删除数据，而是递增相关条目的版本号：写之前开始的读即使晚于写回填缓存，
// 写入的也是旧版本的 key，不会再被读到。
// 缓存不可用时直接回源，不影响读写结果。
type CachingOrderRepository struct {
	next  domain.OrderRepository
	cache cache.Cache
	ttl   time.Duration
	group singleflight.Group
}

func NewCachingOrderRepository(next domain.OrderRepository, c cache.Cache, ttl time.Duration) *CachingOrderRepository {
	return &CachingOrderRepository{next: next, cache: c, ttl: ttl}
}

func ownerKey(email string) string {
	return fmt.Sprintf(cacheKeyOwner, domain.NormalizeEmail(email))
}

func (r *CachingOrderRepository) Save(ctx context.Context, order *domain.Order) (int64, error) {
	id, err := r.next.Save(ctx, order)
	if err != nil {
		return 0, err
	}
	r.bump(ctx, cacheKeyAll, ownerKey(order.OwnerEmail))
	return id, nil
}

func (r *CachingOrderRepository) UpdateStatus(ctx context.Context, id int64, from, to domain.Status) error {
	// 先查出所有者，便于失效它的列表缓存
	order, findErr := r.next.FindByID(ctx, id)
	if err := r.next.UpdateStatus(ctx, id, from, to); err != nil {
		return err
	}
	keys := []string{cacheKeyAll, fmt.Sprintf(cacheKeyOrderID, id)}
	if findErr == nil {
		keys = append(keys, ownerKey(order.OwnerEmail))
	}
	r.bump(ctx, keys...)
	return nil
}

func (r *CachingOrderRepository) FindAll(ctx context.Context) ([]*domain.Order, error) {
	var out []*domain.Order
	err := r.load(ctx, cacheKeyAll, &out, func() (any, error) {
		return r.next.FindAll(ctx)
	})
	return out, err
}

func (r *CachingOrderRepository) FindByOwner(ctx context.Context, ownerEmail string) ([]*domain.Order, error) {
	ownerEmail = domain.NormalizeEmail(ownerEmail)
	var out []*domain.Order
	err := r.load(ctx, ownerKey(ownerEmail), &out, func() (any, error) {
		return r.next.FindByOwner(ctx, ownerEmail)
	})
	return out, err
}

func (r *CachingOrderRepository) FindByID(ctx context.Context, id int64) (*domain.Order, error) {
	var out *domain.Order
	err := r.load(ctx, fmt.Sprintf(cacheKeyOrderID, id), &out, func() (any, error) {
		return r.next.FindByID(ctx, id)
	})
	return out, err
}

// load 先读缓存，未命中时通过 singleflight 合并并发回源，再回填缓存。
// 返回的对象总是从 JSON 解码得到，调用方之间不会共享同一个指针。
func (r *CachingOrderRepository) load(ctx context.Context, key string, out any, fetch func() (any, error)) error {
	version, _, err := r.cache.Get(ctx, key+versionSuffix)
	if err != nil {
		// 拿不到版本号就无法判断缓存是否过期，直接回源
		logger.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("order cache version read failed")
		result, err := fetch()
		if err != nil {
			return err
		}
		return roundTrip(result, out)
	}
	dataKey := key + ":" + version

	if raw, ok, err := r.cache.Get(ctx, dataKey); err == nil && ok {
		if jsonErr := json.Unmarshal([]byte(raw), out); jsonErr == nil {
			return nil
		}
	} else if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("key", dataKey).Msg("order cache read failed")
	}

	v, err, _ := r.group.Do(dataKey, func() (any, error) {
		result, err := fetch()
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(result)
		if err != nil {
			return nil, err
		}
		if setErr := r.cache.Set(ctx, dataKey, string(data), r.ttl); setErr != nil {
			logger.Ctx(ctx).Warn().Err(setErr).Str("key", dataKey).Msg("order cache write failed")
		}
		return data, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(v.([]byte), out)
}

// bump 递增条目的版本号，旧版本的数据随 TTL 过期
func (r *CachingOrderRepository) bump(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if _, err := r.cache.Incr(ctx, key+versionSuffix); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("order cache invalidation failed")
		}
	}
}

func roundTrip(in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
