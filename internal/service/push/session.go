package push

import (
	"context"
	"time"

	"ordersystem/internal/pkg/cache"
)

const sessionKeyPrefix = "push:session:"

// SessionStore 记录某个邮箱连在哪个网关节点上，供多节点部署时路由使用
type SessionStore struct {
	cache cache.Cache
	ttl   time.Duration
}

func NewSessionStore(c cache.Cache, ttl time.Duration) *SessionStore {
	return &SessionStore{cache: c, ttl: ttl}
}

func (s *SessionStore) Bind(ctx context.Context, email, nodeID string) error {
	return s.cache.Set(ctx, sessionKeyPrefix+email, nodeID, s.ttl)
}

func (s *SessionStore) Unbind(ctx context.Context, email string) error {
	return s.cache.Delete(ctx, sessionKeyPrefix+email)
}

// NodeOf 返回邮箱所在的节点，不存在时返回空串
func (s *SessionStore) NodeOf(ctx context.Context, email string) (string, error) {
	node, _, err := s.cache.Get(ctx, sessionKeyPrefix+email)
	return node, err
}
