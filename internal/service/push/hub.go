// internal/service/push/hub.go
package push

import (
	"context"
	"sync"

	"ordersystem/internal/pkg/logger"
)

// Hub 维护所有活跃的连接，同一个邮箱可以同时有多个会话
type Hub struct {
	nodeID     string
	sessions   *SessionStore // 可以为 nil
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	lock       sync.RWMutex
}

func NewHub(nodeID string, sessions *SessionStore) *Hub {
	return &Hub{
		nodeID:     nodeID,
		sessions:   sessions,
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run 处理注册与注销，ctx 结束时关闭所有连接的发送队列
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.add(ctx, client)
		case client := <-h.unregister:
			h.remove(ctx, client)
		case <-ctx.Done():
			h.lock.Lock()
			for email, set := range h.clients {
				for c := range set {
					close(c.send)
				}
				delete(h.clients, email)
			}
			h.lock.Unlock()
			return nil
		}
	}
}

// Register 返回 false 表示 Hub 已经停止
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) add(ctx context.Context, client *Client) {
	h.lock.Lock()
	set, ok := h.clients[client.email]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[client.email] = set
	}
	set[client] = struct{}{}
	h.lock.Unlock()

	if h.sessions != nil {
		if err := h.sessions.Bind(ctx, client.email, h.nodeID); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("email", client.email).Msg("failed to bind push session")
		}
	}
	logger.Ctx(ctx).Info().Str("email", client.email).Str("node", h.nodeID).Msg("client registered")
}

func (h *Hub) remove(ctx context.Context, client *Client) {
	h.lock.Lock()
	set, ok := h.clients[client.email]
	if !ok {
		h.lock.Unlock()
		return
	}
	if _, ok := set[client]; !ok {
		h.lock.Unlock()
		return
	}
	delete(set, client)
	close(client.send)
	empty := len(set) == 0
	if empty {
		delete(h.clients, client.email)
	}
	h.lock.Unlock()

	if empty && h.sessions != nil {
		if err := h.sessions.Unbind(ctx, client.email); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("email", client.email).Msg("failed to unbind push session")
		}
	}
	logger.Ctx(ctx).Info().Str("email", client.email).Msg("client unregistered")
}

// Deliver 把消息放进该邮箱所有会话的发送队列，返回成功入队的会话数。
// 队列已满的会话直接跳过，不阻塞消费者。
func (h *Hub) Deliver(email string, payload []byte) int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	delivered := 0
	for c := range h.clients[email] {
		select {
		case c.send <- payload:
			delivered++
		default:
		}
	}
	return delivered
}

// Sessions 返回该邮箱当前的会话数
func (h *Hub) Sessions(email string) int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.clients[email])
}
