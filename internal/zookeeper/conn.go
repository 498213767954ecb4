package zookeeper

import (
	"context"
	"time"

	"github.com/go-zookeeper/zk"

	"ordersystem/internal/pkg/logger"
)

// Conn 包装 zk.Conn，便于统一创建与关闭
type Conn struct {
	*zk.Conn
}

// Connect 连接 ZooKeeper 集群
func Connect(servers []string, sessionTimeout time.Duration) (*Conn, error) {
	conn, events, err := zk.Connect(servers, sessionTimeout)
	if err != nil {
		return nil, err
	}

	// 会话事件只用于记录日志
	go func() {
		for ev := range events {
			if ev.State == zk.StateExpired || ev.State == zk.StateDisconnected {
				logger.Ctx(context.Background()).Warn().
					Str("state", ev.State.String()).
					Msg("zookeeper session state changed")
			}
		}
	}()
	return &Conn{Conn: conn}, nil
}
