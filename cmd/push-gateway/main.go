// cmd/push-gateway/main.go
package main

import (
	"context"
	"time"

	"github.com/google/uuid"

	"ordersystem/internal/pkg/bootstrap"
	"ordersystem/internal/pkg/cache"
	"ordersystem/internal/pkg/logger"
	"ordersystem/internal/pkg/mq"
	"ordersystem/internal/service/push"
)

const (
	serviceName = "push-gateway"
	sessionTTL  = 24 * time.Hour
)

func main() {
	cfg := bootstrap.MustLoad(serviceName)
	ctx := context.Background()
	nodeID := serviceName + "-" + uuid.New().String()[:8]
	log := logger.Ctx(logger.WithContext(ctx, map[string]string{"node": nodeID}))

	var closers []func(context.Context) error
	var sessions *push.SessionStore
	if cfg.Infra.Redis.Addr != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.Infra.Redis.Addr, cfg.Infra.Redis.Password, cfg.Infra.Redis.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		sessions = push.NewSessionStore(cache.NewRedisCache(rdb), sessionTTL)
		closers = append(closers, func(context.Context) error { return rdb.Close() })
	}

	hub := push.NewHub(nodeID, sessions)

	// 每个节点使用独立的消费组，确保所有节点都能收到全部通知
	reader := mq.NewLatestKafkaReader(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.NotificationTopic, cfg.Infra.Kafka.ConsumerGroup+"-"+nodeID)
	consumer := mq.NewConsumer("notification-consumer", reader, push.NewNotificationConsumer(hub).Handle, nil)

	log.Info().Msg("push gateway starting")
	err := bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Config:      cfg,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			push.NewHandler(hub).RegisterRoutes(appCtx.Router)
		},
		Runners: []bootstrap.Runner{hub.Run, consumer.Run},
		Closers: closers,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("push gateway exited with error")
	}
}
