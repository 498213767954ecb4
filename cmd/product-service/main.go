// cmd/product-service/main.go
package main

import (
	"context"

	"go.opentelemetry.io/otel"

	"ordersystem/internal/pkg/bootstrap"
	"ordersystem/internal/pkg/cache"
	"ordersystem/internal/pkg/database"
	"ordersystem/internal/pkg/logger"
	"ordersystem/internal/pkg/mq"
	"ordersystem/internal/service/product/application"
	"ordersystem/internal/service/product/infrastructure"
	"ordersystem/internal/service/product/interfaces"
	"ordersystem/internal/zookeeper"
)

const serviceName = "product-service"

func main() {
	cfg := bootstrap.MustLoad(serviceName)
	ctx := context.Background()
	log := logger.Ctx(ctx)

	db, err := database.Open(cfg.Infra.MySQL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to mysql")
	}
	repo := infrastructure.NewGormProductRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate product table")
	}
	closers := []func(context.Context) error{
		func(context.Context) error { return database.Close(db) },
	}

	// 去重存储
	var dedupCache cache.Cache = cache.NewMemoryCache()
	if cfg.Infra.Redis.Addr != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.Infra.Redis.Addr, cfg.Infra.Redis.Password, cfg.Infra.Redis.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		dedupCache = cache.NewRedisCache(rdb)
		closers = append(closers, func(context.Context) error { return rdb.Close() })
	}

	// 商品级别的锁：多副本部署时使用 ZooKeeper
	var locker application.Locker = infrastructure.NewKeyedMutex()
	if len(cfg.Infra.Zookeeper.Servers) > 0 {
		conn, err := zookeeper.Connect(cfg.Infra.Zookeeper.Servers, cfg.Infra.Zookeeper.SessionTimeout)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to zookeeper")
		}
		locker = zookeeper.NewLockProvider(conn, cfg.Infra.Zookeeper.LockTimeout)
		closers = append(closers, func(context.Context) error { conn.Close(); return nil })
	}

	svc := application.NewProductService(
		repo,
		infrastructure.NewEventDeduplicator(dedupCache, cfg.Infra.Redis.DedupTTL),
		locker,
		otel.Tracer(serviceName),
	)

	// 库存扣减消费者，失败消息进入死信主题
	topic := cfg.Infra.Kafka.StockUpdateTopic
	reader := mq.NewKafkaReader(cfg.Infra.Kafka.Brokers, topic, cfg.Infra.Kafka.ConsumerGroup)
	dltWriter := mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, mq.DeadLetterTopic(topic))
	closers = append(closers, func(context.Context) error { return dltWriter.Close() })
	consumer := mq.NewConsumer("stock-update-consumer", reader,
		interfaces.NewStockUpdateConsumer(svc).Handle, mq.NewFailureHandler(dltWriter))

	err = bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Config:      cfg,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			interfaces.NewProductHandler(svc, cfg.Product.DetailDelay).RegisterRoutes(appCtx.Router)
		},
		Runners: []bootstrap.Runner{consumer.Run},
		Closers: closers,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("product service exited with error")
	}
}
