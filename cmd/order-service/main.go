// cmd/order-service/main.go
package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"ordersystem/internal/pkg/bootstrap"
	"ordersystem/internal/pkg/cache"
	"ordersystem/internal/pkg/circuitbreaker"
	"ordersystem/internal/pkg/database"
	"ordersystem/internal/pkg/httpclient"
	"ordersystem/internal/pkg/logger"
	"ordersystem/internal/pkg/mq"
	"ordersystem/internal/service/order/application"
	"ordersystem/internal/service/order/application/saga"
	"ordersystem/internal/service/order/domain/port"
	"ordersystem/internal/service/order/infrastructure"
	"ordersystem/internal/service/order/infrastructure/adapter"
	"ordersystem/internal/service/order/interfaces"
)

const serviceName = "order-service"

func main() {
	cfg := bootstrap.MustLoad(serviceName)
	ctx := context.Background()
	log := logger.Ctx(ctx)

	// 1. 持久化
	db, err := database.Open(cfg.Infra.MySQL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to mysql")
	}
	gormRepo := infrastructure.NewGormOrderRepository(db)
	if err := gormRepo.AutoMigrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate order tables")
	}

	closers := []func(context.Context) error{
		func(context.Context) error { return database.Close(db) },
	}

	// 2. 读路径缓存：未配置 Redis 时使用进程内缓存
	var orderCache cache.Cache = cache.NewMemoryCache()
	if cfg.Infra.Redis.Addr != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.Infra.Redis.Addr, cfg.Infra.Redis.Password, cfg.Infra.Redis.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		orderCache = cache.NewRedisCache(rdb)
		closers = append(closers, closeRedis(rdb))
	}
	repo := infrastructure.NewCachingOrderRepository(gormRepo, orderCache, cfg.Infra.Redis.CacheTTL)

	// 3. 指标与熔断器
	metrics := application.NewMetrics(prometheus.DefaultRegisterer)
	breaker := circuitbreaker.New("inventory", breakerConfig(cfg.Inventory.Breaker),
		circuitbreaker.WithFailurePredicate(adapter.IsBreakerFailure),
		circuitbreaker.WithStateChangeHook(func(name string, from, to circuitbreaker.State) {
			logger.Ctx(ctx).Warn().Str("breaker", name).Stringer("from", from).Stringer("to", to).Msg("circuit breaker state changed")
			metrics.BreakerStateChanged(name, from, to)
		}),
	)

	// 4. 消息生产者
	stockWriter := mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.StockUpdateTopic)
	notificationWriter := mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.NotificationTopic)
	closers = append(closers,
		func(context.Context) error { return stockWriter.Close() },
		func(context.Context) error { return notificationWriter.Close() },
	)

	var policy saga.LineChecker
	if cfg.App.LinePolicy != "" {
		p, err := application.NewLinePolicy(cfg.App.LinePolicy)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid line policy")
		}
		policy = p
	}

	httpClient := httpclient.NewClient(otel.Tracer(serviceName))

	err = bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Config:      cfg,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			var resolver adapter.Resolver = adapter.StaticResolver(cfg.Inventory.BaseURL)
			if appCtx.Nacos != nil {
				resolver = adapter.NewNacosResolver(appCtx.Nacos, cfg.Inventory.ServiceName)
			}

			inventory := adapter.NewGuardedInventoryClient(
				adapter.NewInventoryHTTPAdapter(httpClient, resolver, cfg.Inventory.Timeout), breaker)

			var stockPublisher port.StockUpdatePublisher = adapter.NewStockUpdateKafkaAdapter(stockWriter)
			if cfg.App.StockUpdateMode == "http" {
				stockPublisher = adapter.NewStockUpdateHTTPAdapter(httpClient, resolver)
			}

			svc := application.NewOrderApplicationService(
				repo,
				otel.Tracer(serviceName),
				metrics,
				inventory,
				stockPublisher,
				adapter.NewNotificationKafkaAdapter(notificationWriter),
				application.Options{
					AdminRecipient:    cfg.App.AdminRecipient,
					ProcessingTimeout: cfg.App.ProcessingTimeout,
					PublishTimeout:    cfg.App.PublishTimeout,
					Policy:            policy,
				},
			)
			interfaces.NewOrderHandler(svc, nil).RegisterRoutes(appCtx.Router)
		},
		Closers: closers,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("order service exited with error")
	}
}

func breakerConfig(c bootstrap.BreakerConfig) circuitbreaker.Config {
	return circuitbreaker.Config{
		WindowSize:       c.WindowSize,
		FailureThreshold: c.FailureThreshold,
		MinimumCalls:     c.MinimumCalls,
		Cooldown:         c.Cooldown,
		HalfOpenMaxCalls: c.HalfOpenMaxCalls,
		SlowCallDuration: c.SlowCallDuration,
	}
}

func closeRedis(rdb *redis.Client) func(context.Context) error {
	return func(context.Context) error { return rdb.Close() }
}
