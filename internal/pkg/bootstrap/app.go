// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"ordersystem/internal/pkg/logger"
	"ordersystem/internal/pkg/nacos"
	"ordersystem/internal/tracing"
)

const shutdownTimeout = 10 * time.Second

type AppCtx struct {
	Router chi.Router
	Nacos  *nacos.Client // 未配置 Nacos 时为 nil
	Config *Config
}

// Runner 是随服务一起启动的后台任务（例如 kafka 消费者），ctx 取消时应返回。
type Runner func(ctx context.Context) error

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	ServiceName      string
	Config           *Config
	RegisterHandlers func(appCtx AppCtx) // 一个函数，允许每个服务注册自己独特的 HTTP 路由
	Runners          []Runner
	// Closers 在 HTTP 服务关闭之后按注册的逆序执行
	Closers []func(ctx context.Context) error
}

// StartService 封装了所有微服务的通用启动和优雅关停逻辑。
// 阻塞直到收到 SIGINT/SIGTERM 或某个 Runner 返回错误。
func StartService(info AppInfo) error {
	cfg := info.Config
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	log := logger.Ctx(ctx)

	// 1. Tracer
	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		return errors.Wrap(err, "failed to initialize tracer provider")
	}

	// 2. 服务注册（可选）
	var namingClient *nacos.Client
	var ip string
	if cfg.Infra.Nacos.Addrs != "" {
		namingClient, err = nacos.NewNacosClient(cfg.Infra.Nacos.Addrs, cfg.Infra.Nacos.Namespace, cfg.Infra.Nacos.Group)
		if err != nil {
			return errors.Wrap(err, "failed to initialize nacos client")
		}
		if ip, err = GetOutboundIP(); err != nil {
			return errors.Wrap(err, "failed to get outbound IP address")
		}
		if err := namingClient.RegisterServiceInstance(info.ServiceName, ip, cfg.App.Port); err != nil {
			return errors.Wrap(err, "failed to register service with nacos")
		}
	}

	// 3. 路由
	router := chi.NewRouter()
	router.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(AppCtx{Router: router, Nacos: namingClient, Config: cfg})
	}
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msgf("%s listening", info.ServiceName)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrapf(err, "could not listen on %s", server.Addr)
		}
		return nil
	})
	for _, run := range info.Runners {
		run := run
		g.Go(func() error { return run(gctx) })
	}

	// 4. 优雅关停：收到信号或任一任务失败时触发
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msgf("Shutting down service %s...", info.ServiceName)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// a. 从 Nacos 注销服务，停止接收新流量
		if namingClient != nil {
			if err := namingClient.DeregisterServiceInstance(info.ServiceName, ip, cfg.App.Port); err != nil {
				log.Error().Err(err).Msg("Error deregistering from Nacos")
			}
		}

		// b. 关闭 HTTP 服务器
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error shutting down http server")
		}

		// c. 释放各服务自己的资源（后进先出）
		for i := len(info.Closers) - 1; i >= 0; i-- {
			if err := info.Closers[i](shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Error closing resource")
			}
		}

		// d. 最后关闭 Tracer Provider，确保所有缓冲的 trace 都被发送出去
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error shutting down tracer provider")
		}
		return nil
	})

	err = g.Wait()
	log.Info().Msgf("Service %s gracefully shut down.", info.ServiceName)
	return err
}

// ConfigPath 返回配置文件路径：CONFIG_PATH 优先，否则 configs/<service>.yaml
func ConfigPath(serviceName string) string {
	return getEnv("CONFIG_PATH", "configs/"+serviceName+".yaml")
}

// MustLoad 是 main 函数使用的便捷方法，加载失败直接退出。
func MustLoad(serviceName string) *Config {
	cfg, err := LoadConfig(serviceName, ConfigPath(serviceName))
	if err != nil {
		logger.Init(serviceName, "info")
		logger.Ctx(context.Background()).Fatal().Err(err).Msg("failed to load configuration")
	}
	logger.Init(serviceName, cfg.App.LogLevel)
	return cfg
}
