// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config 是所有服务共享的配置结构，每个服务只读取自己关心的部分。
type Config struct {
	App       AppConfig       `yaml:"app"`
	Infra     InfraConfig     `yaml:"infra"`
	Inventory InventoryConfig `yaml:"inventory"`
	Product   ProductConfig   `yaml:"product"`
}

type AppConfig struct {
	ServiceName       string        `yaml:"service_name"`
	Port              int           `yaml:"port"`
	LogLevel          string        `yaml:"log_level"`
	AdminRecipient    string        `yaml:"admin_recipient"`
	ProcessingTimeout time.Duration `yaml:"processing_timeout"`
	PublishTimeout    time.Duration `yaml:"publish_timeout"`
	LinePolicy        string        `yaml:"line_policy"`       // CEL 表达式，为空表示不启用
	StockUpdateMode   string        `yaml:"stock_update_mode"` // kafka | http
}

type InfraConfig struct {
	Jaeger    JaegerConfig    `yaml:"jaeger"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	MySQL     MySQLConfig     `yaml:"mysql"`
	Redis     RedisConfig     `yaml:"redis"`
	Nacos     NacosConfig     `yaml:"nacos"`
	Zookeeper ZookeeperConfig `yaml:"zookeeper"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type KafkaConfig struct {
	Brokers           []string `yaml:"brokers"`
	StockUpdateTopic  string   `yaml:"stock_update_topic"`
	NotificationTopic string   `yaml:"notification_topic"`
	ConsumerGroup     string   `yaml:"consumer_group"`
}

type MySQLConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
	DedupTTL time.Duration `yaml:"dedup_ttl"`
}

// NacosConfig 中 Addrs 为空时不做服务注册与发现
type NacosConfig struct {
	Addrs     string `yaml:"addrs"`
	Namespace string `yaml:"namespace"`
	Group     string `yaml:"group"`
}

// ZookeeperConfig 中 Servers 为空时退化为进程内锁
type ZookeeperConfig struct {
	Servers        []string      `yaml:"servers"`
	SessionTimeout time.Duration `yaml:"session_timeout"`
	LockTimeout    time.Duration `yaml:"lock_timeout"`
}

type InventoryConfig struct {
	ServiceName string        `yaml:"service_name"`
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	Breaker     BreakerConfig `yaml:"breaker"`
}

type BreakerConfig struct {
	WindowSize       int           `yaml:"window_size"`
	FailureThreshold int           `yaml:"failure_threshold"`
	MinimumCalls     int           `yaml:"minimum_calls"`
	Cooldown         time.Duration `yaml:"cooldown"`
	HalfOpenMaxCalls int           `yaml:"half_open_max_calls"`
	SlowCallDuration time.Duration `yaml:"slow_call_duration"`
}

type ProductConfig struct {
	DetailDelay time.Duration `yaml:"detail_delay"` // 商品详情接口的故障注入延迟
}

// DefaultConfig 返回显式的默认值，YAML 与环境变量在此基础上覆盖。
func DefaultConfig(serviceName string) *Config {
	return &Config{
		App: AppConfig{
			ServiceName:       serviceName,
			Port:              8080,
			LogLevel:          "info",
			AdminRecipient:    "admin@naver.com",
			ProcessingTimeout: 30 * time.Second,
			PublishTimeout:    3 * time.Second,
			StockUpdateMode:   "kafka",
		},
		Infra: InfraConfig{
			Jaeger: JaegerConfig{Endpoint: "http://localhost:14268/api/traces"},
			Kafka: KafkaConfig{
				Brokers:           []string{"localhost:9092"},
				StockUpdateTopic:  "stock-update-topic",
				NotificationTopic: "order-notifications",
				ConsumerGroup:     serviceName + "-group",
			},
			MySQL: MySQLConfig{
				Host:            "localhost",
				Port:            3306,
				User:            "root",
				Database:        "ordersystem",
				MaxOpenConns:    20,
				MaxIdleConns:    10,
				ConnMaxLifetime: time.Hour,
			},
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				CacheTTL: 30 * time.Second,
				DedupTTL: 24 * time.Hour,
			},
			Nacos: NacosConfig{Group: "DEFAULT_GROUP"},
			Zookeeper: ZookeeperConfig{
				SessionTimeout: 5 * time.Second,
				LockTimeout:    30 * time.Second,
			},
		},
		Inventory: InventoryConfig{
			ServiceName: "product-service",
			BaseURL:     "http://localhost:8082",
			Timeout:     2 * time.Second,
			Breaker: BreakerConfig{
				WindowSize:       5,
				FailureThreshold: 2,
				MinimumCalls:     5,
				Cooldown:         10 * time.Second,
				HalfOpenMaxCalls: 1,
				SlowCallDuration: 2 * time.Second,
			},
		},
		Product: ProductConfig{DetailDelay: 3 * time.Second},
	}
}

// LoadConfig 读取 YAML 配置并应用环境变量覆盖。
// path 为空或文件不存在时只使用默认值 + 环境变量。
func LoadConfig(serviceName, path string) (*Config, error) {
	cfg := DefaultConfig(serviceName)

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, errors.Wrapf(err, "parse config %s", path)
			}
		case os.IsNotExist(err):
			// 允许没有配置文件，例如容器中完全依赖环境变量
		default:
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查会导致服务无法工作的配置
func (c *Config) Validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return errors.Errorf("invalid port %d", c.App.Port)
	}
	if len(c.Infra.Kafka.Brokers) == 0 {
		return errors.New("at least one kafka broker is required")
	}
	switch c.App.StockUpdateMode {
	case "kafka", "http":
	default:
		return errors.Errorf("unknown stock_update_mode %q", c.App.StockUpdateMode)
	}
	if c.Inventory.Timeout <= 0 {
		return errors.New("inventory timeout must be positive")
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.App.LogLevel = getEnv("LOG_LEVEL", cfg.App.LogLevel)
	cfg.App.Port = getEnvAsInt("HTTP_PORT", cfg.App.Port)
	cfg.Infra.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", cfg.Infra.Jaeger.Endpoint)
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		cfg.Infra.Kafka.Brokers = splitList(brokers)
	}
	cfg.Infra.MySQL.Host = getEnv("MYSQL_HOST", cfg.Infra.MySQL.Host)
	cfg.Infra.MySQL.Port = getEnvAsInt("MYSQL_PORT", cfg.Infra.MySQL.Port)
	cfg.Infra.MySQL.User = getEnv("MYSQL_USER", cfg.Infra.MySQL.User)
	cfg.Infra.MySQL.Password = getEnv("MYSQL_PASSWORD", cfg.Infra.MySQL.Password)
	cfg.Infra.MySQL.Database = getEnv("MYSQL_DATABASE", cfg.Infra.MySQL.Database)
	cfg.Infra.Redis.Addr = getEnv("REDIS_ADDR", cfg.Infra.Redis.Addr)
	cfg.Infra.Nacos.Addrs = getEnv("NACOS_SERVER_ADDRS", cfg.Infra.Nacos.Addrs)
	cfg.Infra.Nacos.Namespace = getEnv("NACOS_NAMESPACE", cfg.Infra.Nacos.Namespace)
	cfg.Infra.Nacos.Group = getEnv("NACOS_GROUP", cfg.Infra.Nacos.Group)
	if servers := getEnv("ZK_SERVERS", ""); servers != "" {
		cfg.Infra.Zookeeper.Servers = splitList(servers)
	}
	cfg.Inventory.BaseURL = getEnv("INVENTORY_BASE_URL", cfg.Inventory.BaseURL)
}

// getEnv 是一个内部辅助函数，从环境变量中读取配置。
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
