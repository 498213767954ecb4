package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	cfg, err := LoadConfig("order-service", filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "admin@naver.com", cfg.App.AdminRecipient)
	assert.Equal(t, "stock-update-topic", cfg.Infra.Kafka.StockUpdateTopic)
	assert.Equal(t, 5, cfg.Inventory.Breaker.WindowSize)
	assert.Equal(t, 2, cfg.Inventory.Breaker.FailureThreshold)
	assert.Equal(t, "kafka", cfg.App.StockUpdateMode)
}

func TestLoadConfig_YAMLAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "order-service.yaml")
	yamlDoc := `
app:
  port: 9090
  line_policy: "quantity <= 10"
infra:
  kafka:
    brokers: ["kafka-1:9092"]
inventory:
  timeout: 500ms
  breaker:
    cooldown: 1m
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o600))
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("INVENTORY_BASE_URL", "http://product:8082")

	cfg, err := LoadConfig("order-service", path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, "quantity <= 10", cfg.App.LinePolicy)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Infra.Kafka.Brokers)
	assert.Equal(t, 500*time.Millisecond, cfg.Inventory.Timeout)
	assert.Equal(t, time.Minute, cfg.Inventory.Breaker.Cooldown)
	assert.Equal(t, 2, cfg.Inventory.Breaker.FailureThreshold, "unset keys keep defaults")
	assert.Equal(t, "http://product:8082", cfg.Inventory.BaseURL)
}

func TestLoadConfig_RejectsUnknownStockUpdateMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app:\n  stock_update_mode: carrier-pigeon\n"), 0o600))

	_, err := LoadConfig("order-service", path)
	assert.Error(t, err)
}
