package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("KAFKA_BROKERS", "")
	cfg := Load()
	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, DriverPostgres, cfg.StorageDriver)
	assert.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.EventsEnabled())
	assert.Equal(t, 5*time.Second, cfg.GatewayTimeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", DriverMemory)
	t.Setenv("KAFKA_BROKERS", "off")
	t.Setenv("PROJECTOR_WORKERS", "0")
	cfg := Load()
	assert.Equal(t, DriverMemory, cfg.StorageDriver)
	assert.False(t, cfg.EventsEnabled())
	assert.Equal(t, 4, cfg.ProjectorWorkers)
}

func TestLoadGateway(t *testing.T) {
	t.Setenv("SETTLE_DELAY", "150ms")
	t.Setenv("SETTLE_SUCCESS_RATE", "1.5")
	cfg := LoadGateway()
	assert.Equal(t, 150*time.Millisecond, cfg.SettleDelay)
	assert.InDelta(t, 0.95, cfg.SuccessRate, 1e-9)
}

func TestSplitCSV(t *testing.T) {
	assert.Equal(t, []string{"a:1", "b:2"}, splitCSV(" a:1, ,b:2 "))
}
