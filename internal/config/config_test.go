package config

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestSetDefaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	SetDefaults()

	assert.Equal(t, "postgres", viper.GetString("storage.driver"))
	assert.Equal(t, "floor.events", viper.GetString("rabbitmq.exchange"))
	assert.Equal(t, 1, viper.GetInt("rabbitmq.consumer.concurrency"))
	assert.Equal(t, 20*time.Second, viper.GetDuration("sse.kitchen.heartbeat_interval"))
	assert.Equal(t, 20*time.Second, viper.GetDuration("sse.manager.heartbeat_interval"))
	assert.Zero(t, viper.GetDuration("sse.idle_timeout"))
	assert.Equal(t, "USD", viper.GetString("billing.default_currency"))
	assert.False(t, viper.GetBool("otel.enabled"))
}

func TestSetDefaultsKeepsExplicitValues(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("sse.waitstaff.heartbeat_interval", "5s")
	SetDefaults()

	assert.Equal(t, 5*time.Second, viper.GetDuration("sse.waitstaff.heartbeat_interval"))
	assert.Equal(t, 20*time.Second, viper.GetDuration("sse.kitchen.heartbeat_interval"))
}

func TestSetupLoggerLevel(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() {
		slog.SetDefault(prev)
		viper.Reset()
	})

	viper.Set("log.level", "warn")
	SetupLogger()
	assert.False(t, slog.Default().Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelWarn))

	viper.Set("log.level", "loud")
	SetupLogger()
	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelInfo))
}
