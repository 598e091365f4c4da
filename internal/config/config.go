package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/corray333/backend-labs/floor/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// MustInit loads ./.env when present, reads config.yaml and installs the logger.
func MustInit() {
	if err := godotenv.Load("./.env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic("error while loading .env file: " + err.Error())
	}

	SetDefaults()
	viper.SetEnvPrefix("FLOOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/floor-svc")
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		panic("error while reading config file: " + err.Error())
	}
	SetupLogger()
}

// SetDefaults registers the value of every key the service reads.
func SetDefaults() {
	viper.SetDefault("log.level", "info")

	viper.SetDefault("storage.driver", "postgres")

	viper.SetDefault("server.http.port", "8080")
	viper.SetDefault("server.http.shutdown_timeout", 10*time.Second)
	viper.SetDefault("server.http.cors.allowed_origins", []string{"*"})
	viper.SetDefault("server.http.cors.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"})
	viper.SetDefault("server.http.cors.allowed_headers", []string{"Content-Type", "X-Request-Id", "traceparent"})
	viper.SetDefault("server.http.cors.exposed_headers", []string{"X-Request-Id"})
	viper.SetDefault("server.http.cors.allow_credentials", false)
	viper.SetDefault("server.http.cors.max_age", 300)

	viper.SetDefault("postgres.host", "localhost")
	viper.SetDefault("postgres.port", 5432)
	viper.SetDefault("postgres.user", "floor")
	viper.SetDefault("postgres.db", "floor")
	viper.SetDefault("postgres.sslmode", "disable")
	viper.SetDefault("postgres.max_conns", 10)
	viper.SetDefault("postgres.migrations_path", "./migrations")

	viper.SetDefault("rabbitmq.host", "localhost")
	viper.SetDefault("rabbitmq.port", 5672)
	viper.SetDefault("rabbitmq.user", "guest")
	viper.SetDefault("rabbitmq.password", "guest")
	viper.SetDefault("rabbitmq.vhost", "")
	viper.SetDefault("rabbitmq.exchange", "floor.events")
	viper.SetDefault("rabbitmq.queue_prefix", "floor")
	viper.SetDefault("rabbitmq.confirm_buffer", 256)
	viper.SetDefault("rabbitmq.confirm_timeout", 5*time.Second)
	viper.SetDefault("rabbitmq.consumer.tag", "floor-svc")
	viper.SetDefault("rabbitmq.consumer.prefetch", 16)
	viper.SetDefault("rabbitmq.consumer.concurrency", 1)
	viper.SetDefault("rabbitmq.outbox.enabled", true)
	viper.SetDefault("rabbitmq.outbox.max_retries", 5)
	viper.SetDefault("rabbitmq.outbox.retry_interval", 2*time.Second)
	viper.SetDefault("rabbitmq.outbox.poll_interval", time.Second)
	viper.SetDefault("rabbitmq.outbox.batch_size", 50)
	viper.SetDefault("rabbitmq.outbox.claim_lease", 5*time.Minute)

	viper.SetDefault("billing.default_currency", "USD")

	viper.SetDefault("sse.buffer_size", 32)
	viper.SetDefault("sse.write_timeout", 10*time.Second)
	viper.SetDefault("sse.idle_timeout", time.Duration(0))
	for _, role := range []string{"kitchen", "waitstaff", "manager"} {
		viper.SetDefault("sse."+role+".heartbeat_interval", 20*time.Second)
	}

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.service_name", "floor-svc")
	viper.SetDefault("otel.jaeger.endpoint", "http://jaeger:14268/api/traces")
}

// SetupLogger installs the JSON logger at log.level as the slog default.
func SetupLogger() {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log.level"))); err != nil {
		level = slog.LevelInfo
	}

	handler := logger.NewHandler(&slog.HandlerOptions{Level: level})
	log := slog.New(handler)
	slog.SetDefault(log)
}
