package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/corray333/backend-labs/marketplace/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "MARKETPLACE"

// MustInit loads .env (if any) and config.yaml, then installs the default
// logger. Every key has a default, so the yaml file is optional too.
func MustInit() {
	if err := godotenv.Load("./.env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic("error while loading .env file: " + err.Error())
	}

	if err := Load(viper.GetViper(), "/etc/marketplace", "."); err != nil {
		panic("error while reading config file: " + err.Error())
	}

	SetupLogger()
}

// Load fills v from defaults, the first config.yaml found in paths and
// MARKETPLACE_* environment variables, in increasing precedence.
func Load(v *viper.Viper, paths ...string) error {
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http.port", "8080")
	v.SetDefault("server.http.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.http.cors.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("server.http.cors.allowed_headers", []string{"Authorization", "Content-Type", "Idempotency-Key"})
	v.SetDefault("server.http.cors.max_age", 300)
	v.SetDefault("server.grpc.port", "9090")
	v.SetDefault("server.grpc.keepalive.max_connection_idle", 15)
	v.SetDefault("server.grpc.keepalive.max_connection_age", 30)
	v.SetDefault("server.grpc.keepalive.max_connection_age_grace", 5)
	v.SetDefault("server.grpc.keepalive.time", 5)
	v.SetDefault("server.grpc.keepalive.timeout", 1)
	v.SetDefault("server.grpc.keepalive.min_time", 5)
	v.SetDefault("server.grpc.keepalive.permit_without_stream", true)
	v.SetDefault("server.grpc.health_interval_seconds", 10)

	v.SetDefault("postgres.host", "postgres")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.db", "marketplace")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_conns", 20)
	v.SetDefault("postgres.migrate", true)
	v.SetDefault("postgres.connect_retries", 10)

	v.SetDefault("rabbitmq.enabled", false)
	v.SetDefault("rabbitmq.host", "rabbitmq")
	v.SetDefault("rabbitmq.port", 5672)
	v.SetDefault("rabbitmq.exchange", "marketplace.events")
	v.SetDefault("rabbitmq.queue", "marketplace.notifications")
	v.SetDefault("rabbitmq.consumer_tag", "marketplace-notifications")
	v.SetDefault("rabbitmq.concurrency", 50)
	v.SetDefault("rabbitmq.connect_retries", 10)

	v.SetDefault("outbox.poll_interval_ms", 1000)
	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.retry_interval_seconds", 30)
	v.SetDefault("outbox.max_retries", 10)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "redis:6379")
	v.SetDefault("redis.connect_retries", 10)
	v.SetDefault("redis.idempotency_ttl_hours", 24)
	v.SetDefault("redis.idempotency_wait_seconds", 5)
	v.SetDefault("redis.push_channel", "marketplace:push")

	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.audience", "")

	v.SetDefault("settlement.currency", "USD")
	v.SetDefault("settlement.tax_rate", "0")
	v.SetDefault("settlement.commission_rate", "0.1")
	v.SetDefault("settlement.report_timezone", "UTC")

	v.SetDefault("notifications.default_limit", 20)
	v.SetDefault("notifications.max_limit", 100)

	v.SetDefault("attachments.verify", false)
	v.SetDefault("attachments.timeout_seconds", 5)
	v.SetDefault("attachments.retries", 2)

	v.SetDefault("otel.enabled", false)
	v.SetDefault("otel.service_name", "marketplace")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
}

// SetupLogger installs the JSON logger configured by log.*.
func SetupLogger() {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log.level"))); err != nil {
		level = slog.LevelInfo
	}

	handler := logger.NewHandler(&logger.Options{
		Level:      level,
		File:       viper.GetString("log.file"),
		MaxSizeMB:  viper.GetInt("log.max_size_mb"),
		MaxBackups: viper.GetInt("log.max_backups"),
		MaxAgeDays: viper.GetInt("log.max_age_days"),
	})
	slog.SetDefault(slog.New(handler))
}
