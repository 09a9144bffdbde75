package config

import (
	"fmt"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Deliberately not required here: verification fails closed per
	// request (500) rather than accepting unsigned traffic, and the
	// process still serves health probes while the secret is being
	// rotated in.
	WebhookSharedSecret string `env:"WEBHOOK_SHARED_SECRET"`
	HealthCheckToken    string `env:"HEALTH_CHECK_TOKEN"`

	RateLimitMax      int `env:"RATE_LIMIT_MAX" envDefault:"100"`
	RateLimitWindowMS int `env:"RATE_LIMIT_WINDOW_MS" envDefault:"60000"`
	HandlerTimeoutMS  int `env:"HANDLER_TIMEOUT_MS" envDefault:"10000"`

	// Base URL of the main application's receipt endpoint; receipts are
	// skipped when unset.
	ReceiptServiceURL string `env:"RECEIPT_SERVICE_URL"`

	MigrationsPath string `env:"MIGRATIONS_PATH" envDefault:"migrations"`

	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv   string `env:"APP_ENV" envDefault:"production"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}
