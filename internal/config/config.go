// Package config builds the explicit process configuration. It is
// decoded once in main and passed by reference; nothing below the
// entrypoints reads the environment.
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	DatabaseURL   string `envconfig:"DATABASE_URL" required:"true"`
	MigrationsDir string `envconfig:"MIGRATIONS_DIR" default:"migrations"`

	RedisAddr       string        `envconfig:"REDIS_ADDR"`
	CatalogCacheTTL time.Duration `envconfig:"CATALOG_CACHE_TTL" default:"30s"`

	KafkaBrokers string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string `envconfig:"KAFKA_TOPIC" default:"storefront.events"`

	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`

	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	TokenTTL  time.Duration `envconfig:"TOKEN_TTL" default:"24h"`

	GatewayBaseURL       string        `envconfig:"GATEWAY_BASE_URL" required:"true"`
	GatewaySecretKey     string        `envconfig:"GATEWAY_SECRET_KEY" required:"true"`
	GatewayWebhookSecret string        `envconfig:"GATEWAY_WEBHOOK_SECRET" required:"true"`
	GatewayTimeout       time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"2500ms"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Development reports whether error detail may be echoed to clients.
func (c *Config) Development() bool {
	return c.Environment == "development"
}
