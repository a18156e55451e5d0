package config

import (
	"fmt"

	pkgconfig "github.com/skillforge/cart-service/pkg/config"
	"github.com/skillforge/cart-service/pkg/database"
)

// Config holds all configuration for the cart service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort        int `env:"CART_HTTP_PORT" envDefault:"8003"`
	ShutdownTimeout int `env:"SHUTDOWN_TIMEOUT_SECONDS" envDefault:"15"`

	// Postgres
	Postgres database.PostgresConfig

	// Redis (catalog decoration cache)
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Decoration cache TTL in seconds
	DecorationCacheTTL int `env:"DECORATION_CACHE_TTL_SECONDS" envDefault:"300"`

	// Catalog service (pricing and item decoration)
	CatalogBaseURL string `env:"CATALOG_SERVICE_URL" envDefault:"http://localhost:8001"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Cart limits
	MaxQuantityPerItem int `env:"CART_MAX_QUANTITY_PER_ITEM" envDefault:"100"`
	MaxItemsPerCart    int `env:"CART_MAX_ITEMS" envDefault:"50"`

	// Pprof debug endpoints; empty allowlist disables access
	PprofCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.1/32" envSeparator:","`

	// Tracing
	TracingEnabled    bool    `env:"TRACING_ENABLED" envDefault:"false"`
	TracingEndpoint   string  `env:"TRACING_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	TracingSampleRate float64 `env:"TRACING_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load cart config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.MaxQuantityPerItem < 1 {
		return fmt.Errorf("invalid max quantity per item: %d", c.MaxQuantityPerItem)
	}
	if c.MaxItemsPerCart < 1 {
		return fmt.Errorf("invalid max items per cart: %d", c.MaxItemsPerCart)
	}
	return nil
}
