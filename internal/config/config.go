package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	ServerPort int    `env:"SERVER_PORT" envDefault:"8080"`
	LogLevel   string `env:"LOG_LEVEL"   envDefault:"info"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"sqlite"`
	StoreDSN    string `env:"STORE_DSN"    envDefault:"storefront.db"`

	HandleSecret string        `env:"HANDLE_SECRET,required,notEmpty"`
	HandleTTL    time.Duration `env:"HANDLE_TTL" envDefault:"5m"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC"   envDefault:"storefront_events"`

	ESURL      string `env:"ES_URL"`
	ESUser     string `env:"ES_USER"`
	ESPassword string `env:"ES_PASSWORD"`
	ESIndex    string `env:"ES_INDEX" envDefault:"rewards"`
}

// LoadConfig reads .env when present, then the process environment.
func LoadConfig(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		slog.Default().InfoContext(ctx, "dotenv_not_found", "error", err)
	}
	return Parse()
}

func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverSQLite, DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.StoreDriver != DriverMemory && c.StoreDSN == "" {
		return errors.New("STORE_DSN is empty")
	}
	if c.HandleTTL <= 0 {
		return fmt.Errorf("HANDLE_TTL must be positive, got %s", c.HandleTTL)
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("SERVER_PORT out of range: %d", c.ServerPort)
	}
	return nil
}

func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func (c *Config) SearchEnabled() bool {
	return c.ESURL != ""
}
