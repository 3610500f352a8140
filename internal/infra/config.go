package infra

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL"`
	PGHost      string `env:"PGHOST" envDefault:"localhost"`
	PGPort      int    `env:"PGPORT" envDefault:"5432"`
	PGUser      string `env:"PGUSER" envDefault:"starveil"`
	PGPassword  string `env:"PGPASSWORD" envDefault:"starveil"`
	PGDatabase  string `env:"PGDATABASE" envDefault:"starveil"`

	// Bridge paths
	BridgeDir   string `env:"BRIDGE_DIR" envDefault:"./bridge_data"`
	ModCacheDir string `env:"MOD_CACHE_DIR"`
	GameLogPath string `env:"GAME_LOG_PATH" envDefault:"./game.log"`

	// Relay polling
	FilePollInterval time.Duration `env:"FILE_POLL_INTERVAL" envDefault:"500ms"`
	LogPollInterval  time.Duration `env:"LOG_POLL_INTERVAL" envDefault:"500ms"`

	// Room server
	RoomServerPort  int           `env:"ROOM_SERVER_PORT" envDefault:"1999"`
	RoomHost        string        `env:"ROOM_HOST" envDefault:"localhost:1999"`
	MarketSweepTick time.Duration `env:"MARKET_SWEEP_TICK" envDefault:"1m"`

	// Migrations
	RunMigrations bool `env:"RUN_MIGRATIONS" envDefault:"false"`

	// Kafka event mirror
	KafkaBrokers string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled bool   `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaTopic   string `env:"KAFKA_TOPIC" envDefault:"economy.transactions"`
}

// LoadConfig parses environment variables into a Config struct.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration that must be sane before startup.
func (c *Config) Validate() error {
	if c.FilePollInterval <= 0 || c.LogPollInterval <= 0 {
		return fmt.Errorf("poll intervals must be positive")
	}
	if c.RoomServerPort <= 0 || c.RoomServerPort > 65535 {
		return fmt.Errorf("ROOM_SERVER_PORT %d out of range", c.RoomServerPort)
	}
	return nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}
