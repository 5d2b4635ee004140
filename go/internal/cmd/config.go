package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/bingo/go/internal/outbox"
)

const (
	driverMemory   = "memory"
	driverSQLite   = "sqlite"
	driverPostgres = "postgres"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	Store  StoreConfig  `yaml:"store"`
	NATS   NATSConfig   `yaml:"nats"`
	Game   GameConfig   `yaml:"game"`
	Outbox OutboxConfig `yaml:"outbox"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type StoreConfig struct {
	Driver     string `yaml:"driver"` // memory, sqlite or postgres
	SQLitePath string `yaml:"sqlite_path"`
}

// NATSConfig enables the JetStream path between the outbox relay and the
// gateway. Without it the gateway reads the store's change feed directly.
type NATSConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Stream        string `yaml:"stream"`
	SubjectPrefix string `yaml:"subject_prefix"`
	ConsumerName  string `yaml:"consumer_name"`
}

type GameConfig struct {
	Seed     int64 `yaml:"seed"` // 0 seeds from crypto/rand
	AutoDraw bool  `yaml:"auto_draw"`
}

type OutboxConfig struct {
	FallbackInterval time.Duration `yaml:"fallback_interval"`
	BatchSize        int           `yaml:"batch_size"`
	MaxRetries       int           `yaml:"max_retries"`
	HealthPort       int           `yaml:"health_port"`
	UnhealthyAfter   time.Duration `yaml:"unhealthy_after"`
}

func defaultConfig() *Config {
	js := outbox.DefaultJetStreamConfig()
	relay := outbox.DefaultRelayConfig()
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			AllowedOrigins:  []string{"*"},
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Driver:     driverMemory,
			SQLitePath: "bingo.db",
		},
		NATS: NATSConfig{
			URL:           js.URL,
			Stream:        js.StreamName,
			SubjectPrefix: js.SubjectPrefix,
			ConsumerName:  "bingo-gateway",
		},
		Game: GameConfig{
			AutoDraw: true,
		},
		Outbox: OutboxConfig{
			FallbackInterval: relay.FallbackInterval,
			BatchSize:        relay.BatchSize,
			MaxRetries:       relay.MaxRetries,
			HealthPort:       8081,
			UnhealthyAfter:   5 * time.Minute,
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// loadConfig reads path over the defaults. A missing file yields the defaults.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Debug().Str("path", path).Msg("config file not found, using defaults")
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return config, nil
}

// applyEnvOverrides lets the environment win over the config file.
func applyEnvOverrides(cfg *Config) {
	cfg.Server.Port = getEnvAsInt("PORT", cfg.Server.Port)
	cfg.Store.Driver = getEnv("STORE_DRIVER", cfg.Store.Driver)
	cfg.Store.SQLitePath = getEnv("SQLITE_PATH", cfg.Store.SQLitePath)
	cfg.Outbox.HealthPort = getEnvAsInt("HEALTH_PORT", cfg.Outbox.HealthPort)
	if url := os.Getenv("NATS_URL"); url != "" {
		cfg.NATS.URL = url
		cfg.NATS.Enabled = true
	}
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case driverMemory, driverSQLite, driverPostgres:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.NATS.Enabled && c.Store.Driver != driverPostgres {
		return fmt.Errorf("nats requires the postgres store, got %q", c.Store.Driver)
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	return nil
}

func (c *Config) jetStream() outbox.JetStreamConfig {
	js := outbox.DefaultJetStreamConfig()
	js.URL = c.NATS.URL
	js.StreamName = c.NATS.Stream
	js.SubjectPrefix = c.NATS.SubjectPrefix
	return js
}
