// Package config loads process configuration from the environment,
// following the same env-var-with-defaults pattern the wider example pack
// uses: godotenv loads an optional .env for local runs, then each field is
// read with a typed default.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is fenrir-lob's full process configuration.
type Config struct {
	Server ServerConfig
	Engine EngineConfig
	Fees   FeesConfig
	Log    LogConfig
}

// ServerConfig holds the TCP listener and metrics endpoint configuration.
type ServerConfig struct {
	Address     string
	Port        int
	MetricsPort int
	NWorkers    int
	ConnTimeout time.Duration
}

// EngineConfig holds the matching engine's starting admin parameters.
type EngineConfig struct {
	MaxOrdersPerPrice int
}

// FeesConfig holds the starting fee schedule (spec §3/§6); rates are basis
// points out of 10000.
type FeesConfig struct {
	DevRate      uint16
	BurnRate     uint16
	DevRecipient string
}

// LogConfig controls zerolog's level and output format.
type LogConfig struct {
	Level  string
	Pretty bool
}

// Load reads configuration from the environment, loading an optional .env
// file first. Missing variables fall back to reasonable defaults; it never
// fails just because .env is absent.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Address:     getString("FENRIR_ADDRESS", "0.0.0.0"),
			Port:        getInt("FENRIR_PORT", 9001),
			MetricsPort: getInt("FENRIR_METRICS_PORT", 9090),
			NWorkers:    getInt("FENRIR_WORKERS", 10),
			ConnTimeout: getDuration("FENRIR_CONN_TIMEOUT", 5*time.Second),
		},
		Engine: EngineConfig{
			MaxOrdersPerPrice: getInt("FENRIR_MAX_ORDERS_PER_PRICE", 100),
		},
		Fees: FeesConfig{
			DevRate:      uint16(getInt("FENRIR_DEV_RATE_BPS", 0)),
			BurnRate:     uint16(getInt("FENRIR_BURN_RATE_BPS", 0)),
			DevRecipient: getString("FENRIR_DEV_RECIPIENT", ""),
		},
		Log: LogConfig{
			Level:  getString("FENRIR_LOG_LEVEL", "info"),
			Pretty: getBool("FENRIR_LOG_PRETTY", false),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configuration that would break invariants the engine
// depends on, rather than letting it fail confusingly later.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Engine.MaxOrdersPerPrice <= 0 || c.Engine.MaxOrdersPerPrice%4 != 0 {
		return fmt.Errorf("max orders per price must be a positive multiple of 4, got %d", c.Engine.MaxOrdersPerPrice)
	}
	if c.Fees.DevRate > 0 && c.Fees.DevRecipient == "" {
		return fmt.Errorf("dev rate is non-zero but no dev recipient is configured")
	}
	return nil
}

func getString(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}
