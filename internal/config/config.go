// Package config loads and validates configuration at startup.
// Fail-fast: if a required value is missing or malformed, Load returns an
// error and the process exits.
//
// Sources, lowest precedence first: built-in defaults, the YAML file named by
// TRACKER_CONFIG, a .env file in the working directory, the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration for the tracker binaries.
type Config struct {
	Port        string `yaml:"port"`
	GRPCPort    string `yaml:"grpc_port"`
	DatabaseURL string `yaml:"database_url"`
	RedisURL    string `yaml:"redis_url"`
	DBMaxConns  int32  `yaml:"db_max_conns"`

	// JWTSecret enables bearer-token verification. When empty the service
	// trusts the x-user-id / x-user-role headers set by a gateway.
	JWTSecret string `yaml:"jwt_secret"`

	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`

	ReminderSchedule    string `yaml:"reminder_schedule"`
	ReminderWindowHours int    `yaml:"reminder_window_hours"`

	LogLevel string `yaml:"log_level"`
}

func defaults() *Config {
	return &Config{
		Port:                "8082",
		GRPCPort:            "9082",
		DBMaxConns:          10,
		RateLimitRPS:        10,
		RateLimitBurst:      20,
		ReminderSchedule:    "@every 1h",
		ReminderWindowHours: 24,
		LogLevel:            "info",
	}
}

// Load reads every source and returns a validated Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	if path := os.Getenv("TRACKER_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ReminderWindow is how far ahead the reminder sweep looks.
func (c *Config) ReminderWindow() time.Duration {
	return time.Duration(c.ReminderWindowHours) * time.Hour
}

// NewLogger builds the process logger at the configured level.
func (c *Config) NewLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	log := logrus.New()
	log.SetLevel(level)
	log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	return log, nil
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	str("TRACKER_PORT", &c.Port)
	str("TRACKER_GRPC_PORT", &c.GRPCPort)
	str("DATABASE_URL", &c.DatabaseURL)
	str("REDIS_URL", &c.RedisURL)
	str("JWT_SECRET", &c.JWTSecret)
	str("REMINDER_SCHEDULE", &c.ReminderSchedule)
	str("LOG_LEVEL", &c.LogLevel)

	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_RPS %q: %w", v, err)
		}
		c.RateLimitRPS = rps
	}
	for key, dst := range map[string]*int{
		"RATE_LIMIT_BURST":      &c.RateLimitBurst,
		"REMINDER_WINDOW_HOURS": &c.ReminderWindowHours,
	} {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", key, v, err)
			}
			*dst = n
		}
	}
	if v := os.Getenv("DB_MAX_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid DB_MAX_CONNS %q: %w", v, err)
		}
		c.DBMaxConns = int32(n)
	}
	return nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be positive")
	}
	if c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_BURST must be at least 1")
	}
	if c.ReminderWindowHours < 1 {
		return fmt.Errorf("REMINDER_WINDOW_HOURS must be at least 1")
	}
	return nil
}
