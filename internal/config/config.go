// Package config содержит логику чтения конфигурации сервиса tapranked.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config содержит параметры конфигурации сервиса tapranked.
type Config struct {
	RunAddress           string        `env:"RUN_ADDRESS"`
	DatabaseURI          string        `env:"DATABASE_URI"`
	AuthSecret           string        `env:"AUTH_SECRET"`
	RedisAddr            string        `env:"REDIS_ADDR"`
	LogLevel             string        `env:"LOG_LEVEL"`
	LogFile              string        `env:"LOG_FILE"`
	SuperAdminEmail      string        `env:"SUPER_ADMIN_EMAIL"`
	SecureCookies        bool          `env:"SECURE_COOKIES"`
	SessionTTL           time.Duration `env:"SESSION_TTL" envDefault:"168h"`
	SessionSweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"10m"`
}

// DemoMode сообщает, что база данных не настроена и сервис работает на in-memory хранилище.
func (c *Config) DemoMode() bool {
	return c.DatabaseURI == ""
}

// Parse считывает конфигурацию из файла .env, флагов командной строки и переменных окружения.
// Непустые переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envAuthSecret := cfg.AuthSecret
	envRedisAddr := cfg.RedisAddr
	envLogLevel := cfg.LogLevel

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI, empty for demo mode")
	flag.StringVar(&cfg.AuthSecret, "s", "", "secret for signing session cookies")
	flag.StringVar(&cfg.RedisAddr, "r", "", "redis address for shared rate limiting")
	flag.StringVar(&cfg.LogLevel, "l", "info", "log level")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envAuthSecret != "" {
		cfg.AuthSecret = envAuthSecret
	}
	if envRedisAddr != "" {
		cfg.RedisAddr = envRedisAddr
	}
	if envLogLevel != "" {
		cfg.LogLevel = envLogLevel
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("session ttl must be positive, got %s", cfg.SessionTTL)
	}

	return cfg, nil
}
