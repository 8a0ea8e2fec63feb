package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Server  ServerConfig
	Notify  NotifyConfig
	DB      DatabaseConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Host      string
	Port      int
	RateLimit int
	RateBurst int
}

type NotifyConfig struct {
	Workers    int
	BufferSize int
}

type DatabaseConfig struct {
	Path string
}

type LoggingConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:      getEnv("SERVER_HOST", "localhost"),
			Port:      getEnvInt("SERVER_PORT", 8080),
			RateLimit: getEnvInt("RATE_LIMIT_RPS", 20),
			RateBurst: getEnvInt("RATE_LIMIT_BURST", 40),
		},
		Notify: NotifyConfig{
			Workers:    getEnvInt("NOTIFY_WORKERS", 2),
			BufferSize: getEnvInt("NOTIFY_BUFFER_SIZE", 64),
		},
		DB: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/alert-workflow.db"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.RateLimit < 1 {
		return fmt.Errorf("rate limit must be at least 1 req/s")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Notify.Workers < 1 {
		return fmt.Errorf("notify workers must be at least 1")
	}
	if c.Notify.BufferSize < 1 {
		return fmt.Errorf("notify buffer size must be at least 1")
	}
	if c.DB.Path == "" {
		return fmt.Errorf("database path must not be empty")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}
