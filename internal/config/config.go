package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Ryo-cool/go-concurrency-learner/pkg/playground"
)

// Config holds all configuration for the learner server
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Playground PlaygroundConfig
	Lessons    LessonsConfig
	Sessions   SessionsConfig
	Cleanup    CleanupConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string
	Port           int
	CORSOrigins    []string
	RequestTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration. An empty DSN keeps progress in memory.
type DatabaseConfig struct {
	DSN           string
	MaxOpenConns  int
	MaxIdleConns  int
	MigrationsDir string
}

// RedisConfig holds Redis configuration. An empty address disables response caching.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	CacheTTL time.Duration
}

// PlaygroundConfig holds the remote compiler configuration
type PlaygroundConfig struct {
	URL     string
	Timeout time.Duration
}

// LessonsConfig holds lesson content configuration
type LessonsConfig struct {
	Dir string
}

// SessionsConfig holds execution session configuration
type SessionsConfig struct {
	IdleTTL time.Duration
}

// CleanupConfig holds cleanup worker configuration
type CleanupConfig struct {
	Interval time.Duration
}

// Load reads a .env file when present and then loads configuration from environment variables
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	} else if err == nil {
		slog.Debug("loaded environment from .env")
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			CORSOrigins:    getEnvAsSlice("CORS_ORIGINS", []string{"*"}),
			RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			DSN:           getEnv("DATABASE_DSN", ""),
			MaxOpenConns:  getEnvAsInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:  getEnvAsInt("DATABASE_MAX_IDLE_CONNS", 2),
			MigrationsDir: getEnv("MIGRATIONS_DIR", ""),
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDRESS", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			CacheTTL: getEnvAsDuration("CACHE_TTL", time.Hour),
		},
		Playground: PlaygroundConfig{
			URL:     getEnv("PLAYGROUND_URL", playground.DefaultUpstreamURL),
			Timeout: getEnvAsDuration("PLAYGROUND_TIMEOUT", 30*time.Second),
		},
		Lessons: LessonsConfig{
			Dir: getEnv("LESSONS_DIR", "./lessons"),
		},
		Sessions: SessionsConfig{
			IdleTTL: getEnvAsDuration("SESSION_IDLE_TTL", 30*time.Minute),
		},
		Cleanup: CleanupConfig{
			Interval: getEnvAsDuration("CLEANUP_INTERVAL", 5*time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Playground.URL == "" {
		return fmt.Errorf("playground URL is required")
	}

	if c.Playground.Timeout <= 0 {
		return fmt.Errorf("invalid playground timeout: %s", c.Playground.Timeout)
	}

	if c.Lessons.Dir == "" {
		return fmt.Errorf("lessons directory is required")
	}

	if c.Sessions.IdleTTL <= 0 {
		return fmt.Errorf("invalid session idle TTL: %s", c.Sessions.IdleTTL)
	}

	return nil
}

// Addr returns the listen address
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return defaultValue
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
