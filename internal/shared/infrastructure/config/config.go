package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fakenews/notifier/internal/shared/infrastructure/database"
)

// Config holds all configuration for the notifier
type Config struct {
	API      APIConfig
	Socket   SocketConfig
	Feed     FeedConfig
	Session  SessionConfig
	Redis    database.RedisConfig
	Server   ServerConfig
	LogLevel slog.Level
}

// APIConfig holds the REST backend configuration
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// SocketConfig holds the push channel configuration
type SocketConfig struct {
	URL              string
	HandshakeTimeout time.Duration
}

// FeedConfig holds notification feed and popup behaviour
type FeedConfig struct {
	PageSize     int
	PopupTimeout time.Duration
}

// SessionConfig selects where the bearer token and profile are cached
type SessionConfig struct {
	Backend    string
	Profile    string
	TTL        time.Duration
	KeyringDir string
}

// ServerConfig holds the local control API configuration. An empty port
// disables it.
type ServerConfig struct {
	Port           string
	AllowedOrigins string
}

// Load reads configuration from environment variables
func Load() Config {
	return Config{
		API: APIConfig{
			BaseURL: strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:5000"), "/"),
			Timeout: parseDuration(getEnv("HTTP_TIMEOUT", "15s"), 15*time.Second),
		},
		Socket: SocketConfig{
			URL:              getEnv("SOCKET_URL", "ws://localhost:5000/socket"),
			HandshakeTimeout: parseDuration(getEnv("SOCKET_HANDSHAKE_TIMEOUT", "10s"), 10*time.Second),
		},
		Feed: FeedConfig{
			PageSize:     parseInt(getEnv("PAGE_SIZE", "10"), 10, 1),
			PopupTimeout: parseDuration(getEnv("POPUP_TIMEOUT", "5s"), 5*time.Second),
		},
		Session: SessionConfig{
			Backend:    getEnv("SESSION_BACKEND", "keyring"),
			Profile:    getEnv("SESSION_PROFILE", "default"),
			TTL:        parseDuration(getEnv("SESSION_TTL", "0"), 0),
			KeyringDir: getEnv("KEYRING_DIR", "~/.config/fakenews/credentials"),
		},
		Redis: database.RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       parseInt(getEnv("REDIS_DB", "0"), 0, 0),
		},
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", ""),
			AllowedOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		LogLevel: parseLevel(getEnv("LOG_LEVEL", "info")),
	}
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration string or returns a default value
func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	return defaultValue
}

// parseInt parses an integer no smaller than floor or returns a default value
func parseInt(value string, defaultValue, floor int) int {
	if n, err := strconv.Atoi(value); err == nil && n >= floor {
		return n
	}
	return defaultValue
}

func parseLevel(value string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return slog.LevelInfo
	}
	return level
}
