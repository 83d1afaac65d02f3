// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ServerConfig holds the HTTP surface settings
type ServerConfig struct {
	Port           int
	Host           string
	MetricsEnabled bool
}

// BackendConfig holds the hosted data API settings
type BackendConfig struct {
	BaseURL        string
	APIKey         string
	AccessToken    string
	RequestTimeout time.Duration
}

// RedisConfig holds the local feed cache settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	FeedTTL  time.Duration
}

// RealtimeConfig holds the realtime channel settings
type RealtimeConfig struct {
	Endpoint string
}

// Config holds the complete application configuration
type Config struct {
	Server   *ServerConfig
	Backend  *BackendConfig
	Redis    *RedisConfig
	Realtime *RealtimeConfig
	Debug    bool
}

// DefaultServerConfig provides default server settings
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:           8080,
		Host:           "0.0.0.0",
		MetricsEnabled: true,
	}
}

// DefaultRedisConfig provides default feed cache settings
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:    "localhost:6379",
		FeedTTL: 24 * time.Hour,
	}
}

// LoadConfig loads configuration from environment variables and applies defaults
func LoadConfig() (*Config, error) {
	// Try to load .env from the usual locations; a missing file is fine.
	envLocations := []string{
		".env",          // Current directory
		"../../.env",    // Project root when running from cmd/engine
		"../../../.env", // Even higher directory
	}
	envLoaded := false
	for _, location := range envLocations {
		if err := godotenv.Load(location); err == nil {
			envLoaded = true
			break
		}
	}
	if !envLoaded {
		_ = godotenv.Load()
	}

	serverConfig := DefaultServerConfig()
	if portStr := os.Getenv("PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			serverConfig.Port = port
		}
	}
	if host := os.Getenv("HOST"); host != "" {
		serverConfig.Host = host
	}
	if metricsEnabled := os.Getenv("METRICS_ENABLED"); metricsEnabled != "" {
		serverConfig.MetricsEnabled = metricsEnabled == "true"
	}

	backendConfig := &BackendConfig{
		BaseURL:        os.Getenv("BACKEND_URL"),
		APIKey:         os.Getenv("BACKEND_API_KEY"),
		AccessToken:    os.Getenv("BACKEND_ACCESS_TOKEN"),
		RequestTimeout: 15 * time.Second,
	}
	if backendConfig.BaseURL == "" {
		return nil, fmt.Errorf("BACKEND_URL environment variable is required")
	}
	if timeoutStr := os.Getenv("BACKEND_TIMEOUT_SECONDS"); timeoutStr != "" {
		if seconds, err := strconv.Atoi(timeoutStr); err == nil && seconds > 0 {
			backendConfig.RequestTimeout = time.Duration(seconds) * time.Second
		}
	}

	redisConfig := DefaultRedisConfig()
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		redisConfig.Addr = addr
	}
	redisConfig.Password = os.Getenv("REDIS_PASSWORD")
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if db, err := strconv.Atoi(dbStr); err == nil {
			redisConfig.DB = db
		}
	}
	if ttlStr := os.Getenv("FEED_CACHE_TTL_HOURS"); ttlStr != "" {
		if hours, err := strconv.Atoi(ttlStr); err == nil && hours > 0 {
			redisConfig.FeedTTL = time.Duration(hours) * time.Hour
		}
	}

	realtimeConfig := &RealtimeConfig{
		Endpoint: os.Getenv("REALTIME_URL"),
	}

	config := &Config{
		Server:   serverConfig,
		Backend:  backendConfig,
		Redis:    redisConfig,
		Realtime: realtimeConfig,
		Debug:    os.Getenv("DEBUG") == "true",
	}
	return config, nil
}
