package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Server   ServerConfig   `json:"server" toml:"server"`
	Database DatabaseConfig `json:"database" toml:"database"`
	Storage  StorageConfig  `json:"storage" toml:"storage"`
	Auth     AuthConfig     `json:"auth" toml:"auth"`
	Events   EventsConfig   `json:"events" toml:"events"`
	Log      LogConfig      `json:"log" toml:"log"`
}

type ServerConfig struct {
	Host           string   `json:"host" toml:"host"`
	Port           int      `json:"port" toml:"port"`
	AllowedOrigins []string `json:"allowed_origins" toml:"allowed_origins"`
}

type DatabaseConfig struct {
	DataDir string `json:"data_dir" toml:"data_dir"`
}

type StorageConfig struct {
	UploadDir string `json:"upload_dir" toml:"upload_dir"`
}

type AuthConfig struct {
	JWTSecret     string `json:"jwt_secret" toml:"jwt_secret"`
	TokenTTLHours int    `json:"token_ttl_hours" toml:"token_ttl_hours"`
}

type EventsConfig struct {
	NatsURL    string `json:"nats_url" toml:"nats_url"`
	Prefix     string `json:"prefix" toml:"prefix"`
	Workers    int    `json:"workers" toml:"workers"`
	QueueSize  int    `json:"queue_size" toml:"queue_size"`
	MaxRetries int    `json:"max_retries" toml:"max_retries"`
}

type LogConfig struct {
	Level  string `json:"level" toml:"level"`
	Format string `json:"format" toml:"format"` // "text" or "json"
}

func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *AuthConfig) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLHours) * time.Hour
}

// Enabled reports whether the NATS relay should run.
func (c *EventsConfig) Enabled() bool {
	return c.NatsURL != ""
}

// LoadConfig reads environment variables with defaults, then applies the
// optional file at path. The file format follows its extension: .toml or .json.
func LoadConfig(path string) (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "localhost"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			DataDir: getEnv("DATABASE_DIR", "./data"),
		},
		Storage: StorageConfig{
			UploadDir: getEnv("UPLOAD_DIR", "./data/uploads"),
		},
		Auth: AuthConfig{
			JWTSecret:     getEnv("JWT_SECRET", ""),
			TokenTTLHours: getEnvAsInt("JWT_TTL_HOURS", 24),
		},
		Events: EventsConfig{
			NatsURL:    getEnv("EVENTS_NATS_URL", ""),
			Prefix:     getEnv("EVENTS_PREFIX", "cloudtask"),
			Workers:    getEnvAsInt("EVENTS_WORKERS", 2),
			QueueSize:  getEnvAsInt("EVENTS_QUEUE_SIZE", 1000),
			MaxRetries: getEnvAsInt("EVENTS_MAX_RETRIES", 3),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
			// File doesn't exist, use env vars only
		} else if err := decode(path, data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if !filepath.IsAbs(config.Database.DataDir) {
		config.Database.DataDir, _ = filepath.Abs(config.Database.DataDir)
	}
	if !filepath.IsAbs(config.Storage.UploadDir) {
		config.Storage.UploadDir, _ = filepath.Abs(config.Storage.UploadDir)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func decode(path string, data []byte, config *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Unmarshal(data, config)
	case ".json", "":
		return json.Unmarshal(data, config)
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Auth.TokenTTLHours <= 0 {
		return fmt.Errorf("token_ttl_hours must be positive")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log format %q", c.Log.Format)
	}
	return nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
