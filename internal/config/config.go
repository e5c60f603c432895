package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Plex        PlexConfig        `mapstructure:"plex"`
	Attribution AttributionConfig `mapstructure:"attribution"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig defines the metrics listener
type ServerConfig struct {
	BindAddress string `mapstructure:"bind_address"`
	MetricsPort int    `mapstructure:"metrics_port"`
}

// PlexConfig defines how the media server is reached
type PlexConfig struct {
	URL                string `mapstructure:"url"`
	Token              string `mapstructure:"token"`
	Timespan           int    `mapstructure:"timespan"`
	Timeout            string `mapstructure:"timeout"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
	ClientIdentifier   string `mapstructure:"client_identifier"`
	DeviceName         string `mapstructure:"device_name"`
}

// AttributionConfig tunes the attribution engine
type AttributionConfig struct {
	OwnerAccountID          int64 `mapstructure:"owner_account_id"`
	StreamingThresholdBytes int64 `mapstructure:"streaming_threshold_bytes"`
	DefaultBitrateKbps      int   `mapstructure:"default_bitrate_kbps"`
}

// StorageConfig defines where emitted-bucket markers are kept
type StorageConfig struct {
	Type   string       `mapstructure:"type"`
	Memory MemoryConfig `mapstructure:"memory"`
	Redis  RedisConfig  `mapstructure:"redis"`
}

// MemoryConfig defines the in-process marker store
type MemoryConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// RedisConfig defines the Redis marker store
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
	KeyPrefix    string `mapstructure:"key_prefix"`
	MarkerTTL    string `mapstructure:"marker_ttl"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// legacyEnv maps the environment variables of earlier releases onto config keys.
var legacyEnv = map[string]string{
	"plex.url":            "PLEX_SERVER",
	"plex.token":          "PLEX_TOKEN",
	"server.metrics_port": "LISTEN_PORT",
}

// Load loads configuration from file and environment variables. A .env file
// in the working directory is applied to the environment first if present.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	v := viper.New()

	// Set defaults
	SetDefaults(v)

	// Configure viper
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("PLEXBW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range legacyEnv {
		prefixed := "PLEXBW_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// SetDefaults sets default configuration values
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.bind_address", "0.0.0.0")
	v.SetDefault("server.metrics_port", 3000)

	// Plex defaults
	v.SetDefault("plex.url", "")
	v.SetDefault("plex.token", "")
	v.SetDefault("plex.timespan", 6)
	v.SetDefault("plex.timeout", "10s")
	v.SetDefault("plex.insecure_skip_verify", true)
	v.SetDefault("plex.client_identifier", "9b60b49b-8158-4402-ad78-2f48eb4e7476")
	v.SetDefault("plex.device_name", "PrometheusExporter")

	// Attribution defaults
	v.SetDefault("attribution.owner_account_id", 1)
	v.SetDefault("attribution.streaming_threshold_bytes", 27212970)
	v.SetDefault("attribution.default_bitrate_kbps", 8000)

	// Storage defaults
	v.SetDefault("storage.type", "memory")
	v.SetDefault("storage.memory.capacity", 0) // memory.DefaultCapacity
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 2)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")
	v.SetDefault("storage.redis.key_prefix", "plexbw")
	v.SetDefault("storage.redis.marker_ttl", "168h")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Plex.URL == "" {
		return fmt.Errorf("plex.url is required (example: https://plex.ip.address:32400)")
	}
	u, err := url.Parse(cfg.Plex.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid plex.url: %q", cfg.Plex.URL)
	}
	cfg.Plex.URL = strings.TrimRight(cfg.Plex.URL, "/")

	if cfg.Plex.Token == "" {
		return fmt.Errorf("plex.token is required")
	}
	if cfg.Plex.Timespan <= 0 {
		return fmt.Errorf("invalid plex.timespan: %d", cfg.Plex.Timespan)
	}
	if _, err := time.ParseDuration(cfg.Plex.Timeout); err != nil {
		return fmt.Errorf("invalid plex.timeout: %w", err)
	}

	if cfg.Server.MetricsPort <= 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}

	if cfg.Attribution.StreamingThresholdBytes <= 0 {
		return fmt.Errorf("invalid attribution.streaming_threshold_bytes: %d", cfg.Attribution.StreamingThresholdBytes)
	}
	if cfg.Attribution.DefaultBitrateKbps < 0 {
		return fmt.Errorf("invalid attribution.default_bitrate_kbps: %d", cfg.Attribution.DefaultBitrateKbps)
	}

	if cfg.Storage.Memory.Capacity < 0 {
		return fmt.Errorf("invalid storage.memory.capacity: %d", cfg.Storage.Memory.Capacity)
	}

	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "memory"
	}
	switch cfg.Storage.Type {
	case "memory":
	case "redis":
		if cfg.Storage.Redis.Host == "" {
			return fmt.Errorf("storage.redis.host is required")
		}
		if _, err := time.ParseDuration(cfg.Storage.Redis.MarkerTTL); err != nil {
			return fmt.Errorf("invalid storage.redis.marker_ttl: %w", err)
		}
	default:
		return fmt.Errorf("unsupported storage type: %s (expected 'memory' or 'redis')", cfg.Storage.Type)
	}

	return nil
}
