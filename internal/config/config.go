package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	MaxMessageBytes   int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	MaxMessageChars   int           `mapstructure:"max_message_chars" yaml:"max_message_chars"`
	HistoryLimit      int           `mapstructure:"history_limit" yaml:"history_limit"`
	StoreTimeout      time.Duration `mapstructure:"store_timeout" yaml:"store_timeout"`

	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	JWT       JWTConfig       `mapstructure:"jwt" yaml:"jwt"`
	Presence  PresenceConfig  `mapstructure:"presence" yaml:"presence"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	// Driver is "sqlite" or "bolt".
	Driver     string `mapstructure:"driver" yaml:"driver"`
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	BoltPath   string `mapstructure:"bolt_path" yaml:"bolt_path"`
}

// JWTConfig configures login tokens.
type JWTConfig struct {
	Secret   string        `mapstructure:"secret" yaml:"secret"`
	Issuer   string        `mapstructure:"issuer" yaml:"issuer"`
	Audience string        `mapstructure:"audience" yaml:"audience"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// PresenceConfig configures heartbeat-based presence.
type PresenceConfig struct {
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval"`
	OfflineAfter      time.Duration `mapstructure:"offline_after" yaml:"offline_after"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
}

// RateLimitConfig configures registration and chat throttling.
type RateLimitConfig struct {
	RegisterAttempts  int           `mapstructure:"register_attempts" yaml:"register_attempts"`
	RegisterWindow    time.Duration `mapstructure:"register_window" yaml:"register_window"`
	MessagesPerMinute int           `mapstructure:"messages_per_minute" yaml:"messages_per_minute"`
	// RedisAddr switches the registration limiter to Redis when set.
	RedisAddr string `mapstructure:"redis_addr" yaml:"redis_addr"`
}

// PlaceholderJWTSecret is written to fresh config files. It is never used to sign tokens.
const PlaceholderJWTSecret = "change-me"

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		MaxMessageBytes:   1 << 16,
		MaxMessageChars:   2000,
		HistoryLimit:      100,
		StoreTimeout:      5 * time.Second,
		Storage: StorageConfig{
			Driver:     "sqlite",
			SQLitePath: "wirechat.db",
			BoltPath:   "wirechat.bolt",
		},
		JWT: JWTConfig{
			Secret:   PlaceholderJWTSecret,
			Issuer:   "wirechat",
			Audience: "wirechat-clients",
			TTL:      24 * time.Hour,
		},
		Presence: PresenceConfig{
			HeartbeatInterval: 10 * time.Second,
			OfflineAfter:      30 * time.Second,
			SweepInterval:     10 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RegisterAttempts:  5,
			RegisterWindow:    time.Minute,
			MessagesPerMinute: 60,
		},
	}
}

// UpdateFrom overwrites non-zero top-level values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.Storage.Driver != "" {
		c.Storage.Driver = other.Storage.Driver
	}
	if other.Storage.SQLitePath != "" {
		c.Storage.SQLitePath = other.Storage.SQLitePath
	}
	if other.Storage.BoltPath != "" {
		c.Storage.BoltPath = other.Storage.BoltPath
	}
	if other.RateLimit.RedisAddr != "" {
		c.RateLimit.RedisAddr = other.RateLimit.RedisAddr
	}
}
