package config

import "time"

// Chat definition chat_service YAML structure
type Chat struct {
	Port       string        `mapstructure:"port"`
	Storage    string        `mapstructure:"storage"` // "memory" or "mongo"
	SessionTTL time.Duration `mapstructure:"session_ttl"`

	PostgreSQL DatabaseConfig  `mapstructure:"pg"`
	MongoSQL   DatabaseConfig  `mapstructure:"mongo"`
	Redis      RedisConfig     `mapstructure:"redis"`
	RateLimit  RateLimitConfig `mapstructure:"rate_limit"`
	Message    MessageConfig   `mapstructure:"message"`
	Retention  RetentionConfig `mapstructure:"retention"`
}

// RateLimitConfig definition per-user sliding window bounds
type RateLimitConfig struct {
	Window      time.Duration `mapstructure:"window"`
	MaxMessages int           `mapstructure:"max_messages"`
}

// MessageConfig definition message validation and fanout bounds
type MessageConfig struct {
	MaxLength     int `mapstructure:"max_length"`
	HistoryLimit  int `mapstructure:"history_limit"`
	SendQueueSize int `mapstructure:"send_queue_size"`
}

// RetentionConfig definition tombstone sweep schedule
type RetentionConfig struct {
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	MaxAge        time.Duration `mapstructure:"max_age"`
}

// RedisConfig definition redis setting
type RedisConfig struct {
	RedisDB int `mapstructure:"redis_db"`
}

// DatabaseConfig definition db setting
type DatabaseConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}
