// Package config defines the bookviz configuration and its validation.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by BOOKVIZ_* environment variables.
type Config struct {
	LogLevel string   `toml:"log_level" envconfig:"log_level"`
	Symbols  []string `toml:"symbols" envconfig:"symbols"`

	Book     BookConfig     `toml:"book" envconfig:"book"`
	Render   RenderConfig   `toml:"render" envconfig:"render"`
	Dispatch DispatchConfig `toml:"dispatch" envconfig:"dispatch"`
	Feed     FeedConfig     `toml:"feed" envconfig:"feed"`
	Server   ServerConfig   `toml:"server" envconfig:"server"`
	Redis    RedisConfig    `toml:"redis" envconfig:"redis"`
	Kafka    KafkaConfig    `toml:"kafka" envconfig:"kafka"`
	Notify   NotifyConfig   `toml:"notify" envconfig:"notify"`
}

// BookConfig bounds the per-symbol snapshot history.
type BookConfig struct {
	RetentionSeconds int64 `toml:"retention_seconds" envconfig:"retention_seconds"`
}

// RenderConfig sizes the render grid and schedules pipeline runs.
type RenderConfig struct {
	VisualWindowSeconds int64 `toml:"visual_window_seconds" envconfig:"visual_window_seconds"`
	TimeCells           int   `toml:"time_cells" envconfig:"time_cells"`
	PriceCells          int   `toml:"price_cells" envconfig:"price_cells"`
	// Interval between scheduled renders; zero leaves rendering to
	// TriggerOnUpdate and explicit requests.
	Interval        Duration `toml:"interval" envconfig:"interval"`
	TriggerOnUpdate bool     `toml:"trigger_on_update" envconfig:"trigger_on_update"`
}

type DispatchConfig struct {
	BufferSize      int `toml:"buffer_size" envconfig:"buffer_size"`
	WarningCapacity int `toml:"warning_capacity" envconfig:"warning_capacity"`
	// FanoutBuffer bounds events waiting for the Redis, Kafka and WebSocket
	// sinks.
	FanoutBuffer int `toml:"fanout_buffer" envconfig:"fanout_buffer"`
}

// FeedConfig holds the Kraken WebSocket parameters.
type FeedConfig struct {
	URL         string   `toml:"url" envconfig:"url"`
	Depth       int      `toml:"depth" envconfig:"depth"`
	ReadTimeout Duration `toml:"read_timeout" envconfig:"read_timeout"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled" envconfig:"enabled"`
	Port        int      `toml:"port" envconfig:"port"`
	CORSOrigins []string `toml:"cors_origins" envconfig:"cors_origins"`
	APIKey      string   `toml:"api_key" envconfig:"api_key"`
	// RateLimit requests per RateWindow per client IP; needs Redis. Zero
	// disables limiting.
	RateLimit  int      `toml:"rate_limit" envconfig:"rate_limit"`
	RateWindow Duration `toml:"rate_window" envconfig:"rate_window"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled      bool   `toml:"enabled" envconfig:"enabled"`
	Addr         string `toml:"addr" envconfig:"addr"`
	Password     string `toml:"password" envconfig:"password"`
	DB           int    `toml:"db" envconfig:"db"`
	PoolSize     int    `toml:"pool_size" envconfig:"pool_size"`
	MaxRetries   int    `toml:"max_retries" envconfig:"max_retries"`
	TLSEnabled   bool   `toml:"tls_enabled" envconfig:"tls_enabled"`
	StreamMaxLen int64  `toml:"stream_max_len" envconfig:"stream_max_len"`
}

// KafkaConfig holds the frame topic.
type KafkaConfig struct {
	Enabled bool     `toml:"enabled" envconfig:"enabled"`
	Brokers []string `toml:"brokers" envconfig:"brokers"`
	Topic   string   `toml:"topic" envconfig:"topic"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	DiscordWebhookURL string   `toml:"discord_webhook_url" envconfig:"discord_webhook_url"`
	TelegramToken     string   `toml:"telegram_token" envconfig:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id" envconfig:"telegram_chat_id"`
	Events            []string `toml:"events" envconfig:"events"`
	Cooldown          Duration `toml:"cooldown" envconfig:"cooldown"`
}

// Duration is a time.Duration that decodes from strings like "5m" or "30s"
// in both TOML and environment variables.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with the stock values.
func Defaults() Config {
	return Config{
		LogLevel: "info",
		Symbols:  []string{"BTC/USD"},
		Book: BookConfig{
			RetentionSeconds: 300,
		},
		Render: RenderConfig{
			VisualWindowSeconds: 180,
			TimeCells:           370,
			PriceCells:          200,
			Interval:            Duration{time.Second},
		},
		Dispatch: DispatchConfig{
			BufferSize:      1000,
			WarningCapacity: 64,
			FanoutBuffer:    256,
		},
		Feed: FeedConfig{
			URL:         "wss://ws.kraken.com/v2",
			Depth:       100,
			ReadTimeout: Duration{200 * time.Second},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateWindow:  Duration{time.Minute},
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     20,
			MaxRetries:   3,
			StreamMaxLen: 10000,
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "bookviz.frames",
		},
		Notify: NotifyConfig{
			Events:   []string{"fatal", "feed"},
			Cooldown: Duration{time.Minute},
		},
	}
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validDepths are the book depths the Kraken v2 API accepts.
var validDepths = map[int]bool{10: true, 25: true, 100: true, 500: true, 1000: true}

// Validate checks Config for invalid or missing values and returns a combined
// error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}
	if len(c.Symbols) == 0 {
		errs = append(errs, "symbols: at least one symbol is required")
	}
	for _, s := range c.Symbols {
		if strings.TrimSpace(s) == "" {
			errs = append(errs, "symbols: empty symbol")
		}
	}

	if c.Book.RetentionSeconds <= 0 {
		errs = append(errs, "book: retention_seconds must be > 0")
	}

	if c.Render.VisualWindowSeconds <= 0 {
		errs = append(errs, "render: visual_window_seconds must be > 0")
	} else if c.Render.VisualWindowSeconds > c.Book.RetentionSeconds {
		errs = append(errs, fmt.Sprintf("render: visual_window_seconds (%d) must not exceed book.retention_seconds (%d)",
			c.Render.VisualWindowSeconds, c.Book.RetentionSeconds))
	}
	if c.Render.TimeCells <= 0 {
		errs = append(errs, "render: time_cells must be > 0")
	}
	if c.Render.PriceCells <= 0 {
		errs = append(errs, "render: price_cells must be > 0")
	}
	if c.Render.Interval.Duration < 0 {
		errs = append(errs, "render: interval must not be negative")
	}

	if c.Dispatch.BufferSize <= 0 {
		errs = append(errs, "dispatch: buffer_size must be > 0")
	}
	if c.Dispatch.WarningCapacity <= 0 {
		errs = append(errs, "dispatch: warning_capacity must be > 0")
	}
	if c.Dispatch.FanoutBuffer <= 0 {
		errs = append(errs, "dispatch: fanout_buffer must be > 0")
	}

	if c.Feed.URL == "" {
		errs = append(errs, "feed: url must not be empty")
	}
	if !validDepths[c.Feed.Depth] {
		errs = append(errs, fmt.Sprintf("feed: depth must be one of 10, 25, 100, 500, 1000, got %d", c.Feed.Depth))
	}
	if c.Feed.ReadTimeout.Duration <= 0 {
		errs = append(errs, "feed: read_timeout must be > 0")
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit > 0 {
			if !c.Redis.Enabled {
				errs = append(errs, "server: rate_limit requires redis.enabled")
			}
			if c.Server.RateWindow.Duration <= 0 {
				errs = append(errs, "server: rate_window must be > 0 when rate_limit is set")
			}
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			errs = append(errs, "kafka: brokers must not be empty")
		}
		if c.Kafka.Topic == "" {
			errs = append(errs, "kafka: topic must not be empty")
		}
	}

	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
