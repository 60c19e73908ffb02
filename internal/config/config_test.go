package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if cfg.Dispatch.BufferSize != 1000 || cfg.Feed.ReadTimeout.Duration != 200*time.Second {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeFile(t, `
symbols = ["ETH/USD", "SOL/USD"]

[render]
time_cells = 100
interval = "250ms"

[feed]
depth = 25
`)
	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Symbols) != 2 || cfg.Symbols[1] != "SOL/USD" {
		t.Errorf("symbols = %v", cfg.Symbols)
	}
	if cfg.Render.TimeCells != 100 || cfg.Render.PriceCells != 200 {
		t.Errorf("render = %+v", cfg.Render)
	}
	if cfg.Render.Interval.Duration != 250*time.Millisecond {
		t.Errorf("interval = %v", cfg.Render.Interval)
	}
	if cfg.Feed.Depth != 25 || cfg.Feed.URL != "wss://ws.kraken.com/v2" {
		t.Errorf("feed = %+v", cfg.Feed)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BOOKVIZ_SYMBOLS", "BTC/USD,XRP/USD")
	t.Setenv("BOOKVIZ_FEED_READ_TIMEOUT", "30s")
	t.Setenv("BOOKVIZ_BOOK_RETENTION_SECONDS", "600")
	t.Setenv("BOOKVIZ_REDIS_ENABLED", "true")
	t.Setenv("BOOKVIZ_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load(writeFile(t, "[book]\nretention_seconds = 120\n"), false)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Symbols) != 2 || cfg.Symbols[1] != "XRP/USD" {
		t.Errorf("symbols = %v", cfg.Symbols)
	}
	if cfg.Feed.ReadTimeout.Duration != 30*time.Second {
		t.Errorf("read timeout = %v", cfg.Feed.ReadTimeout)
	}
	if cfg.Book.RetentionSeconds != 600 {
		t.Errorf("retention = %d, env should win over file", cfg.Book.RetentionSeconds)
	}
	if !cfg.Redis.Enabled || len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("redis/kafka = %+v %+v", cfg.Redis, cfg.Kafka)
	}
}

func TestLoadMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.toml")
	if _, err := Load(missing, false); err == nil {
		t.Fatal("expected error for required file")
	}
	cfg, err := Load(missing, true)
	if err != nil {
		t.Fatalf("optional missing file: %v", err)
	}
	if cfg.Book.RetentionSeconds != 300 {
		t.Errorf("retention = %d", cfg.Book.RetentionSeconds)
	}
}

func TestLoadBadEnv(t *testing.T) {
	t.Setenv("BOOKVIZ_FEED_DEPTH", "deep")
	if _, err := Load("", false); err == nil {
		t.Fatal("expected env parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no symbols", func(c *Config) { c.Symbols = nil }, "at least one symbol"},
		{"zero retention", func(c *Config) { c.Book.RetentionSeconds = 0 }, "retention_seconds"},
		{"visual exceeds retention", func(c *Config) { c.Render.VisualWindowSeconds = 301 }, "must not exceed"},
		{"zero cells", func(c *Config) { c.Render.PriceCells = 0 }, "price_cells"},
		{"zero buffer", func(c *Config) { c.Dispatch.BufferSize = 0 }, "buffer_size"},
		{"bad depth", func(c *Config) { c.Feed.Depth = 50 }, "depth must be one of"},
		{"redis without addr", func(c *Config) { c.Redis.Enabled = true; c.Redis.Addr = "" }, "redis: addr"},
		{"kafka without topic", func(c *Config) { c.Kafka.Enabled = true; c.Kafka.Topic = "" }, "kafka: topic"},
		{"rate limit without redis", func(c *Config) { c.Server.RateLimit = 10 }, "requires redis"},
		{"half telegram", func(c *Config) { c.Notify.TelegramToken = "t" }, "set together"},
		{"log level", func(c *Config) { c.LogLevel = "trace" }, "log_level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Server.APIKey = "key"
	cfg.Redis.Password = "pw"
	cfg.Notify.DiscordWebhookURL = "https://discord/hook"

	out := RedactedConfig(&cfg)
	if out.Server.APIKey != redacted || out.Redis.Password != redacted || out.Notify.DiscordWebhookURL != redacted {
		t.Fatalf("secrets leaked: %+v", out)
	}
	if out.Notify.TelegramToken != "" {
		t.Error("empty secret should stay empty")
	}
	out.Symbols[0] = "MUTATED"
	if cfg.Symbols[0] == "MUTATED" || cfg.Server.APIKey != "key" {
		t.Error("redacted copy aliases the original")
	}
}
