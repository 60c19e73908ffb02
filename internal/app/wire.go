package app

import (
	"context"
	"fmt"
	"log/slog"

	rediscache "github.com/alanyoungcy/bookviz/internal/cache/redis"
	"github.com/alanyoungcy/bookviz/internal/config"
	"github.com/alanyoungcy/bookviz/internal/domain"
	"github.com/alanyoungcy/bookviz/internal/notify"
	kafkastream "github.com/alanyoungcy/bookviz/internal/stream/kafka"
)

// Dependencies bundles the external adapters. Optional ones are nil when
// disabled in the configuration.
type Dependencies struct {
	// Redis
	Redis       *rediscache.Client
	Publisher   *rediscache.Publisher
	TickerCache domain.TickerCache
	RateLimiter domain.RateLimiter

	// Kafka
	Producer *kafkastream.Producer

	Notifier *notify.Notifier
}

// Wire constructs the external adapters and returns them together with a
// cleanup function that releases them in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Redis ---
	if cfg.Redis.Enabled {
		client, err := rediscache.New(ctx, rediscache.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = client.Close() })

		tickers := rediscache.NewTickerCache(client)
		deps.Redis = client
		deps.TickerCache = tickers
		deps.Publisher = rediscache.NewPublisher(rediscache.NewSignalBus(client, cfg.Redis.StreamMaxLen), tickers)
		deps.RateLimiter = rediscache.NewRateLimiter(client)
		logger.Info("redis fan-out enabled", slog.String("addr", cfg.Redis.Addr))
	}

	// --- Kafka ---
	if cfg.Kafka.Enabled {
		p := kafkastream.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		closers = append(closers, func() {
			if err := p.Close(); err != nil {
				logger.Warn("kafka: close producer", slog.String("error", err.Error()))
			}
		})
		deps.Producer = p
		logger.Info("kafka fan-out enabled",
			slog.Any("brokers", cfg.Kafka.Brokers),
			slog.String("topic", cfg.Kafka.Topic),
		)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, cfg.Notify.Cooldown.Duration, logger)

	return deps, cleanup, nil
}
