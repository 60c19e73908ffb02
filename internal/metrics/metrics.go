// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BookUpdatesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bookviz_book_updates_total",
		Help: "Book messages applied by symbol and outcome",
	}, []string{"symbol", "result"})

	BookEvictionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bookviz_book_evictions_total",
		Help: "Snapshot pairs evicted from the retention window",
	}, []string{"symbol"})

	TickerUpdatesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bookviz_ticker_updates_total",
		Help: "Ticker updates applied by symbol",
	}, []string{"symbol"})

	PipelineRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bookviz_pipeline_runs_total",
		Help: "Completed pipeline runs by symbol",
	}, []string{"symbol"})

	PipelineSkippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bookviz_pipeline_skipped_total",
		Help: "Post-update pipeline triggers skipped because a run was in flight",
	}, []string{"symbol"})

	PipelineDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bookviz_pipeline_duration_seconds",
		Help:    "Wall time of one pipeline run",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	}, []string{"symbol"})

	PipelinesInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bookviz_pipelines_in_flight",
		Help: "Background pipeline runs currently executing",
	})

	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bookviz_dispatch_queue_depth",
		Help: "Actions waiting in the dispatch queue",
	})

	QueueRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bookviz_dispatch_queue_rejected_total",
		Help: "Actions dropped because the queue was full",
	})

	WarningsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bookviz_warnings_total",
		Help: "Warnings surfaced to the presentation layer",
	})

	FeedMessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bookviz_feed_messages_total",
		Help: "Feed messages received by channel",
	}, []string{"channel"})

	FanoutErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bookviz_fanout_errors_total",
		Help: "Failed deliveries to external sinks",
	}, []string{"sink"})

	WSClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bookviz_ws_clients",
		Help: "Connected WebSocket clients",
	})
)

// Init registers every collector, plus the Go and process collectors, on a
// fresh registry.
func Init(logger *slog.Logger) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	toRegister := []prometheus.Collector{
		BookUpdatesTotal, BookEvictionsTotal, TickerUpdatesTotal,
		PipelineRunsTotal, PipelineSkippedTotal, PipelineDurationSeconds, PipelinesInFlight,
		QueueDepth, QueueRejectedTotal, WarningsTotal,
		FeedMessagesTotal, FanoutErrorsTotal, WSClients,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range toRegister {
		if err := reg.Register(c); err != nil {
			logger.Warn("metrics: register collector", slog.String("error", err.Error()))
		}
	}
	logger.Info("prometheus metrics initialized")
	return reg
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// RegisterRedisPool exports the size of a Redis connection pool. stats is
// called on every scrape.
func RegisterRedisPool(reg prometheus.Registerer, stats func() (total, idle uint32)) error {
	for _, g := range []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "bookviz_redis_pool_connections",
			Help: "Connections held by the Redis pool",
		}, func() float64 {
			total, _ := stats()
			return float64(total)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "bookviz_redis_pool_idle_connections",
			Help: "Idle connections in the Redis pool",
		}, func() float64 {
			_, idle := stats()
			return float64(idle)
		}),
	} {
		if err := reg.Register(g); err != nil {
			return fmt.Errorf("metrics: register redis pool: %w", err)
		}
	}
	return nil
}
