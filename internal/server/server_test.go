package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alanyoungcy/bookviz/internal/dispatch"
	"github.com/alanyoungcy/bookviz/internal/domain"
	"github.com/alanyoungcy/bookviz/internal/render"
	"github.com/alanyoungcy/bookviz/internal/server/handler"
)

type symbols struct{}

func (symbols) Symbols() []string            { return []string{"BTC/USD"} }
func (symbols) Subscribed(symbol string) bool { return symbol == "BTC/USD" }

type queue struct{}

func (queue) TrySend(dispatch.Action) error { return nil }

type denyAll struct{}

func (denyAll) Allow(context.Context, string, int, time.Duration) (bool, error) { return false, nil }

func newTestServer(cfg Config) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := render.NewState(render.DefaultWarningCapacity)
	st.SetFrame(domain.Frame{Symbol: "BTC/USD"})
	h := Handlers{
		Health:   handler.NewHealthHandler(nil, logger),
		Status:   handler.NewStatusHandler(st, symbols{}),
		Frames:   handler.NewFrameHandler(st, nil, logger),
		Warnings: handler.NewWarningHandler(st, nil, logger),
		Pipeline: handler.NewPipelineHandler(queue{}, symbols{}, logger),
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte("# metrics"))
		}),
	}
	return NewServer(cfg, h, logger).Handler()
}

func do(h http.Handler, method, target string, header ...string) int {
	req := httptest.NewRequest(method, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestRoutes(t *testing.T) {
	h := newTestServer(Config{})
	tests := []struct {
		method, target string
		want           int
	}{
		{http.MethodGet, "/api/health", http.StatusOK},
		{http.MethodGet, "/api/status", http.StatusOK},
		{http.MethodGet, "/api/warnings", http.StatusOK},
		{http.MethodGet, "/api/frames/BTC/USD", http.StatusOK},
		{http.MethodGet, "/api/tickers/BTC/USD", http.StatusNotFound},
		{http.MethodPost, "/api/pipeline/BTC/USD", http.StatusAccepted},
		{http.MethodPut, "/api/symbols/ETH/USD", http.StatusAccepted},
		{http.MethodPost, "/api/shutdown", http.StatusAccepted},
		{http.MethodGet, "/api/shutdown", http.StatusMethodNotAllowed},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/api/pipeline/BTC/USD", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		if got := do(h, tt.method, tt.target); got != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.target, got, tt.want)
		}
	}
}

func TestAuthLeavesHealthOpen(t *testing.T) {
	h := newTestServer(Config{APIKey: "k"})
	if got := do(h, http.MethodGet, "/api/health"); got != http.StatusOK {
		t.Errorf("health = %d", got)
	}
	if got := do(h, http.MethodGet, "/api/status"); got != http.StatusUnauthorized {
		t.Errorf("status without key = %d", got)
	}
	if got := do(h, http.MethodGet, "/api/status", "X-API-Key", "k"); got != http.StatusOK {
		t.Errorf("status with key = %d", got)
	}
}

func TestRateLimitWired(t *testing.T) {
	h := newTestServer(Config{Limiter: denyAll{}, RateLimit: 1, RateWindow: time.Second})
	if got := do(h, http.MethodGet, "/api/status"); got != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", got)
	}
}
