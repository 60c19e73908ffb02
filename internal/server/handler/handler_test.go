package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alanyoungcy/bookviz/internal/dispatch"
	"github.com/alanyoungcy/bookviz/internal/domain"
	"github.com/alanyoungcy/bookviz/internal/render"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSymbols map[string]bool

func (f fakeSymbols) Symbols() []string {
	out := make([]string, 0, len(f))
	for s := range f {
		out = append(out, s)
	}
	return out
}

func (f fakeSymbols) Subscribed(symbol string) bool { return f[symbol] }

type fakeQueue struct {
	sent []dispatch.Action
	err  error
}

func (q *fakeQueue) TrySend(a dispatch.Action) error {
	if q.err != nil {
		return q.err
	}
	q.sent = append(q.sent, a)
	return nil
}

type fakeTickers struct{ err error }

func (f fakeTickers) SetTicker(context.Context, domain.TickerState) error { return nil }

func (f fakeTickers) GetTicker(_ context.Context, symbol string) (domain.TickerState, error) {
	if f.err != nil {
		return domain.TickerState{}, f.err
	}
	return domain.TickerState{Symbol: symbol, Bid: 42}, nil
}

// serve routes one request through a mux so PathValue is populated.
func serve(pattern string, h http.HandlerFunc, method, target string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc(pattern, h)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthCheck(t *testing.T) {
	ok := NewHealthHandler(map[string]Check{"redis": func(context.Context) error { return nil }}, discard())
	rec := serve("GET /api/health", ok.HealthCheck, http.MethodGet, "/api/health")
	if rec.Code != http.StatusOK || decode(t, rec)["status"] != "ok" {
		t.Fatalf("healthy: %d %s", rec.Code, rec.Body)
	}

	bad := NewHealthHandler(map[string]Check{"redis": func(context.Context) error { return errors.New("refused") }}, discard())
	rec = serve("GET /api/health", bad.HealthCheck, http.MethodGet, "/api/health")
	if rec.Code != http.StatusServiceUnavailable || decode(t, rec)["status"] != "degraded" {
		t.Fatalf("degraded: %d %s", rec.Code, rec.Body)
	}
}

func TestGetFrameWithSlashSymbol(t *testing.T) {
	st := render.NewState(4)
	st.SetFrame(domain.Frame{RunID: "r", Symbol: "BTC/USD"})
	h := NewFrameHandler(st, nil, discard())

	rec := serve("GET /api/frames/{symbol...}", h.GetFrame, http.MethodGet, "/api/frames/BTC/USD")
	if rec.Code != http.StatusOK || decode(t, rec)["run_id"] != "r" {
		t.Fatalf("frame: %d %s", rec.Code, rec.Body)
	}

	rec = serve("GET /api/frames/{symbol...}", h.GetFrame, http.MethodGet, "/api/frames/ETH/USD")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing frame: %d", rec.Code)
	}
}

func TestGetTickerFallsBackToCache(t *testing.T) {
	st := render.NewState(4)
	st.SetTicker(domain.TickerState{Symbol: "BTC/USD", Bid: 1})

	h := NewFrameHandler(st, fakeTickers{}, discard())
	rec := serve("GET /api/tickers/{symbol...}", h.GetTicker, http.MethodGet, "/api/tickers/BTC/USD")
	if rec.Code != http.StatusOK || decode(t, rec)["bid"] != 1.0 {
		t.Fatalf("state ticker: %d %s", rec.Code, rec.Body)
	}
	rec = serve("GET /api/tickers/{symbol...}", h.GetTicker, http.MethodGet, "/api/tickers/ETH/USD")
	if rec.Code != http.StatusOK || decode(t, rec)["bid"] != 42.0 {
		t.Fatalf("cached ticker: %d %s", rec.Code, rec.Body)
	}

	h = NewFrameHandler(st, fakeTickers{err: domain.ErrNotFound}, discard())
	rec = serve("GET /api/tickers/{symbol...}", h.GetTicker, http.MethodGet, "/api/tickers/ETH/USD")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("not found: %d", rec.Code)
	}

	h = NewFrameHandler(st, fakeTickers{err: errors.New("io timeout")}, discard())
	rec = serve("GET /api/tickers/{symbol...}", h.GetTicker, http.MethodGet, "/api/tickers/ETH/USD")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("cache failure: %d", rec.Code)
	}
}

func TestTriggerPipeline(t *testing.T) {
	q := &fakeQueue{}
	h := NewPipelineHandler(q, fakeSymbols{"BTC/USD": true}, discard())

	rec := serve("POST /api/pipeline/{symbol...}", h.TriggerPipeline, http.MethodPost, "/api/pipeline/BTC/USD")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("trigger: %d %s", rec.Code, rec.Body)
	}
	if len(q.sent) != 1 || q.sent[0] != (dispatch.RunPipeline{Symbol: "BTC/USD"}) {
		t.Fatalf("sent = %#v", q.sent)
	}

	rec = serve("POST /api/pipeline/{symbol...}", h.TriggerPipeline, http.MethodPost, "/api/pipeline/DOGE/USD")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown symbol: %d", rec.Code)
	}

	q.err = fmt.Errorf("dispatch: send run_pipeline: %w", domain.ErrQueueFull)
	rec = serve("POST /api/pipeline/{symbol...}", h.TriggerPipeline, http.MethodPost, "/api/pipeline/BTC/USD")
	if rec.Code != http.StatusServiceUnavailable || rec.Header().Get("Retry-After") == "" {
		t.Fatalf("queue full: %d", rec.Code)
	}
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	q := &fakeQueue{}
	h := NewPipelineHandler(q, fakeSymbols{"BTC/USD": true}, discard())

	if rec := serve("PUT /api/symbols/{symbol...}", h.Subscribe, http.MethodPut, "/api/symbols/ETH/USD"); rec.Code != http.StatusAccepted {
		t.Fatalf("subscribe: %d", rec.Code)
	}
	if rec := serve("DELETE /api/symbols/{symbol...}", h.Unsubscribe, http.MethodDelete, "/api/symbols/BTC/USD"); rec.Code != http.StatusAccepted {
		t.Fatalf("unsubscribe: %d", rec.Code)
	}
	if rec := serve("DELETE /api/symbols/{symbol...}", h.Unsubscribe, http.MethodDelete, "/api/symbols/XRP/USD"); rec.Code != http.StatusNotFound {
		t.Fatalf("unsubscribe unknown: %d", rec.Code)
	}
	want := []dispatch.Action{dispatch.Subscribe{Symbol: "ETH/USD"}, dispatch.Unsubscribe{Symbol: "BTC/USD"}}
	if len(q.sent) != len(want) || q.sent[0] != want[0] || q.sent[1] != want[1] {
		t.Fatalf("sent = %#v", q.sent)
	}
}

func TestShutdownSendsQuit(t *testing.T) {
	q := &fakeQueue{}
	h := NewPipelineHandler(q, fakeSymbols{}, discard())

	if rec := serve("POST /api/shutdown", h.Shutdown, http.MethodPost, "/api/shutdown"); rec.Code != http.StatusAccepted {
		t.Fatalf("shutdown: %d", rec.Code)
	}
	if len(q.sent) != 1 || q.sent[0] != (dispatch.Quit{}) {
		t.Fatalf("sent = %#v", q.sent)
	}
}

type fakeLog struct{ after string }

func (f *fakeLog) Warnings(_ context.Context, lastID string, count int) ([]domain.Warning, string, error) {
	f.after = lastID
	return []domain.Warning{{Symbol: "BTC/USD", Message: "m"}}, "5-0", nil
}

func TestListWarnings(t *testing.T) {
	st := render.NewState(4)
	for i := 0; i < 3; i++ {
		st.AddWarning(domain.Warning{Message: fmt.Sprint(i)})
	}

	h := NewWarningHandler(st, nil, discard())
	rec := serve("GET /api/warnings", h.ListWarnings, http.MethodGet, "/api/warnings?count=2")
	ws := decode(t, rec)["warnings"].([]any)
	if len(ws) != 2 {
		t.Fatalf("ring warnings = %v", ws)
	}

	log := &fakeLog{}
	h = NewWarningHandler(st, log, discard())
	rec = serve("GET /api/warnings", h.ListWarnings, http.MethodGet, "/api/warnings?after=4-0")
	body := decode(t, rec)
	if body["next"] != "5-0" || log.after != "4-0" {
		t.Fatalf("stream warnings = %v (after %q)", body, log.after)
	}
}

func TestGetStatus(t *testing.T) {
	st := render.NewState(4)
	st.SetCurrent("BTC/USD")
	h := NewStatusHandler(st, fakeSymbols{"BTC/USD": true})

	rec := serve("GET /api/status", h.GetStatus, http.MethodGet, "/api/status")
	body := decode(t, rec)
	if body["current"] != "BTC/USD" {
		t.Fatalf("status = %v", body)
	}
	if subs := body["subscribed"].([]any); len(subs) != 1 {
		t.Fatalf("subscribed = %v", subs)
	}
}
