package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/bookviz/internal/dispatch"
	"github.com/alanyoungcy/bookviz/internal/domain"
)

// Enqueuer accepts dispatcher actions without blocking.
type Enqueuer interface {
	TrySend(a dispatch.Action) error
}

// PipelineHandler turns HTTP requests into dispatcher actions.
type PipelineHandler struct {
	queue   Enqueuer
	symbols SymbolSet
	logger  *slog.Logger
}

func NewPipelineHandler(queue Enqueuer, symbols SymbolSet, logger *slog.Logger) *PipelineHandler {
	return &PipelineHandler{queue: queue, symbols: symbols, logger: logHandler(logger, "pipeline")}
}

// TriggerPipeline enqueues one render of a subscribed symbol.
// POST /api/pipeline/{symbol...}
func (h *PipelineHandler) TriggerPipeline(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	if !h.symbols.Subscribed(symbol) {
		writeError(w, http.StatusNotFound, "symbol not subscribed: "+symbol)
		return
	}
	h.enqueue(w, r, dispatch.RunPipeline{Symbol: symbol}, symbol)
}

// Subscribe starts tracking a symbol.
// PUT /api/symbols/{symbol...}
func (h *PipelineHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	h.enqueue(w, r, dispatch.Subscribe{Symbol: symbol}, symbol)
}

// Unsubscribe stops tracking a symbol.
// DELETE /api/symbols/{symbol...}
func (h *PipelineHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	if !h.symbols.Subscribed(symbol) {
		writeError(w, http.StatusNotFound, "symbol not subscribed: "+symbol)
		return
	}
	h.enqueue(w, r, dispatch.Unsubscribe{Symbol: symbol}, symbol)
}

// Shutdown asks the dispatcher to quit, which stops the whole process.
// POST /api/shutdown
func (h *PipelineHandler) Shutdown(w http.ResponseWriter, r *http.Request) {
	h.enqueue(w, r, dispatch.Quit{}, "")
}

func (h *PipelineHandler) enqueue(w http.ResponseWriter, r *http.Request, a dispatch.Action, symbol string) {
	if err := h.queue.TrySend(a); err != nil {
		if errors.Is(err, domain.ErrQueueFull) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusServiceUnavailable, "dispatch queue full")
			return
		}
		h.logger.ErrorContext(r.Context(), "enqueue failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "enqueue failed")
		return
	}
	h.logger.InfoContext(r.Context(), "action enqueued", slog.String("symbol", symbol))
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":       "accepted",
		"symbol":       symbol,
		"requested_at": time.Now().UTC().Format(time.RFC3339),
	})
}
