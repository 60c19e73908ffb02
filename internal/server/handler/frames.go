package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/bookviz/internal/domain"
)

// FrameHandler serves the latest rendered frame and ticker per symbol.
type FrameHandler struct {
	state   StateReader
	tickers domain.TickerCache // optional fallback
	logger  *slog.Logger
}

// NewFrameHandler creates a FrameHandler. tickers may be nil; when set it
// answers ticker requests for symbols this process has not seen yet.
func NewFrameHandler(state StateReader, tickers domain.TickerCache, logger *slog.Logger) *FrameHandler {
	return &FrameHandler{state: state, tickers: tickers, logger: logHandler(logger, "frames")}
}

// GetFrame returns the latest frame of a symbol.
// GET /api/frames/{symbol...}
func (h *FrameHandler) GetFrame(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	f, ok := h.state.Frame(symbol)
	if !ok {
		writeError(w, http.StatusNotFound, "no frame rendered for "+symbol)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// GetTicker returns the latest ticker of a symbol.
// GET /api/tickers/{symbol...}
func (h *FrameHandler) GetTicker(w http.ResponseWriter, r *http.Request) {
	symbol := symbolParam(r)
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	if t, ok := h.state.Ticker(symbol); ok {
		writeJSON(w, http.StatusOK, t)
		return
	}
	if h.tickers == nil {
		writeError(w, http.StatusNotFound, "no ticker for "+symbol)
		return
	}

	t, err := h.tickers.GetTicker(r.Context(), symbol)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "no ticker for "+symbol)
	case err != nil:
		h.logger.ErrorContext(r.Context(), "ticker cache lookup failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "ticker cache unavailable")
	default:
		writeJSON(w, http.StatusOK, t)
	}
}
