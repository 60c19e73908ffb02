package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/bookviz/internal/domain"
)

// WarningLog reads the shared warning stream.
type WarningLog interface {
	Warnings(ctx context.Context, lastID string, count int) ([]domain.Warning, string, error)
}

// WarningHandler serves recent warnings, from the shared stream when one is
// configured and from the in-process ring otherwise.
type WarningHandler struct {
	state  StateReader
	log    WarningLog
	logger *slog.Logger
}

func NewWarningHandler(state StateReader, log WarningLog, logger *slog.Logger) *WarningHandler {
	return &WarningHandler{state: state, log: log, logger: logHandler(logger, "warnings")}
}

// ListWarnings returns warnings. With a stream, ?after=<id> pages forward and
// the response carries the id to pass next.
// GET /api/warnings
func (h *WarningHandler) ListWarnings(w http.ResponseWriter, r *http.Request) {
	count := queryInt(r, "count", 100, 1000)

	if h.log == nil {
		ws := h.state.Warnings()
		if len(ws) > count {
			ws = ws[len(ws)-count:]
		}
		writeJSON(w, http.StatusOK, map[string]any{"warnings": ws})
		return
	}

	after := r.URL.Query().Get("after")
	if after == "" {
		after = "0"
	}
	ws, next, err := h.log.Warnings(r.Context(), after, count)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "read warning stream failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "warning stream unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"warnings": ws, "next": next})
}
