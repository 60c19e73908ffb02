package handler

import (
	"net/http"

	"github.com/alanyoungcy/bookviz/internal/domain"
	"github.com/alanyoungcy/bookviz/internal/render"
)

// StateReader is the read side of the render state.
type StateReader interface {
	Status() render.Status
	Frame(symbol string) (domain.Frame, bool)
	Ticker(symbol string) (domain.TickerState, bool)
	Warnings() []domain.Warning
}

// SymbolSet lists the symbols the dispatcher tracks.
type SymbolSet interface {
	Symbols() []string
	Subscribed(symbol string) bool
}

// StatusHandler serves the dashboard summary.
type StatusHandler struct {
	state   StateReader
	symbols SymbolSet
}

func NewStatusHandler(state StateReader, symbols SymbolSet) *StatusHandler {
	return &StatusHandler{state: state, symbols: symbols}
}

// GetStatus responds with the current symbol, the subscribed symbols, the
// symbols with rendered data and the retained warnings.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	st := h.state.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"current":    st.Current,
		"subscribed": h.symbols.Symbols(),
		"rendered":   st.Symbols,
		"warnings":   st.Warnings,
	})
}
