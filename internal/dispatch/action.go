// Package dispatch runs the single-writer event loop that owns every
// instrument's book history. Feed events, pipeline requests and control
// messages arrive as Actions on one bounded queue and are handled in order.
package dispatch

import "github.com/alanyoungcy/bookviz/internal/domain"

// Action is one message for the dispatch loop.
type Action interface {
	kind() string
}

// Subscribe starts tracking a symbol with a fresh history. It is a no-op for
// a symbol already tracked.
type Subscribe struct{ Symbol string }

// Unsubscribe stops tracking a symbol and drops its history.
type Unsubscribe struct{ Symbol string }

// UpdateBook applies one book message to its symbol's history.
type UpdateBook struct{ Booked domain.Booked }

// UpdateTicker replaces the latest ticker of its symbol.
type UpdateTicker struct{ Ticker domain.TickerState }

// RunPipeline renders a frame for a symbol in the background.
type RunPipeline struct{ Symbol string }

// Warn surfaces a non-fatal problem.
type Warn struct {
	Symbol  string
	Message string
}

// Inform logs an informational message.
type Inform struct{ Message string }

// Quit stops the loop; Run then returns ErrQuit.
type Quit struct{}

func (Subscribe) kind() string    { return "subscribe" }
func (Unsubscribe) kind() string  { return "unsubscribe" }
func (UpdateBook) kind() string   { return "update_book" }
func (UpdateTicker) kind() string { return "update_ticker" }
func (RunPipeline) kind() string  { return "run_pipeline" }
func (Warn) kind() string         { return "warn" }
func (Inform) kind() string       { return "inform" }
func (Quit) kind() string         { return "quit" }
