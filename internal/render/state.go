// Package render holds the presentation-facing state: the current symbol,
// the latest ticker and frame per symbol, and recent warnings. The dispatcher
// is the only writer; the HTTP server and push hub read it concurrently.
package render

import (
	"sort"
	"sync"

	"github.com/alanyoungcy/bookviz/internal/domain"
)

// DefaultWarningCapacity bounds the warning ring when none is configured.
const DefaultWarningCapacity = 64

// Status is a point-in-time copy of the state summary.
type Status struct {
	Current  string           `json:"current"`
	Symbols  []string         `json:"symbols"`
	Warnings []domain.Warning `json:"warnings"`
}

// State is safe for concurrent use. Frames handed out share their slices
// with the stored frame and must be treated as read-only.
type State struct {
	mu       sync.RWMutex
	current  string
	tickers  map[string]domain.TickerState
	frames   map[string]domain.Frame
	warnings []domain.Warning
	next     int
	full     bool

	onFrame   []func(domain.Frame)
	onTicker  []func(domain.TickerState)
	onWarning []func(domain.Warning)
}

// NewState creates an empty State keeping the last warningCapacity warnings.
func NewState(warningCapacity int) *State {
	if warningCapacity <= 0 {
		warningCapacity = DefaultWarningCapacity
	}
	return &State{
		tickers:  make(map[string]domain.TickerState),
		frames:   make(map[string]domain.Frame),
		warnings: make([]domain.Warning, warningCapacity),
	}
}

// OnFrame registers fn to be called after every SetFrame.
func (s *State) OnFrame(fn func(domain.Frame)) {
	s.mu.Lock()
	s.onFrame = append(s.onFrame, fn)
	s.mu.Unlock()
}

// OnTicker registers fn to be called after every SetTicker.
func (s *State) OnTicker(fn func(domain.TickerState)) {
	s.mu.Lock()
	s.onTicker = append(s.onTicker, fn)
	s.mu.Unlock()
}

// OnWarning registers fn to be called after every AddWarning.
func (s *State) OnWarning(fn func(domain.Warning)) {
	s.mu.Lock()
	s.onWarning = append(s.onWarning, fn)
	s.mu.Unlock()
}

// SetCurrent marks symbol as the one being displayed.
func (s *State) SetCurrent(symbol string) {
	s.mu.Lock()
	s.current = symbol
	s.mu.Unlock()
}

// Current returns the displayed symbol.
func (s *State) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Forget drops the ticker and frame of symbol and clears it as current.
func (s *State) Forget(symbol string) {
	s.mu.Lock()
	delete(s.tickers, symbol)
	delete(s.frames, symbol)
	if s.current == symbol {
		s.current = ""
	}
	s.mu.Unlock()
}

// SetTicker stores t and notifies ticker listeners.
func (s *State) SetTicker(t domain.TickerState) {
	s.mu.Lock()
	s.tickers[t.Symbol] = t
	listeners := s.onTicker
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(t)
	}
}

// Ticker returns the latest ticker of symbol.
func (s *State) Ticker(symbol string) (domain.TickerState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tickers[symbol]
	return t, ok
}

// SetFrame replaces the frame of f.Symbol and notifies frame listeners.
func (s *State) SetFrame(f domain.Frame) {
	s.mu.Lock()
	s.frames[f.Symbol] = f
	listeners := s.onFrame
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(f)
	}
}

// Frame returns the latest frame of symbol.
func (s *State) Frame(symbol string) (domain.Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.frames[symbol]
	return f, ok
}

// AddWarning appends w to the ring, overwriting the oldest when full, and
// notifies warning listeners.
func (s *State) AddWarning(w domain.Warning) {
	s.mu.Lock()
	s.warnings[s.next] = w
	s.next = (s.next + 1) % len(s.warnings)
	if s.next == 0 {
		s.full = true
	}
	listeners := s.onWarning
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(w)
	}
}

// Warnings returns the retained warnings, oldest first.
func (s *State) Warnings() []domain.Warning {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.warningsLocked()
}

func (s *State) warningsLocked() []domain.Warning {
	if !s.full {
		return append([]domain.Warning(nil), s.warnings[:s.next]...)
	}
	out := make([]domain.Warning, 0, len(s.warnings))
	out = append(out, s.warnings[s.next:]...)
	return append(out, s.warnings[:s.next]...)
}

// Status returns the current symbol, the symbols with a ticker or frame, and
// the retained warnings.
func (s *State) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{}, len(s.tickers)+len(s.frames))
	for sym := range s.tickers {
		seen[sym] = struct{}{}
	}
	for sym := range s.frames {
		seen[sym] = struct{}{}
	}
	symbols := make([]string, 0, len(seen))
	for sym := range seen {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	return Status{Current: s.current, Symbols: symbols, Warnings: s.warningsLocked()}
}
