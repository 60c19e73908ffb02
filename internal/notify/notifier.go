// Package notify alerts operators about instrument failures over chat
// webhooks. Every registered Sender receives each alert that passes the event
// filter and the repeat cooldown.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Event types.
const (
	EventFatal   = "fatal"   // the process is about to stop
	EventFeed    = "feed"    // feed connection lost or timed out
	EventWarning = "warning" // instrument-level warning
)

// DefaultCooldown suppresses identical alerts repeated within this period.
const DefaultCooldown = time.Minute

// Alert is one notification.
type Alert struct {
	Event   string
	Symbol  string
	Title   string
	Message string
}

func (a Alert) key() string {
	return a.Event + "|" + a.Symbol + "|" + a.Title + "|" + a.Message
}

// Sender is a single delivery channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier fans alerts out to its senders.
type Notifier struct {
	senders  []Sender
	events   map[string]bool
	cooldown time.Duration
	now      func() time.Time
	logger   *slog.Logger

	mu   sync.Mutex
	sent map[string]time.Time
}

// NewNotifier creates a Notifier. An empty events list admits every event.
func NewNotifier(senders []Sender, events []string, cooldown time.Duration, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders:  senders,
		events:   allowed,
		cooldown: cooldown,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "notifier")),
		sent:     make(map[string]time.Time),
	}
}

// Enabled reports whether any sender is registered.
func (n *Notifier) Enabled() bool {
	return len(n.senders) > 0
}

// Notify delivers a to every sender. Filtered or repeated alerts return nil
// without sending. A failing sender does not stop delivery to the others.
func (n *Notifier) Notify(ctx context.Context, a Alert) error {
	if len(n.senders) == 0 {
		return nil
	}
	if len(n.events) > 0 && !n.events[a.Event] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", a.Event))
		return nil
	}
	if n.suppressed(a) {
		n.logger.DebugContext(ctx, "repeated alert suppressed",
			slog.String("event", a.Event),
			slog.String("symbol", a.Symbol),
		)
		return nil
	}

	title := a.Title
	if a.Symbol != "" {
		title = fmt.Sprintf("[%s] %s", a.Symbol, a.Title)
	}

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, a.Message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

func (n *Notifier) suppressed(a Alert) bool {
	if n.cooldown <= 0 {
		return false
	}
	now := n.now()
	k := a.key()

	n.mu.Lock()
	defer n.mu.Unlock()
	if last, ok := n.sent[k]; ok && now.Sub(last) < n.cooldown {
		return true
	}
	n.sent[k] = now
	for key, at := range n.sent {
		if now.Sub(at) >= n.cooldown {
			delete(n.sent, key)
		}
	}
	return false
}
