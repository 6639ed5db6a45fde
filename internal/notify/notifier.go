// Package notify fans operator alerts out to chat channels. Each alert has an
// event type, and only configured types are delivered.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/arbengine/internal/domain"
	"github.com/alanyoungcy/arbengine/internal/report"
)

// Event types.
const (
	EventArbDetected = "arb_detected"
	EventCycleFailed = "cycle_failed"
)

// Sender delivers one message to one channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier dispatches to every Sender, filtered by event type.
type Notifier struct {
	senders  []Sender
	events   map[string]bool
	currency string
	topN     int
	logger   *slog.Logger
}

// NewNotifier creates a Notifier. An empty events list allows every type.
// topN caps the opportunity lines per message.
func NewNotifier(senders []Sender, events []string, currency string, topN int, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders:  senders,
		events:   allowed,
		currency: currency,
		topN:     topN,
		logger:   logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool { return len(n.senders) > 0 }

// OpportunitiesDetected sends the top of a ranked batch. An empty batch sends
// nothing.
func (n *Notifier) OpportunitiesDetected(ctx context.Context, opps []domain.Opportunity) error {
	if len(opps) == 0 {
		return nil
	}
	var b strings.Builder
	if err := report.Summary(&b, opps, n.topN, n.currency); err != nil {
		return fmt.Errorf("notify: render opportunities: %w", err)
	}
	title := fmt.Sprintf("%d arbitrage opportunit%s", len(opps), plural(len(opps)))
	return n.Notify(ctx, EventArbDetected, title, strings.TrimRight(b.String(), "\n"))
}

// CycleFailed reports a failed cycle.
func (n *Notifier) CycleFailed(ctx context.Context, cause error) error {
	return n.Notify(ctx, EventCycleFailed, "Cycle failed", cause.Error())
}

// Notify sends to every sender when event is allowed.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "notify: event filtered out", slog.String("event", event))
		return nil
	}

	// One failing sender does not stop the others.
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "notify: sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notify: sent",
			slog.String("sender", s.Name()),
			slog.String("event", event),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

func plural(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
