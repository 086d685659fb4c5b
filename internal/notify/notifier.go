// Package notify delivers run results to chat channels. Every message goes to
// all registered senders and can be filtered by event type.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/dcabot/internal/domain"
)

// Event types accepted by the filter.
const (
	EventOrderPlaced  = "order_placed"
	EventOrderSkipped = "order_skipped"
	EventOrderFailed  = "order_failed"
	EventRunSummary   = "run_summary"
)

// KnownEvents lists every event type the notifier emits.
var KnownEvents = []string{EventOrderPlaced, EventOrderSkipped, EventOrderFailed, EventRunSummary}

// Sender is one notification channel.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a short identifier such as "discord".
	Name() string
}

// Notifier fans messages out to its senders. With an empty event list every
// event passes the filter.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to senders.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether at least one sender is registered.
func (n *Notifier) Enabled() bool { return len(n.senders) > 0 }

// Notify sends title and message if event passes the filter.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// NotifyOutcome formats and sends one pair outcome.
func (n *Notifier) NotifyOutcome(ctx context.Context, o domain.PairOutcome) error {
	title, body := FormatOutcome(o)
	return n.Notify(ctx, outcomeEvent(o.Status), title, body)
}

// NotifySummary formats and sends the end-of-run summary.
func (n *Notifier) NotifySummary(ctx context.Context, r domain.RunReport) error {
	title, body := FormatSummary(r)
	return n.Notify(ctx, EventRunSummary, title, body)
}

func outcomeEvent(s domain.OutcomeStatus) string {
	switch s {
	case domain.OutcomePlaced:
		return EventOrderPlaced
	case domain.OutcomeSkipped:
		return EventOrderSkipped
	default:
		return EventOrderFailed
	}
}

// dispatch sends to every sender. One failing sender does not stop delivery
// to the others; all failures are joined into the returned error.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}
