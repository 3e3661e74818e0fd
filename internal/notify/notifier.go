// Package notify carries alert events from the evaluation pipeline to
// whatever transport dispatches them. Delivery semantics beyond the process
// boundary (paging, chat, queues) are intentionally out of scope.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/samijaber1/aegis-gate/internal/burn"
)

// Notifier receives alert events. Emission is at-least-once; implementations
// that need exactly-once must deduplicate on the event ID.
type Notifier interface {
	Notify(ctx context.Context, events []burn.AlertEvent) error
}

// LogNotifier writes alert events to the structured log. It doubles as the
// default sink when no external transport is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier logging through the given logger.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("alerts")}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(ctx context.Context, events []burn.AlertEvent) error {
	for _, event := range events {
		n.logger.Warn("burn rate alert transition",
			zap.String("event_id", event.ID),
			zap.String("service", event.Service),
			zap.String("slo", event.SLOName),
			zap.String("rule", event.Rule),
			zap.String("severity", string(event.Severity)),
			zap.String("transition", string(event.Transition)),
			zap.Float64("short_burn", event.ShortBurn),
			zap.Float64("long_burn", event.LongBurn),
			zap.Time("at", event.Timestamp),
		)
	}
	return nil
}

// Fanout dispatches each batch to every registered notifier. A failing sink
// does not stop the others; the first error is returned.
type Fanout struct {
	sinks []Notifier
}

// NewFanout composes the given notifiers.
func NewFanout(sinks ...Notifier) *Fanout {
	return &Fanout{sinks: sinks}
}

// Notify implements Notifier.
func (f *Fanout) Notify(ctx context.Context, events []burn.AlertEvent) error {
	var firstErr error
	for _, sink := range f.sinks {
		if err := sink.Notify(ctx, events); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
