// Package notify delivers booking lifecycle alerts to clients and agents.
// Delivery is best-effort: the settlement engine logs failures and moves on.
package notify

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"inspekta/internal/settlement"
)

// LogNotifier writes notifications to the structured log. It is the default
// sink in development and the fallback when no broker is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, msg settlement.Notification) error {
	n.logger.InfoContext(ctx, "booking notification",
		"kind", string(msg.Kind),
		"booking_id", msg.BookingID.String(),
		"client", string(msg.ClientRef),
		"agent", string(msg.AgentRef),
		"property", string(msg.PropertyRef),
		"inspection_at", msg.InspectionAt,
	)
	return nil
}

// Multi fans a notification out to several sinks concurrently and reports
// the first failure. A failing sink does not stop the others.
type Multi struct {
	sinks []settlement.Notifier
}

func NewMulti(sinks ...settlement.Notifier) *Multi {
	return &Multi{sinks: sinks}
}

func (m *Multi) Notify(ctx context.Context, msg settlement.Notification) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, sink := range m.sinks {
		g.Go(func() error {
			return sink.Notify(ctx, msg)
		})
	}
	return g.Wait()
}
