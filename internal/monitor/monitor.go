package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"risk-console/internal/events"
)

// Monitor watches console events, feeds metrics and raises alerts for
// failed operator mutations.
type Monitor struct {
	Bus     *events.Bus
	Sink    AlertSink
	Metrics *ConsoleMetrics
	Logger  *slog.Logger
}

// Start subscribes before returning so no event published afterwards is missed.
func (m *Monitor) Start(ctx context.Context) {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if m.Bus == nil {
		logger.Warn("monitor not fully configured; skipping")
		return
	}
	stream, unsub := m.Bus.Subscribe(50, events.EventMutation, events.EventCacheInvalidated)
	go func() {
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-stream:
				if !ok {
					return
				}
				m.handle(logger, msg)
			}
		}
	}()
}

func (m *Monitor) handle(logger *slog.Logger, msg any) {
	switch ev := msg.(type) {
	case events.Mutation:
		if m.Metrics != nil {
			m.Metrics.RecordMutation(ev.OK)
		}
		if ev.OK || m.Sink == nil {
			return
		}
		if err := m.Sink.Send(formatAlert(ev)); err != nil {
			logger.Error("alert delivery failed", "action", ev.Action, "error", err)
		}
	case events.CacheInvalidation:
		if m.Metrics != nil {
			m.Metrics.IncrementInvalidations()
		}
		logger.Debug("cache invalidated", "keys", ev.Keys, "removed", ev.Removed)
	}
}

func formatAlert(ev events.Mutation) string {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	operator := ev.Operator
	if operator == "" {
		operator = "anonymous"
	}
	return fmt.Sprintf("[%s] %s on %s by %s failed: %s",
		at.Format(time.RFC3339), ev.Action, ev.Target, operator, ev.Error)
}
