package monitor

import (
	"log/slog"
	"sync"
)

// AlertSink interface for pluggable alert delivery.
type AlertSink interface {
	Send(message string) error
}

// LogSink writes alerts to a structured logger at warn level.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Send(message string) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("console alert", "message", message)
	return nil
}

// MemorySink keeps the most recent alerts for /api/alerts.
type MemorySink struct {
	mu     sync.Mutex
	limit  int
	alerts []string
}

func NewMemorySink(limit int) *MemorySink {
	if limit <= 0 {
		limit = 50
	}
	return &MemorySink{limit: limit}
}

func (s *MemorySink) Send(message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, message)
	if len(s.alerts) > s.limit {
		s.alerts = s.alerts[len(s.alerts)-s.limit:]
	}
	return nil
}

// Recent returns a copy of the buffered alerts, oldest first.
func (s *MemorySink) Recent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.alerts))
	copy(out, s.alerts)
	return out
}

// MultiSink fans an alert out to every sink and returns the first error.
type MultiSink []AlertSink

func (m MultiSink) Send(message string) error {
	var first error
	for _, s := range m {
		if err := s.Send(message); err != nil && first == nil {
			first = err
		}
	}
	return first
}
