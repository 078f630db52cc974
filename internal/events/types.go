package events

import "time"

// Event enumerates topics inside the console.
type Event string

const (
	EventCacheInvalidated Event = "cache.invalidated"
	EventMutation         Event = "mutation"
)

// CacheInvalidation is published after query cache entries are dropped.
type CacheInvalidation struct {
	Type    Event     `json:"type"`
	Keys    []string  `json:"keys"`
	Removed int       `json:"removed"`
	At      time.Time `json:"at"`
}

// Mutation is published after an operator mutation reaches the backend.
type Mutation struct {
	Type     Event     `json:"type"`
	Action   string    `json:"action"`
	Target   string    `json:"target"`
	Operator string    `json:"operator"`
	OK       bool      `json:"ok"`
	Error    string    `json:"error,omitempty"`
	At       time.Time `json:"at"`
}
