package journal

import (
	"context"
	"time"
)

// Journal records session history.
type Journal interface {
	Record(ctx context.Context, entry *Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

// Repository stores entries.
type Repository interface {
	Record(entry *Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

// Entry is one journaled event. Optional fields are nil when the event
// does not carry them.
type Entry struct {
	ID        int64     `json:"id"`
	Time      time.Time `json:"time"`
	Type      string    `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	State     string    `json:"lock_state,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Smoothed  *float64  `json:"smoothed,omitempty"`
	Failures  int       `json:"failures,omitempty"`
	Error     string    `json:"error,omitempty"`
	Radio     string    `json:"radio,omitempty"`
}
