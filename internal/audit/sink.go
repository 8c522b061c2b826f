// Package audit records anti-spam events to one or more append-only sinks.
// Sink failures never influence submission processing; callers log and
// continue.
package audit

import (
	"context"
	"time"
)

// Entry is one logged anti-spam event.
type Entry struct {
	Time      time.Time
	Address   string
	Reason    string
	FormAlias string

	// Details is a free-form payload: URI, user agent, derived email,
	// timing deltas, counters.
	Details map[string]any
}

// Sink receives audit entries and appends them to an external store.
type Sink interface {
	// Name returns the sink identifier for logging.
	Name() string

	// Record appends a single entry.
	Record(ctx context.Context, e Entry) error

	// Close performs graceful shutdown.
	Close() error
}
