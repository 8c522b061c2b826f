package audit

import (
	"context"
	"strconv"
	"time"

	"github.com/lumasweb/antispam/internal/cachestore"
)

const throttleName = "audit_throttle"

// Throttle suppresses repeated audit entries for the same key within a
// window, e.g. the once-per-minute "form hidden" entries while a block is
// active. Cache failures allow the entry through: logging twice beats
// silently dropping an event.
type Throttle struct {
	cache cachestore.Store
}

// NewThrottle creates a throttle over the given cache. The cache's own TTL
// should be at least as long as the largest window used.
func NewThrottle(cache cachestore.Store) *Throttle {
	return &Throttle{cache: cache}
}

// Allow reports whether an entry for key may be recorded now, and opens a
// new suppression window when it is.
func (t *Throttle) Allow(ctx context.Context, key string, window time.Duration) bool {
	now := time.Now()

	if v, ok, err := t.cache.Get(ctx, throttleName, key); err == nil && ok {
		if deadline, perr := strconv.ParseInt(v, 10, 64); perr == nil && now.Unix() < deadline {
			return false
		}
	}

	deadline := strconv.FormatInt(now.Add(window).Unix(), 10)
	_ = t.cache.Set(ctx, throttleName, key, deadline)
	return true
}
