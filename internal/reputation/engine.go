package reputation

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lumasweb/antispam/internal/cachestore"
)

const (
	// GlobalBlockThreshold is the score at which an address becomes
	// blocked without any explicit hard-block flag.
	GlobalBlockThreshold = 5

	// DefaultStatusTTL is the status-cache TTL in front of IsBlocked.
	DefaultStatusTTL = 300 * time.Second

	cacheName = "ipstatus"
)

// Engine combines the persistent store with the status cache. RecordFailure
// and IsBlocked are the two operations the orchestrator drives.
type Engine struct {
	store Store
	cache cachestore.Store
}

// NewEngine creates a reputation engine over the given store and status
// cache. The cache must be configured with the desired status TTL.
func NewEngine(store Store, cache cachestore.Store) *Engine {
	return &Engine{store: store, cache: cache}
}

// RecordFailure increments the address's score and invalidates the cached
// status before returning, so the write is immediately visible within this
// process. Called on every classifier failure regardless of enforcement.
func (e *Engine) RecordFailure(ctx context.Context, addr string) (Record, error) {
	rec, err := e.store.IncrementFailure(ctx, addr, time.Now())
	if err != nil {
		return Record{}, err
	}
	if err := e.cache.Purge(ctx, cacheName, CacheKey(addr)); err != nil {
		return rec, fmt.Errorf("reputation: purge status cache for %s: %w", addr, err)
	}
	return rec, nil
}

// IsBlocked reports whether the address is globally blocked, consulting the
// status cache first. Store errors are returned alongside a false decision:
// an infrastructure outage must fail open, never lock out all traffic.
func (e *Engine) IsBlocked(ctx context.Context, addr string) (bool, error) {
	key := CacheKey(addr)

	if v, ok, err := e.cache.Get(ctx, cacheName, key); err == nil && ok {
		return v == "1", nil
	} else if err != nil {
		log.Warn().Err(err).Str("address", addr).Msg("status cache read failed")
	}

	rec, found, err := e.store.Get(ctx, addr)
	if err != nil {
		return false, fmt.Errorf("reputation: evaluate %s: %w", addr, err)
	}

	blocked := found && Blocked(rec, time.Now())

	val := "0"
	if blocked {
		val = "1"
	}
	if err := e.cache.Set(ctx, cacheName, key, val); err != nil {
		log.Warn().Err(err).Str("address", addr).Msg("status cache write failed")
	}

	return blocked, nil
}

// Healthy reports whether the persistent store is reachable.
func (e *Engine) Healthy(ctx context.Context) error {
	_, _, err := e.store.Get(ctx, "healthcheck-probe")
	return err
}

// Blocked evaluates a record at the given instant without consulting any
// cache. The whitelist flag overrides everything; the permanent flag
// overrides TTL expiry; otherwise an aged-out record is treated as not
// blocked while being left in place.
func Blocked(rec Record, now time.Time) bool {
	if rec.Whitelisted {
		return false
	}
	if rec.Permanent {
		return true
	}
	if rec.LastUpdated > 0 && now.Unix()-rec.LastUpdated > int64(rec.TTLHours)*3600 {
		return false
	}
	return rec.HardBlocked || rec.Score >= GlobalBlockThreshold
}
