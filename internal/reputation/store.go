// Package reputation maintains the persistent per-address failure record
// and decides whether an address is globally blocked. The score only ever
// grows; the block TTL escalates with it and expiry is evaluated lazily on
// each check, never by deleting records.
package reputation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Record is one per-address reputation row.
type Record struct {
	Address     string `json:"address"`
	Score       int    `json:"score"`
	TTLHours    int    `json:"ttl_hours"`
	LastUpdated int64  `json:"last_updated"` // unix seconds of the last increment

	HardBlocked bool `json:"hard_blocked"`
	Whitelisted bool `json:"whitelisted"`
	Permanent   bool `json:"permanent"`
}

// FlagPatch updates the administrative override flags of a record. Nil
// fields are left unchanged.
type FlagPatch struct {
	HardBlocked *bool
	Whitelisted *bool
	Permanent   *bool
}

// Store is the persistence abstraction for reputation records.
// Implementations must be safe for concurrent use.
type Store interface {
	// IncrementFailure increments the address's score by one and recomputes
	// the TTL in a single atomic operation, creating the record on first
	// failure. Concurrent calls for the same address must not lose
	// increments.
	IncrementFailure(ctx context.Context, addr string, now time.Time) (Record, error)

	// Get returns the record for addr and whether one exists.
	Get(ctx context.Context, addr string) (Record, bool, error)

	// SetFlags applies administrative overrides, creating the record if
	// necessary.
	SetFlags(ctx context.Context, addr string, patch FlagPatch) (Record, error)

	Close() error
}

// CacheKey derives the status-cache key for an address. The hash keeps keys
// collision-free and store-safe for any address representation.
func CacheKey(addr string) string {
	sum := sha256.Sum256([]byte(addr))
	return hex.EncodeToString(sum[:])
}
