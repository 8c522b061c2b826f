// Package cachestore provides a small TTL key-value cache with explicit
// single-key invalidation. It memoizes the per-address blocked decision and
// backs the audit throttle windows.
package cachestore

import "context"

// Store is a TTL cache. Entries expire after the store's configured TTL and
// can be purged explicitly at any time. name groups keys into namespaces so
// independent concerns cannot collide.
type Store interface {
	// Get returns the cached value and whether the key was present.
	Get(ctx context.Context, name, key string) (string, bool, error)

	// Set stores val under the store's TTL.
	Set(ctx context.Context, name, key, val string) error

	// Purge removes a single key. Purging an absent key is not an error.
	Purge(ctx context.Context, name, key string) error
}

func cacheKey(name, key string) string {
	return name + "/" + key
}
