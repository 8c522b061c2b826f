// Package session tracks per-(form, session) strike state and temporary
// blocks on top of a host-provided key-value session store.
package session

import "context"

// Store is the external key-value store scoped per browser session. The
// host environment owns session lifetime; this engine only reads and
// writes values under its own keys.
type Store interface {
	Get(ctx context.Context, sessionID, key string) ([]byte, bool, error)
	Set(ctx context.Context, sessionID, key string, val []byte) error
}
