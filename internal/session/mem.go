package session

import (
	"context"
	"sync"
)

// MemStore is an in-memory implementation of Store for single-instance
// deployments and tests.
type MemStore struct {
	mu       sync.Mutex
	sessions map[string]map[string][]byte
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates a fresh in-memory session store.
func NewMemStore() *MemStore {
	return &MemStore{sessions: make(map[string]map[string][]byte)}
}

func (m *MemStore) Get(ctx context.Context, sessionID, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, false, nil
	}
	val, ok := sess[key]
	return val, ok, nil
}

func (m *MemStore) Set(ctx context.Context, sessionID, key string, val []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		sess = make(map[string][]byte)
		m.sessions[sessionID] = sess
	}
	sess[key] = append([]byte(nil), val...)
	return nil
}
