package reputation

import (
	"context"
	"sync"
	"time"
)

// MemStore is an in-memory implementation of Store for use in unit tests.
// It is exported so that engine tests can run without a file on disk.
type MemStore struct {
	mu      sync.Mutex
	records map[string]Record

	// Err, when set, is returned by every method. Used to exercise the
	// fail-open paths.
	Err error
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates a fresh in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string]Record)}
}

func (m *MemStore) IncrementFailure(ctx context.Context, addr string, now time.Time) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return Record{}, m.Err
	}
	rec := m.records[addr]
	rec.Address = addr
	rec.Score++
	rec.TTLHours = TTLHours(rec.Score)
	rec.LastUpdated = now.Unix()
	m.records[addr] = rec
	return rec, nil
}

func (m *MemStore) Get(ctx context.Context, addr string) (Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return Record{}, false, m.Err
	}
	rec, ok := m.records[addr]
	return rec, ok, nil
}

func (m *MemStore) SetFlags(ctx context.Context, addr string, patch FlagPatch) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return Record{}, m.Err
	}
	rec := m.records[addr]
	rec.Address = addr
	if patch.HardBlocked != nil {
		rec.HardBlocked = *patch.HardBlocked
	}
	if patch.Whitelisted != nil {
		rec.Whitelisted = *patch.Whitelisted
	}
	if patch.Permanent != nil {
		rec.Permanent = *patch.Permanent
	}
	m.records[addr] = rec
	return rec, nil
}

// Put overwrites a record directly, bypassing the increment path. Test
// helper for fabricating aged or flagged records.
func (m *MemStore) Put(rec Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.Address] = rec
}

// Close is a no-op for the in-memory store.
func (m *MemStore) Close() error { return nil }
