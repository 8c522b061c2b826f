package cachestore

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemStore is an in-process implementation of Store backed by an expiring
// LRU. Suitable for single-instance deployments and tests.
type MemStore struct {
	data *expirable.LRU[string, string]
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates an in-process cache holding up to capacity entries,
// each expiring after ttl.
func NewMemStore(capacity int, ttl time.Duration) *MemStore {
	return &MemStore{
		data: expirable.NewLRU[string, string](capacity, nil, ttl),
	}
}

func (s *MemStore) Get(ctx context.Context, name, key string) (string, bool, error) {
	v, ok := s.data.Get(cacheKey(name, key))
	return v, ok, nil
}

func (s *MemStore) Set(ctx context.Context, name, key, val string) error {
	s.data.Add(cacheKey(name, key), val)
	return nil
}

func (s *MemStore) Purge(ctx context.Context, name, key string) error {
	s.data.Remove(cacheKey(name, key))
	return nil
}
