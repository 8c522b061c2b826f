package reputation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumasweb/antispam/internal/cachestore"
)

func newTestEngine(t *testing.T) (*Engine, *MemStore) {
	t.Helper()
	store := NewMemStore()
	cache := cachestore.NewMemStore(1024, DefaultStatusTTL)
	return NewEngine(store, cache), store
}

func TestBlocked_Evaluation(t *testing.T) {
	now := time.Now()
	fresh := now.Unix()
	aged := now.Add(-25 * time.Hour).Unix()

	tests := []struct {
		name    string
		rec     Record
		blocked bool
	}{
		{"below threshold", Record{Score: 4, TTLHours: 24, LastUpdated: fresh}, false},
		{"at threshold", Record{Score: 5, TTLHours: 24, LastUpdated: fresh}, true},
		{"hard blocked below threshold", Record{Score: 1, TTLHours: 24, LastUpdated: fresh, HardBlocked: true}, true},
		{"whitelist overrides hard block", Record{Score: 99, TTLHours: 24, LastUpdated: fresh, HardBlocked: true, Whitelisted: true}, false},
		{"expired record", Record{Score: 9, TTLHours: 24, LastUpdated: aged}, false},
		{"permanent overrides expiry", Record{Score: 9, TTLHours: 24, LastUpdated: aged, Permanent: true}, true},
		{"whitelist overrides permanent", Record{Score: 9, TTLHours: 24, LastUpdated: aged, Permanent: true, Whitelisted: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.blocked, Blocked(tt.rec, now))
		})
	}
}

func TestEngine_FiveFailuresBlockTheAddress(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	for i := 1; i <= 4; i++ {
		_, err := e.RecordFailure(ctx, "203.0.113.42")
		require.NoError(t, err)
		blocked, err := e.IsBlocked(ctx, "203.0.113.42")
		require.NoError(t, err)
		assert.False(t, blocked, "score=%d", i)
	}

	_, err := e.RecordFailure(ctx, "203.0.113.42")
	require.NoError(t, err)

	blocked, err := e.IsBlocked(ctx, "203.0.113.42")
	require.NoError(t, err)
	assert.True(t, blocked)

	// All subsequent checks stay blocked.
	blocked, err = e.IsBlocked(ctx, "203.0.113.42")
	require.NoError(t, err)
	assert.True(t, blocked)
}

func TestEngine_UnknownAddressNotBlocked(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	blocked, err := e.IsBlocked(ctx, "198.51.100.7")
	require.NoError(t, err)
	assert.False(t, blocked)
}

// TestEngine_WriteInvalidatesCachedStatus pins the cache invalidation
// property: after RecordFailure the next IsBlocked reflects the updated
// record even though the previous answer is still within the cache TTL.
func TestEngine_WriteInvalidatesCachedStatus(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t)

	// Warm the cache with a "not blocked" answer at score 4.
	store.Put(Record{Address: "203.0.113.42", Score: 4, TTLHours: 24, LastUpdated: time.Now().Unix()})
	blocked, err := e.IsBlocked(ctx, "203.0.113.42")
	require.NoError(t, err)
	require.False(t, blocked)

	// The fifth failure crosses the threshold; the stale cached "0" must
	// not survive the write.
	_, err = e.RecordFailure(ctx, "203.0.113.42")
	require.NoError(t, err)

	blocked, err = e.IsBlocked(ctx, "203.0.113.42")
	require.NoError(t, err)
	assert.True(t, blocked)
}

func TestEngine_CachedStatusServedWithoutStore(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t)

	store.Put(Record{Address: "203.0.113.42", Score: 9, TTLHours: 24, LastUpdated: time.Now().Unix()})
	blocked, err := e.IsBlocked(ctx, "203.0.113.42")
	require.NoError(t, err)
	require.True(t, blocked)

	// With the answer cached, a store outage goes unnoticed.
	store.Err = errors.New("store down")
	blocked, err = e.IsBlocked(ctx, "203.0.113.42")
	require.NoError(t, err)
	assert.True(t, blocked)
}

func TestEngine_FailsOpenOnStoreError(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t)
	store.Err = errors.New("store down")

	blocked, err := e.IsBlocked(ctx, "203.0.113.42")
	require.Error(t, err)
	assert.False(t, blocked, "store outage must never report blocked")
}

func TestEngine_ExpiredBlockNotEnforcedButRecordKept(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t)

	store.Put(Record{
		Address:     "203.0.113.42",
		Score:       9,
		TTLHours:    24,
		LastUpdated: time.Now().Add(-25 * time.Hour).Unix(),
	})

	blocked, err := e.IsBlocked(ctx, "203.0.113.42")
	require.NoError(t, err)
	assert.False(t, blocked)

	// Expiry is lazy: the stale record stays in place untouched.
	rec, found, err := store.Get(ctx, "203.0.113.42")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 9, rec.Score)
}

func TestEngine_Healthy(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t)

	require.NoError(t, e.Healthy(ctx))

	store.Err = errors.New("store down")
	assert.Error(t, e.Healthy(ctx))
}

func TestCacheKey_DistinctAndStable(t *testing.T) {
	a := CacheKey("2001:db8::1")
	b := CacheKey("2001:db8::2")
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, CacheKey("2001:db8::1"))
	assert.Len(t, a, 64)
}
