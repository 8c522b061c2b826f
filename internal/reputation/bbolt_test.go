package reputation

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "reputation.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBoltStore_FirstFailureCreatesRecord(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now()

	rec, err := s.IncrementFailure(ctx, "203.0.113.42", now)
	require.NoError(t, err)

	assert.Equal(t, "203.0.113.42", rec.Address)
	assert.Equal(t, 1, rec.Score)
	assert.Equal(t, 24, rec.TTLHours)
	assert.Equal(t, now.Unix(), rec.LastUpdated)
	assert.False(t, rec.HardBlocked)
	assert.False(t, rec.Whitelisted)
	assert.False(t, rec.Permanent)
}

func TestBoltStore_ScoreIsMonotonic(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i := 1; i <= 12; i++ {
		rec, err := s.IncrementFailure(ctx, "203.0.113.42", time.Now())
		require.NoError(t, err)
		assert.Equal(t, i, rec.Score)
		assert.Equal(t, TTLHours(i), rec.TTLHours)
	}
}

func TestBoltStore_GetMissingRecord(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, found, err := s.Get(ctx, "203.0.113.42")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestBoltStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reputation.db")

	s1, err := Open(path)
	require.NoError(t, err)
	_, err = s1.IncrementFailure(ctx, "203.0.113.42", time.Now())
	require.NoError(t, err)
	_, err = s1.IncrementFailure(ctx, "203.0.113.42", time.Now())
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	rec, found, err := s2.Get(ctx, "203.0.113.42")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2, rec.Score)
}

func TestBoltStore_SetFlags(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	on := true
	off := false

	rec, err := s.SetFlags(ctx, "203.0.113.42", FlagPatch{Whitelisted: &on})
	require.NoError(t, err)
	assert.True(t, rec.Whitelisted)
	assert.Equal(t, 0, rec.Score)

	// Increments keep the flag.
	rec, err = s.IncrementFailure(ctx, "203.0.113.42", time.Now())
	require.NoError(t, err)
	assert.True(t, rec.Whitelisted)
	assert.Equal(t, 1, rec.Score)

	// A nil field leaves the flag untouched.
	rec, err = s.SetFlags(ctx, "203.0.113.42", FlagPatch{HardBlocked: &on})
	require.NoError(t, err)
	assert.True(t, rec.Whitelisted)
	assert.True(t, rec.HardBlocked)

	rec, err = s.SetFlags(ctx, "203.0.113.42", FlagPatch{Whitelisted: &off})
	require.NoError(t, err)
	assert.False(t, rec.Whitelisted)
	assert.True(t, rec.HardBlocked)
}

// TestBoltStore_ConcurrentIncrements drives parallel failures for one
// address and confirms no increment is lost: the load-modify-persist cycle
// must be atomic, not a read-then-write.
func TestBoltStore_ConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	const workers = 8
	const perWorker = 10

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_, err := s.IncrementFailure(ctx, "203.0.113.42", time.Now())
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	rec, found, err := s.Get(ctx, "203.0.113.42")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, workers*perWorker, rec.Score)
	assert.Equal(t, TTLHours(workers*perWorker), rec.TTLHours)
}

func TestBoltStore_IPv6Addresses(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.IncrementFailure(ctx, "2001:db8::1", time.Now())
	require.NoError(t, err)

	rec, found, err := s.Get(ctx, "2001:db8::1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 1, rec.Score)

	_, found, err = s.Get(ctx, "2001:db8::2")
	require.NoError(t, err)
	assert.False(t, found)
}
