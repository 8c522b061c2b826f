package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumasweb/antispam/internal/cachestore"
)

func newTestSink(t *testing.T) *BoltSink {
	t.Helper()
	s, err := OpenBolt(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBoltSink_RecordAndRecent(t *testing.T) {
	ctx := context.Background()
	s := newTestSink(t)
	now := time.Now()

	require.NoError(t, s.Record(ctx, Entry{
		Time:      now,
		Address:   "203.0.113.42",
		Reason:    "HONEYPOT",
		FormAlias: "contact",
		Details:   map[string]any{"uri": "/contact", "field": "message"},
	}))
	require.NoError(t, s.Record(ctx, Entry{
		Time:      now.Add(time.Second),
		Address:   "203.0.113.42",
		Reason:    "TOO_FAST",
		FormAlias: "contact",
	}))

	entries, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first.
	assert.Equal(t, "TOO_FAST", entries[0].Reason)
	assert.Equal(t, "HONEYPOT", entries[1].Reason)
	assert.Equal(t, "203.0.113.42", entries[1].Address)
	assert.Equal(t, "contact", entries[1].FormAlias)
	assert.Equal(t, "/contact", entries[1].Details["uri"])
	assert.Equal(t, now.Unix(), entries[1].Time.Unix())
}

func TestBoltSink_RecentHonorsLimit(t *testing.T) {
	ctx := context.Background()
	s := newTestSink(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Record(ctx, Entry{Time: time.Now(), Reason: "TOO_SHORT"}))
	}

	entries, err := s.Recent(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestBoltSink_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "audit.db")

	s1, err := OpenBolt(path)
	require.NoError(t, err)
	require.NoError(t, s1.Record(ctx, Entry{Time: time.Now(), Reason: "HONEYPOT"}))
	require.NoError(t, s1.Close())

	s2, err := OpenBolt(path)
	require.NoError(t, err)
	defer s2.Close()

	entries, err := s2.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestThrottle_SuppressesWithinWindow(t *testing.T) {
	ctx := context.Background()
	th := NewThrottle(cachestore.NewMemStore(64, time.Minute))

	assert.True(t, th.Allow(ctx, "sb/contact/sess-1", time.Minute))
	assert.False(t, th.Allow(ctx, "sb/contact/sess-1", time.Minute))

	// Independent keys have independent windows.
	assert.True(t, th.Allow(ctx, "sb/contact/sess-2", time.Minute))
}

func TestThrottle_ReopensAfterWindow(t *testing.T) {
	ctx := context.Background()
	th := NewThrottle(cachestore.NewMemStore(64, time.Minute))

	assert.True(t, th.Allow(ctx, "k", time.Second))
	assert.False(t, th.Allow(ctx, "k", time.Second))
	time.Sleep(1100 * time.Millisecond)
	assert.True(t, th.Allow(ctx, "k", time.Second))
}
