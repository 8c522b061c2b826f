package session

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strconv"
	"sync"
	"time"
)

// DefaultAllowance is the number of failed submissions a session may
// accumulate before a block takes effect on the next one.
const DefaultAllowance = 2

const (
	stateKeyPrefix = "antispam_state_"
	startKeyPrefix = "antispam_start_"
)

// State is the strike state for one (form, session) pair.
type State struct {
	InvalidCount int    `json:"invalid_count"`
	BlockedAt    int64  `json:"blocked_at"` // unix seconds, 0 = no active block
	LastMarker   string `json:"last_marker"`
}

// Tracker is the per-session strike state machine. Read-modify-write
// cycles are serialized per session with striped mutexes, so concurrent
// requests from the same session (multiple tabs) cannot lose strikes even
// when the host does not serialize them.
type Tracker struct {
	store     Store
	allowance int
	locks     [64]sync.Mutex
}

// NewTracker creates a tracker over the given session store. A negative
// allowance falls back to DefaultAllowance.
func NewTracker(store Store, allowance int) *Tracker {
	if allowance < 0 {
		allowance = DefaultAllowance
	}
	return &Tracker{store: store, allowance: allowance}
}

func (t *Tracker) lock(sessionID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return &t.locks[h.Sum32()%uint32(len(t.locks))]
}

// Blocked reports whether the session holds an active block for formKey at
// the given instant. A block whose duration has elapsed is reset to a
// clean state as a side effect; an active block is never mutated.
func (t *Tracker) Blocked(ctx context.Context, sessionID, formKey string, now time.Time, duration time.Duration) (bool, time.Duration, State, error) {
	mu := t.lock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	st, err := t.getState(ctx, sessionID, formKey)
	if err != nil {
		return false, 0, State{}, err
	}
	if st.BlockedAt == 0 {
		return false, 0, st, nil
	}

	age := time.Duration(now.Unix()-st.BlockedAt) * time.Second
	if age < duration {
		return true, duration - age, st, nil
	}

	// Duration elapsed: back to Clean.
	if err := t.putState(ctx, sessionID, formKey, State{}); err != nil {
		return false, 0, State{}, err
	}
	return false, 0, State{}, nil
}

// RecordFailure counts one failed classification against the session. The
// marker deduplicates repeated validation passes of the same POST: a
// failure is only counted when the marker differs from the last counted
// one. blockedNow is true when this failure is the one that newly sets the
// block.
func (t *Tracker) RecordFailure(ctx context.Context, sessionID, formKey, marker string, now time.Time) (st State, counted, blockedNow bool, err error) {
	mu := t.lock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	st, err = t.getState(ctx, sessionID, formKey)
	if err != nil {
		return State{}, false, false, err
	}
	if st.LastMarker == marker {
		return st, false, false, nil
	}

	st.InvalidCount++
	st.LastMarker = marker

	if st.InvalidCount > t.allowance && st.BlockedAt == 0 {
		st.BlockedAt = now.Unix()
		blockedNow = true
	}

	if err := t.putState(ctx, sessionID, formKey, st); err != nil {
		return State{}, false, false, err
	}
	return st, true, blockedNow, nil
}

// MarkStart records now as the form instance's start time, only if none is
// recorded yet. Re-renders must never overwrite an existing start time.
func (t *Tracker) MarkStart(ctx context.Context, sessionID, formKey string, now time.Time) error {
	mu := t.lock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	key := startKeyPrefix + formKey
	if _, ok, err := t.store.Get(ctx, sessionID, key); err != nil {
		return fmt.Errorf("session: read start time: %w", err)
	} else if ok {
		return nil
	}
	if err := t.store.Set(ctx, sessionID, key, []byte(strconv.FormatInt(now.Unix(), 10))); err != nil {
		return fmt.Errorf("session: write start time: %w", err)
	}
	return nil
}

// StartTime returns the recorded start time for the form instance, if any.
func (t *Tracker) StartTime(ctx context.Context, sessionID, formKey string) (time.Time, bool, error) {
	data, ok, err := t.store.Get(ctx, sessionID, startKeyPrefix+formKey)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("session: read start time: %w", err)
	}
	if !ok {
		return time.Time{}, false, nil
	}
	secs, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}, false, nil
	}
	return time.Unix(secs, 0), true, nil
}

func (t *Tracker) getState(ctx context.Context, sessionID, formKey string) (State, error) {
	data, ok, err := t.store.Get(ctx, sessionID, stateKeyPrefix+formKey)
	if err != nil {
		return State{}, fmt.Errorf("session: read state: %w", err)
	}
	if !ok {
		return State{}, nil
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, nil
	}
	return st, nil
}

func (t *Tracker) putState(ctx context.Context, sessionID, formKey string, st State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("session: encode state: %w", err)
	}
	if err := t.store.Set(ctx, sessionID, stateKeyPrefix+formKey, data); err != nil {
		return fmt.Errorf("session: write state: %w", err)
	}
	return nil
}
