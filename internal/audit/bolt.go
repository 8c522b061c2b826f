package audit

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Compile-time proof that BoltSink satisfies the Sink interface.
var _ Sink = (*BoltSink)(nil)

var bucketAudit = []byte("audit")

// storedEntry is the JSON shape persisted in the audit bucket.
type storedEntry struct {
	Tstamp    int64          `json:"tstamp"`
	Address   string         `json:"address"`
	Reason    string         `json:"reason"`
	FormAlias string         `json:"form_alias"`
	Details   map[string]any `json:"details,omitempty"`
}

// BoltSink is an append-only bbolt-backed audit log. Entries are keyed by
// a monotonic sequence number, so iteration order is insertion order.
type BoltSink struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) the audit database at path.
func OpenBolt(path string) (*BoltSink, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketAudit)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit: init bucket: %w", err)
	}
	return &BoltSink{db: db}, nil
}

func (s *BoltSink) Name() string { return "bolt" }

func (s *BoltSink) Record(ctx context.Context, e Entry) error {
	data, err := json.Marshal(storedEntry{
		Tstamp:    e.Time.Unix(),
		Address:   e.Address,
		Reason:    e.Reason,
		FormAlias: e.FormAlias,
		Details:   e.Details,
	})
	if err != nil {
		return fmt.Errorf("audit: encode entry: %w", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAudit)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return b.Put(key, data)
	})
	if err != nil {
		return fmt.Errorf("audit: append entry: %w", err)
	}
	return nil
}

// Recent returns up to n entries, newest first.
func (s *BoltSink) Recent(ctx context.Context, n int) ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketAudit).Cursor()
		for k, v := c.Last(); k != nil && len(entries) < n; k, v = c.Prev() {
			var st storedEntry
			if err := json.Unmarshal(v, &st); err != nil {
				continue
			}
			entries = append(entries, Entry{
				Time:      time.Unix(st.Tstamp, 0),
				Address:   st.Address,
				Reason:    st.Reason,
				FormAlias: st.FormAlias,
				Details:   st.Details,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("audit: read entries: %w", err)
	}
	return entries, nil
}

// Close cleanly closes the underlying bbolt database.
func (s *BoltSink) Close() error { return s.db.Close() }
