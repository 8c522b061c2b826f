package reputation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Compile-time proof that BoltStore satisfies the Store interface.
var _ Store = (*BoltStore)(nil)

var bucketReputation = []byte("reputation")

// BoltStore is an ACID bbolt-backed implementation of Store. The
// load-increment-persist cycle runs inside a single bolt.Update, so
// concurrent failures for the same address cannot lose increments.
type BoltStore struct {
	db *bolt.DB
}

// Open opens (or creates) a bbolt database at path and initialises the
// reputation bucket.
func Open(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("reputation: open %s: %w", path, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketReputation)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("reputation: init bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) IncrementFailure(ctx context.Context, addr string, now time.Time) (Record, error) {
	var rec Record
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReputation)
		rec = decodeRecord(b.Get([]byte(addr)), addr)

		rec.Score++
		rec.TTLHours = TTLHours(rec.Score)
		rec.LastUpdated = now.Unix()

		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put([]byte(addr), data)
	})
	if err != nil {
		return Record{}, fmt.Errorf("reputation: increment %s: %w", addr, err)
	}
	return rec, nil
}

func (s *BoltStore) Get(ctx context.Context, addr string) (Record, bool, error) {
	var rec Record
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketReputation).Get([]byte(addr))
		if data == nil {
			return nil
		}
		found = true
		rec = decodeRecord(data, addr)
		return nil
	})
	if err != nil {
		return Record{}, false, fmt.Errorf("reputation: get %s: %w", addr, err)
	}
	return rec, found, nil
}

func (s *BoltStore) SetFlags(ctx context.Context, addr string, patch FlagPatch) (Record, error) {
	var rec Record
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketReputation)
		rec = decodeRecord(b.Get([]byte(addr)), addr)

		if patch.HardBlocked != nil {
			rec.HardBlocked = *patch.HardBlocked
		}
		if patch.Whitelisted != nil {
			rec.Whitelisted = *patch.Whitelisted
		}
		if patch.Permanent != nil {
			rec.Permanent = *patch.Permanent
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put([]byte(addr), data)
	})
	if err != nil {
		return Record{}, fmt.Errorf("reputation: set flags %s: %w", addr, err)
	}
	return rec, nil
}

// DBPath returns the filesystem path of the database file.
func (s *BoltStore) DBPath() string { return s.db.Path() }

// Close cleanly closes the underlying bbolt database.
func (s *BoltStore) Close() error { return s.db.Close() }

func decodeRecord(data []byte, addr string) Record {
	if len(data) == 0 {
		return Record{Address: addr}
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{Address: addr}
	}
	rec.Address = addr
	return rec
}
