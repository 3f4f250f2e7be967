package history

import (
	"encoding/binary"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("command_history")

// Bolt is a History persisted in a bbolt database.
//
// Each command id is a key whose value is a big-endian sequence number taken
// from the bucket sequence, so the most recent execution has the highest
// value. Entries beyond the capacity are evicted oldest first on Add.
type Bolt struct {
	db       *bolt.DB
	maxItems int
}

// OpenBolt opens (creating if needed) the history database at path.
func OpenBolt(path string, maxItems int) (*Bolt, error) {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening history %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing history %s: %w", path, err)
	}

	return &Bolt{db: db, maxItems: maxItems}, nil
}

// Add records a command execution.
func (h *Bolt) Add(id string) error {
	return h.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], seq)
		if err := b.Put([]byte(id), buf[:]); err != nil {
			return err
		}
		return h.evict(b)
	})
}

func (h *Bolt) evict(b *bolt.Bucket) error {
	entries := readEntries(b)
	if len(entries) <= h.maxItems {
		return nil
	}
	for _, e := range entries[h.maxItems:] {
		if err := b.Delete([]byte(e.id)); err != nil {
			return err
		}
	}
	return nil
}

// Recent returns the most recently used command IDs.
func (h *Bolt) Recent(limit int) ([]string, error) {
	var out []string
	err := h.db.View(func(tx *bolt.Tx) error {
		entries := readEntries(tx.Bucket(bucketName))
		if limit <= 0 || limit > len(entries) {
			limit = len(entries)
		}
		out = make([]string, limit)
		for i := range out {
			out[i] = entries[i].id
		}
		return nil
	})
	return out, err
}

// Clear removes all history entries.
func (h *Bolt) Clear() error {
	return h.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketName); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketName)
		return err
	})
}

// Close closes the underlying database.
func (h *Bolt) Close() error {
	return h.db.Close()
}

type entry struct {
	id  string
	seq uint64
}

// readEntries returns the bucket contents, most recent first.
func readEntries(b *bolt.Bucket) []entry {
	var entries []entry
	_ = b.ForEach(func(k, v []byte) error {
		if len(v) != 8 {
			return nil
		}
		entries = append(entries, entry{id: string(k), seq: binary.BigEndian.Uint64(v)})
		return nil
	})
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq > entries[j].seq })
	return entries
}
