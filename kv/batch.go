package kv

import (
	"encoding/hex"

	bolt "go.etcd.io/bbolt"
)

// pendingEntry is one write buffered in an open batch, keyed by the
// hex-encoding of its key so the batch's write-through read cache can
// serve a logical operation its own uncommitted writes.
type pendingEntry struct {
	value   []byte
	deleted bool
}

// Batch is a scoped handle on a single atomic group of writes. It is
// acquired from a Store with OpenBatch and must be released on every exit
// path by exactly one of Commit or Cancel.
type Batch struct {
	store   *Store
	pending map[string]*pendingEntry
	done    bool
}

// OpenBatch begins a new batch. Only one batch may be open per Store at a
// time; a second OpenBatch call fails until the first is committed or
// cancelled.
func (s *Store) OpenBatch() (*Batch, error) {
	if err := s.beginBatch(); err != nil {
		return nil, err
	}
	return &Batch{store: s, pending: make(map[string]*pendingEntry)}, nil
}

// Put buffers a write. It is visible to subsequent Get calls on this batch
// immediately, but not to any other reader until Commit.
func (b *Batch) Put(key, val []byte) {
	b.pending[hex.EncodeToString(key)] = &pendingEntry{value: clone(val)}
}

// Delete buffers a deletion.
func (b *Batch) Delete(key []byte) {
	b.pending[hex.EncodeToString(key)] = &pendingEntry{deleted: true}
}

// Get reads through the batch's own pending writes before falling back to
// the underlying store, so a logical operation observes its own
// uncommitted writes consistently.
func (b *Batch) Get(key []byte) ([]byte, bool, error) {
	if pe, ok := b.pending[hex.EncodeToString(key)]; ok {
		if pe.deleted {
			return nil, false, nil
		}
		return clone(pe.value), true, nil
	}
	return b.store.Get(key)
}

// Commit flushes every buffered write atomically and releases the batch
// slot. On failure the batch slot is still released (the caller must
// reopen); per the engine's error policy a commit failure is surfaced as a
// StorageFault and the caller refuses further writes until it reopens.
func (b *Batch) Commit() error {
	if b.done {
		return nil
	}
	defer b.release()
	err := b.store.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(rootBucket)
		for hexKey, pe := range b.pending {
			key, derr := hex.DecodeString(hexKey)
			if derr != nil {
				return derr
			}
			if pe.deleted {
				if err := bkt.Delete(key); err != nil {
					return err
				}
				continue
			}
			if err := bkt.Put(key, pe.value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return faultf("batch-commit", err)
	}
	return nil
}

// Cancel discards every buffered write without touching the store.
func (b *Batch) Cancel() {
	if b.done {
		return
	}
	b.release()
}

func (b *Batch) release() {
	b.done = true
	b.store.endBatch()
}
