package chainstore

import (
	"sync"

	"github.com/blockvault/chainstore/codec"
)

// utxoCache is the advisory in-memory mirror of recently-applied unspent
// outputs, keyed by outpoint and holding a pointer to the owning Tx so a
// spend lookup can mutate and persist it without first re-reading it from
// disk. A miss is routine, not an error: findSourceTx falls back to the
// persisted Tx on one.
type utxoCache struct {
	mu      sync.Mutex
	entries map[codec.TxOutPoint]*codec.Tx
}

func newUTXOCache() *utxoCache {
	return &utxoCache{entries: make(map[codec.TxOutPoint]*codec.Tx)}
}

// add registers tx.Outputs[index] as available, under tx's pointer so a
// later lookup can flip its Available field and persist tx directly.
func (c *utxoCache) add(tx *codec.Tx, index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := tx.Outputs[index]
	c.entries[codec.TxOutPoint{TxHash: out.TxHash, Index: out.Index}] = tx
}

func (c *utxoCache) remove(point codec.TxOutPoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, point)
}

func (c *utxoCache) lookup(point codec.TxOutPoint) (*codec.Tx, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tx, ok := c.entries[point]
	return tx, ok
}

func (c *utxoCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
