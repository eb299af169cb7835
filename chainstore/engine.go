package chainstore

import (
	"crypto/rand"
	"encoding/binary"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/blockvault/chainstore/codec"
	"github.com/blockvault/chainstore/kv"
)

// DefaultUTXOWindow is the number of most-recent blocks whose available
// outputs are loaded into the advisory UTXO cache on startup, absent an
// explicit Options.UTXOWindow.
const DefaultUTXOWindow = 100

// RelayPool is an external collaborator consulted by getTransaction for
// fast mempool hits before falling back to the persisted TX record.
type RelayPool interface {
	GetTransaction(hash [32]byte) (codec.Tx, bool)
}

// Options configures Engine construction.
type Options struct {
	// UTXOWindow is the number of most-recent blocks to warm the UTXO
	// cache from on startup. Zero selects DefaultUTXOWindow.
	UTXOWindow int
	// Rand supplies randomness for head-id generation. Nil selects
	// crypto/rand.Reader.
	Rand io.Reader
	// Metrics receives instrumentation. Nil installs a no-op sink.
	Metrics *Metrics
	// Relay is consulted by getTransaction before the persisted store.
	Relay RelayPool
	// Clock supplies the current unix time for peer ban-expiry checks.
	// Nil selects time.Now().Unix.
	Clock func() int64
}

// Engine is the single-writer, multi-reader chain storage engine: C3's
// cached chain index, C4's reorg/UTXO mutator, and C5's query surface,
// over a kv.Store and the codec layer.
type Engine struct {
	mu sync.RWMutex

	store      *kv.Store
	index      *chainIndex
	utxo       *utxoCache
	utxoWindow int
	rng        io.Reader
	metrics    *Metrics
	relay      RelayPool
	clock      func() int64

	// tainted is set once a write batch fails mid-commit. Per the engine's
	// error policy, a StorageFault/InconsistentStore/CodecError discovered
	// while a batch is open must not leave the engine silently writable in
	// a possibly divergent state: every further write is refused until the
	// operator reopens the Engine (which rebuilds the cached index fresh
	// from the durable store).
	tainted bool
}

// NewEngine opens an Engine over store: it rebuilds the cached chain index
// from HEAD/BLOCK records (C3) and warms the UTXO cache from the last
// UTXOWindow blocks (C4's startup refresh policy).
func NewEngine(store *kv.Store, opts Options) (*Engine, error) {
	idx, err := loadChainIndex(store)
	if err != nil {
		return nil, err
	}
	window := opts.UTXOWindow
	if window <= 0 {
		window = DefaultUTXOWindow
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.Reader
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = noopMetrics()
	}
	clock := opts.Clock
	if clock == nil {
		clock = func() int64 { return time.Now().Unix() }
	}

	e := &Engine{
		store:      store,
		index:      idx,
		utxo:       newUTXOCache(),
		utxoWindow: window,
		rng:        rng,
		metrics:    metrics,
		relay:      opts.Relay,
		clock:      clock,
	}
	if err := e.warmUTXOCache(); err != nil {
		return nil, err
	}
	return e, nil
}

// warmUTXOCache reads the BLOCK records (via kv's ScanTagReverse), orders
// them by descending height, since BLOCK keys are block hashes, and loads
// every available output of the first utxoWindow blocks into the advisory
// cache.
func (e *Engine) warmUTXOCache() error {
	entries, err := e.store.ScanTagReverse(kv.TagBlock)
	if err != nil {
		return storageErr("warm-utxo-cache", err)
	}
	blocks := make([]codec.Blk, 0, len(entries))
	for _, entry := range entries {
		blk, err := codec.DecodeBlk(entry.Value)
		if err != nil {
			return newErr(KindCodecError, "warm-utxo-cache", err)
		}
		blocks = append(blocks, blk)
	}
	sort.SliceStable(blocks, func(i, j int) bool { return blocks[i].Height > blocks[j].Height })
	n := e.utxoWindow
	if n > len(blocks) {
		n = len(blocks)
	}
	for _, blk := range blocks[:n] {
		for _, txHash := range blk.TxHashes {
			txVal, ok, err := e.store.Get(kv.TxKey(txHash))
			if err != nil {
				return storageErr("warm-utxo-cache", err)
			}
			if !ok {
				continue
			}
			tx, err := codec.DecodeTx(txVal, txHash)
			if err != nil {
				return newErr(KindCodecError, "warm-utxo-cache", err)
			}
			for i, out := range tx.Outputs {
				if out.Available {
					e.utxo.add(&tx, i)
				}
			}
		}
	}
	e.metrics.UTXOCacheSize.Set(float64(e.utxo.size()))
	return nil
}

// newHeadID draws a random 64-bit head id, retrying on collision against
// the in-memory head table. Uses the injected reader (default
// crypto/rand.Reader), never math/rand, per the engine's RNG-injection
// convention.
func (e *Engine) newHeadID() (uint64, error) {
	var buf [8]byte
	for {
		if _, err := io.ReadFull(e.rng, buf[:]); err != nil {
			return 0, storageErr("new-head-id", err)
		}
		id := binary.BigEndian.Uint64(buf[:])
		if _, exists := e.index.heads[id]; !exists {
			return id, nil
		}
	}
}
