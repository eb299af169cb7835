package chainstore

import (
	"math/big"

	"github.com/blockvault/chainstore/codec"
	"github.com/blockvault/chainstore/kv"
)

// InsertBlock is the Chain Mutator / UTXO Engine entry point (C4). blk must
// carry its full transactions (blk.Txs); Hash, each Tx's Hash, and
// TxHashes are (re)derived here regardless of what the caller set, since
// they are derived fields per the codec layer.
//
// Outcomes, per spec: the block either extends the current head, extends
// a non-current (side) head — possibly triggering a reorg if that side
// head's chain-work now exceeds the current head's — or creates a new
// head forked off an interior block of an existing chain.
func (e *Engine) InsertBlock(blk codec.Blk) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.tainted {
		return newErrf(KindStorageFault, "insert-block", "engine refuses further writes after a prior commit failure; reopen to continue")
	}
	if len(blk.Txs) == 0 {
		return newErrf(KindInconsistentStore, "insert-block", "block must carry at least a coinbase transaction")
	}

	blk.Hash = codec.BlockHash(blk)
	txHashes := make([][32]byte, len(blk.Txs))
	for i, tx := range blk.Txs {
		tx.BlockHash = blk.Hash
		tx.Hash = codec.TxHash(*tx)
		for oi := range tx.Outputs {
			tx.Outputs[oi].TxHash = tx.Hash
			tx.Outputs[oi].Index = uint32(oi) // #nosec G115 -- output count is bounded well under 2^32 by upstream validation.
		}
		txHashes[i] = tx.Hash
	}
	blk.TxHashes = txHashes

	blockWork, err := workFromTarget(blk.Target)
	if err != nil {
		return err
	}

	isGenesis := blk.PrevHash == ([32]byte{}) && len(e.index.blocksByHash) == 0

	const (
		outcomeGenesis = iota
		outcomeExtendCurrent
		outcomeExtendSide
		outcomeNewHead
	)

	var (
		headID        uint64
		chainWork     *big.Int
		outcome       int
		forkHeadID    uint64
		forkHasPrev   bool
		currentBefore *big.Int
	)

	if cur, ok := e.index.currentHead(); ok {
		currentBefore = cur.ChainWork
	} else {
		currentBefore = big.NewInt(-1) // no current head yet: anything beats it
	}

	if isGenesis {
		id, err := e.newHeadID()
		if err != nil {
			return err
		}
		headID = id
		chainWork = blockWork
		blk.Height = 0
		outcome = outcomeGenesis
	} else {
		parent, ok := e.index.locate(blk.PrevHash)
		if !ok {
			return newErrf(KindInconsistentStore, "insert-block", "parent block %x not present", blk.PrevHash)
		}
		blk.Height = parent.Height + 1
		chainWork = new(big.Int).Add(parent.ChainWork, blockWork)
		parentHead, ok := e.index.heads[parent.HeadID]
		if !ok {
			return newErrf(KindInconsistentStore, "insert-block", "parent head %d missing from index", parent.HeadID)
		}
		if parentHead.Last != nil && parentHead.Last.Hash == parent.Hash {
			headID = parent.HeadID
			if parent.HeadID == e.index.current {
				outcome = outcomeExtendCurrent
			} else {
				outcome = outcomeExtendSide
			}
		} else {
			id, err := e.newHeadID()
			if err != nil {
				return err
			}
			headID = id
			outcome = outcomeNewHead
			forkHeadID = parentHead.ID
			forkHasPrev = true
		}
	}
	blk.HeadID = headID

	batch, err := e.store.OpenBatch()
	if err != nil {
		return storageErr("insert-block", err)
	}
	committed := false
	defer func() {
		if !committed {
			batch.Cancel()
			e.metrics.BatchCancels.Inc()
			if err != nil {
				// Per the engine's error policy, a fault discovered mid-batch
				// must not leave the engine silently writable in a possibly
				// divergent state: refuse further writes until reopened.
				e.tainted = true
			}
		}
	}()

	if err := e.persistNewBlock(batch, blk); err != nil {
		return err
	}

	switch outcome {
	case outcomeGenesis, outcomeExtendCurrent:
		if err := e.forwardApplyBlock(batch, blk.TxHashes); err != nil {
			return err
		}
	case outcomeExtendSide, outcomeNewHead:
		// A side/forked head's blocks are persisted but not applied to the
		// live UTXO/ATX state: that state reflects only the current head.
		// They are applied retroactively below if this makes the head win.
	}

	hasPrev, prevHeadID := forkHasPrev, forkHeadID
	if existing, ok := e.index.heads[headID]; ok {
		// Updating an already-known head (extend-current/extend-side):
		// its previous-head pointer is fixed at creation and must survive
		// this chain-work/height update unchanged.
		hasPrev, prevHeadID = existing.HasPrev, existing.PrevHeadID
	}
	headEnc, err := codec.EncodeHead(codec.Head{
		ID: headID, ChainWork: chainWork, Height: blk.Height,
		HasPrev: hasPrev, PrevHeadID: prevHeadID,
	})
	if err != nil {
		return newErr(KindCodecError, "insert-block", err)
	}
	batch.Put(kv.HeadKey(headID), headEnc)

	reorged := false
	if outcome == outcomeExtendSide || outcome == outcomeNewHead {
		if chainWork.Cmp(currentBefore) > 0 {
			// reorgSwitch's LCA walk needs blk itself locatable in the index
			// before it runs; addBlock below (post-commit) would be too late.
			// Installed provisionally here — if the commit below fails, the
			// engine is tainted and refuses further writes until reopened,
			// which rebuilds the index fresh from disk, so this provisional
			// entry never outlives a failed commit in practice.
			e.index.blocksByHash[blk.Hash] = &CachedBlock{
				Hash: blk.Hash, PrevHash: blk.PrevHash, HeadID: headID,
				CreateTime: blk.CreateTime, Height: blk.Height, ChainWork: chainWork,
			}
			if err := e.reorgSwitch(batch, headID, blk.Hash); err != nil {
				return err
			}
			reorged = true
		}
	}

	if err := batch.Commit(); err != nil {
		return storageErr("insert-block-commit", err)
	}
	committed = true
	e.metrics.BatchCommits.Inc()

	// Only now is the in-memory index/UTXO state made authoritative; a
	// commit failure above returns before this point so the engine's
	// cached view never diverges from what's durable. (A failure there
	// instead sets e.tainted and the caller must reopen, which rebuilds
	// the index from disk from scratch — see the Engine.tainted field.)
	switch outcome {
	case outcomeGenesis:
		e.index.heads[headID] = &CachedHead{ID: headID, ChainWork: chainWork, Height: 0}
		e.index.current = headID
	case outcomeExtendCurrent:
		head := e.index.heads[headID]
		head.ChainWork = chainWork
		head.Height = blk.Height
	case outcomeExtendSide:
		head := e.index.heads[headID]
		head.ChainWork = chainWork
		head.Height = blk.Height
	case outcomeNewHead:
		e.index.heads[headID] = &CachedHead{
			ID: headID, ChainWork: chainWork, Height: blk.Height,
			HasPrev: true, PrevHeadID: forkHeadID,
		}
	}
	e.index.addBlock(blk, headID, chainWork)
	if reorged {
		e.index.current = headID
	}
	e.metrics.BlocksInserted.Inc()
	e.metrics.UTXOCacheSize.Set(float64(e.utxo.size()))
	return nil
}

// persistNewBlock writes the block and its transactions exactly once, on
// first insertion. Outputs start Available=false; forwardApplyBlock flips
// them true for whichever branch is actually current.
func (e *Engine) persistNewBlock(batch *kv.Batch, blk codec.Blk) error {
	for _, tx := range blk.Txs {
		for oi := range tx.Outputs {
			tx.Outputs[oi].Owners = codec.OwnersFromScript(tx.Outputs[oi].Script)
			tx.Outputs[oi].Available = false
		}
		batch.Put(kv.TxKey(tx.Hash), codec.EncodeTx(*tx))
	}
	batch.Put(kv.BlockKey(blk.Hash), codec.EncodeBlk(blk))
	return nil
}

// forwardApplyBlock applies every transaction of a block, in wire order.
func (e *Engine) forwardApplyBlock(batch *kv.Batch, txHashes [][32]byte) error {
	for _, h := range txHashes {
		if err := e.forwardApplyTx(batch, h); err != nil {
			return err
		}
	}
	return nil
}

// backwardApplyBlock applies the inverse of a block's transactions, in
// reverse transaction order.
func (e *Engine) backwardApplyBlock(batch *kv.Batch, txHashes [][32]byte) error {
	for i := len(txHashes) - 1; i >= 0; i-- {
		if err := e.backwardApplyTx(batch, txHashes[i]); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) forwardApplyTx(batch *kv.Batch, txHash [32]byte) error {
	tx, err := e.loadTx(batch, txHash)
	if err != nil {
		return err
	}
	owners := make(map[string]struct{})
	for i := range tx.Outputs {
		tx.Outputs[i].Available = true
		e.utxo.add(&tx, i)
		collectOwners(owners, tx.Outputs[i].Owners)
	}
	for _, in := range tx.Inputs {
		if in.IsCoinbase() {
			continue
		}
		point := codec.TxOutPoint{TxHash: in.SourceTxHash, Index: in.SourceIndex}
		srcTx, err := e.findSourceTx(batch, point)
		if err != nil {
			return err
		}
		if int(in.SourceIndex) >= len(srcTx.Outputs) {
			return newErrf(KindInconsistentStore, "forward-apply", "source index %d out of range for tx %x", in.SourceIndex, in.SourceTxHash)
		}
		srcTx.Outputs[in.SourceIndex].Available = false
		e.utxo.remove(point)
		collectOwners(owners, srcTx.Outputs[in.SourceIndex].Owners)
		batch.Put(kv.TxKey(in.SourceTxHash), codec.EncodeTx(*srcTx))
	}
	batch.Put(kv.TxKey(txHash), codec.EncodeTx(tx))
	for addr := range owners {
		batch.Put(kv.ATXKey(addr, txHash), []byte{0})
		e.metrics.ATXWrites.Inc()
	}
	return nil
}

func (e *Engine) backwardApplyTx(batch *kv.Batch, txHash [32]byte) error {
	tx, err := e.loadTx(batch, txHash)
	if err != nil {
		return err
	}
	for i := range tx.Outputs {
		tx.Outputs[i].Available = false
		e.utxo.remove(codec.TxOutPoint{TxHash: txHash, Index: uint32(i)}) // #nosec G115 -- bounded output count.
	}
	batch.Put(kv.TxKey(txHash), codec.EncodeTx(tx))
	for _, in := range tx.Inputs {
		if in.IsCoinbase() {
			continue
		}
		srcTx, err := e.loadTx(batch, in.SourceTxHash)
		if err != nil {
			return err
		}
		if int(in.SourceIndex) >= len(srcTx.Outputs) {
			return newErrf(KindInconsistentStore, "backward-apply", "source index %d out of range for tx %x", in.SourceIndex, in.SourceTxHash)
		}
		srcTx.Outputs[in.SourceIndex].Available = true
		e.utxo.add(&srcTx, int(in.SourceIndex))
		batch.Put(kv.TxKey(in.SourceTxHash), codec.EncodeTx(srcTx))
	}
	return nil
}

// findSourceTx resolves the Tx owning point, preferring the UTXO cache —
// populated by forward apply and warmUTXOCache — over a disk read. A miss
// here is routine: the cache holds only the outputs of the startup warm
// window (Options.UTXOWindow) and those made available since the engine
// was opened, so spends of older outputs fall through to loadTx.
func (e *Engine) findSourceTx(batch *kv.Batch, point codec.TxOutPoint) (*codec.Tx, error) {
	if tx, ok := e.utxo.lookup(point); ok {
		return tx, nil
	}
	tx, err := e.loadTx(batch, point.TxHash)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (e *Engine) loadTx(batch *kv.Batch, hash [32]byte) (codec.Tx, error) {
	raw, ok, err := batch.Get(kv.TxKey(hash))
	if err != nil {
		return codec.Tx{}, storageErr("load-tx", err)
	}
	if !ok {
		return codec.Tx{}, newErrf(KindInconsistentStore, "load-tx", "referenced transaction %x not found", hash)
	}
	tx, err := codec.DecodeTx(raw, hash)
	if err != nil {
		return codec.Tx{}, newErr(KindCodecError, "load-tx", err)
	}
	return tx, nil
}

func (e *Engine) loadBlockTxHashes(batch *kv.Batch, hash [32]byte) ([][32]byte, error) {
	raw, ok, err := batch.Get(kv.BlockKey(hash))
	if err != nil {
		return nil, storageErr("load-block", err)
	}
	if !ok {
		return nil, newErrf(KindInconsistentStore, "load-block", "block %x not found", hash)
	}
	blk, err := codec.DecodeBlk(raw)
	if err != nil {
		return nil, newErr(KindCodecError, "load-block", err)
	}
	return blk.TxHashes, nil
}

func collectOwners(set map[string]struct{}, owners [3]string) {
	for _, o := range owners {
		if o != "" {
			set[o] = struct{}{}
		}
	}
}

// reorgSwitch moves the applied UTXO/ATX state from the current head's tip
// to newTipHash (a member of toHeadID), via the lowest-common-ancestor
// disconnect/reconnect procedure of spec.md §4.4.
func (e *Engine) reorgSwitch(batch *kv.Batch, toHeadID uint64, newTipHash [32]byte) error {
	fromTip, ok := e.index.currentHeadHash()
	if !ok {
		// No current head yet (first-ever head besides genesis, unreachable
		// in practice since genesis always establishes a current head) —
		// nothing to disconnect.
		e.index.current = toHeadID
		return nil
	}

	lca, ok := e.index.lowestCommonAncestor(fromTip, newTipHash)
	if !ok {
		return newErrf(KindInconsistentStore, "reorg", "no common ancestor between %x and %x", fromTip, newTipHash)
	}

	disconnect, ok := e.index.walk(fromTip, lca)
	if !ok {
		return newErrf(KindInconsistentStore, "reorg", "cannot walk from %x to ancestor %x", fromTip, lca)
	}
	for _, cb := range disconnect[:len(disconnect)-1] { // tip-to-ancestor order, excluding the ancestor itself
		txHashes, err := e.loadBlockTxHashes(batch, cb.Hash)
		if err != nil {
			return err
		}
		if err := e.backwardApplyBlock(batch, txHashes); err != nil {
			return err
		}
	}

	connect, ok := e.index.walk(newTipHash, lca)
	if !ok {
		return newErrf(KindInconsistentStore, "reorg", "cannot walk from %x to ancestor %x", newTipHash, lca)
	}
	for i, j := 0, len(connect)-1; i < j; i, j = i+1, j-1 {
		connect[i], connect[j] = connect[j], connect[i]
	}
	connect = connect[1:] // drop the ancestor; walk ascending child-of-ancestor -> new tip
	for _, cb := range connect {
		txHashes, err := e.loadBlockTxHashes(batch, cb.Hash)
		if err != nil {
			return err
		}
		if err := e.forwardApplyBlock(batch, txHashes); err != nil {
			return err
		}
	}

	e.metrics.ReorgsTotal.Inc()
	e.metrics.ReorgDepth.Observe(float64(len(disconnect) - 1))
	e.index.current = toHeadID
	return nil
}
