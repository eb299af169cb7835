package chainstore

import (
	"math/big"
	"sort"

	"github.com/blockvault/chainstore/codec"
	"github.com/blockvault/chainstore/kv"
)

// CachedBlock is an in-memory header summary. Parent is a relational
// lookup (by hash into the index's block table), never an owning pointer:
// many children may share one parent.
type CachedBlock struct {
	Hash       [32]byte
	PrevHash   [32]byte
	HeadID     uint64
	CreateTime uint64
	Height     uint64

	// ChainWork is cumulative proof-of-work from genesis through this
	// block, inclusive. It is not part of spec.md's literal CachedBlock
	// field list, but is required to seed a new head's chain-work
	// correctly when it forks from a block that is not any head's current
	// tip; it mirrors the per-block cumulative-work bookkeeping the
	// teacher's BlockIndexEntry keeps (node/store/db.go).
	ChainWork *big.Int
}

// CachedHead is a materialized chain head.
type CachedHead struct {
	ID         uint64
	ChainWork  *big.Int
	Height     uint64
	Last       *CachedBlock
	Members    []*CachedBlock
	HasPrev    bool
	PrevHeadID uint64
}

// chainIndex is the in-memory DAG of all known blocks across all known
// heads, rebuilt on Engine construction from the HEAD/BLOCK records.
type chainIndex struct {
	blocksByHash map[[32]byte]*CachedBlock
	heads        map[uint64]*CachedHead
	current      uint64
}

// loadChainIndex reconstructs the index per spec: all HEAD records first
// (so chain-work/height/previous are available), then all BLOCK records
// sorted ascending by height, linked by parent hash and appended to their
// head's member list.
func loadChainIndex(store *kv.Store) (*chainIndex, error) {
	idx := &chainIndex{
		blocksByHash: make(map[[32]byte]*CachedBlock),
		heads:        make(map[uint64]*CachedHead),
	}

	headEntries, err := store.ScanPrefix(kv.TagHead.Prefix(), kv.Forward)
	if err != nil {
		return nil, storageErr("load-heads", err)
	}
	var bestWork *big.Int
	for _, e := range headEntries {
		id := kv.DecodeHeadID(e.Key[1:])
		h, err := codec.DecodeHead(e.Value, id)
		if err != nil {
			return nil, newErr(KindCodecError, "decode-head", err)
		}
		idx.heads[id] = &CachedHead{
			ID:         h.ID,
			ChainWork:  h.ChainWork,
			Height:     h.Height,
			HasPrev:    h.HasPrev,
			PrevHeadID: h.PrevHeadID,
		}
		if bestWork == nil || h.ChainWork.Cmp(bestWork) > 0 {
			bestWork = h.ChainWork
			idx.current = id
		}
	}

	blockEntries, err := store.ScanPrefix(kv.TagBlock.Prefix(), kv.Forward)
	if err != nil {
		return nil, storageErr("load-blocks", err)
	}
	decoded := make([]codec.Blk, 0, len(blockEntries))
	for _, e := range blockEntries {
		b, err := codec.DecodeBlk(e.Value)
		if err != nil {
			return nil, newErr(KindCodecError, "decode-block", err)
		}
		decoded = append(decoded, b)
	}
	sort.Slice(decoded, func(i, j int) bool { return decoded[i].Height < decoded[j].Height })

	for _, b := range decoded {
		blockWork, err := workFromTarget(b.Target)
		if err != nil {
			return nil, err
		}
		chainWork := blockWork
		if parent, ok := idx.blocksByHash[b.PrevHash]; ok {
			chainWork = new(big.Int).Add(parent.ChainWork, blockWork)
		}
		cb := &CachedBlock{
			Hash:       b.Hash,
			PrevHash:   b.PrevHash,
			HeadID:     b.HeadID,
			CreateTime: b.CreateTime,
			Height:     b.Height,
			ChainWork:  chainWork,
		}
		idx.blocksByHash[cb.Hash] = cb
		head, ok := idx.heads[cb.HeadID]
		if !ok {
			// A block referencing an unknown head is a store inconsistency,
			// but loading tolerates it by skipping head bookkeeping for it
			// (the block itself remains locatable).
			continue
		}
		head.Members = append(head.Members, cb)
		if head.Last == nil || cb.Height >= head.Last.Height {
			head.Last = cb
		}
	}

	return idx, nil
}

// currentHeadHash returns the tip hash of the current (best) head.
func (idx *chainIndex) currentHeadHash() ([32]byte, bool) {
	head, ok := idx.heads[idx.current]
	if !ok || head.Last == nil {
		return [32]byte{}, false
	}
	return head.Last.Hash, true
}

// currentHead returns the current CachedHead.
func (idx *chainIndex) currentHead() (*CachedHead, bool) {
	head, ok := idx.heads[idx.current]
	return head, ok
}

// previousBlockHash returns the parent hash of the block named by hash.
func (idx *chainIndex) previousBlockHash(hash [32]byte) ([32]byte, bool) {
	b, ok := idx.blocksByHash[hash]
	if !ok {
		return [32]byte{}, false
	}
	return b.PrevHash, true
}

// locate returns the CachedBlock for a hash.
func (idx *chainIndex) locate(hash [32]byte) (*CachedBlock, bool) {
	b, ok := idx.blocksByHash[hash]
	return b, ok
}

// walk enumerates the CachedBlocks from "from" back to (and including)
// "to" along parent pointers, in descending-height (tip-to-ancestor)
// order. "to" must be an ancestor of "from" (or equal to it).
func (idx *chainIndex) walk(from, to [32]byte) ([]*CachedBlock, bool) {
	var out []*CachedBlock
	cur := from
	for {
		b, ok := idx.blocksByHash[cur]
		if !ok {
			return nil, false
		}
		out = append(out, b)
		if cur == to {
			return out, true
		}
		if b.PrevHash == cur {
			return nil, false
		}
		cur = b.PrevHash
	}
}

// lowestCommonAncestor walks both tips back by parent pointers to find
// their first common block, using height to equalize depth first.
func (idx *chainIndex) lowestCommonAncestor(a, b [32]byte) ([32]byte, bool) {
	ba, ok := idx.blocksByHash[a]
	if !ok {
		return [32]byte{}, false
	}
	bb, ok := idx.blocksByHash[b]
	if !ok {
		return [32]byte{}, false
	}
	for ba.Height > bb.Height {
		ba, ok = idx.blocksByHash[ba.PrevHash]
		if !ok {
			return [32]byte{}, false
		}
	}
	for bb.Height > ba.Height {
		bb, ok = idx.blocksByHash[bb.PrevHash]
		if !ok {
			return [32]byte{}, false
		}
	}
	for ba.Hash != bb.Hash {
		ba, ok = idx.blocksByHash[ba.PrevHash]
		if !ok {
			return [32]byte{}, false
		}
		bb, ok = idx.blocksByHash[bb.PrevHash]
		if !ok {
			return [32]byte{}, false
		}
	}
	return ba.Hash, true
}

// addBlock installs a freshly-applied block into the index, under the
// given head id, updating that head's Last pointer if it extends it.
func (idx *chainIndex) addBlock(b codec.Blk, headID uint64, chainWork *big.Int) *CachedBlock {
	cb := &CachedBlock{
		Hash:       b.Hash,
		PrevHash:   b.PrevHash,
		HeadID:     headID,
		CreateTime: b.CreateTime,
		Height:     b.Height,
		ChainWork:  chainWork,
	}
	idx.blocksByHash[cb.Hash] = cb
	if head, ok := idx.heads[headID]; ok {
		head.Members = append(head.Members, cb)
		if head.Last == nil || cb.Height >= head.Last.Height {
			head.Last = cb
		}
	}
	return cb
}
