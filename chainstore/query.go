package chainstore

import (
	"context"
	"sort"

	"github.com/blockvault/chainstore/codec"
	"github.com/blockvault/chainstore/kv"
)

// ReceivedEntry is one output received by a queried address.
type ReceivedEntry struct {
	Output codec.TxOut
	Time   uint64
}

// SpentEntry is one output previously owned by a queried address and
// later spent, stamped with the spending block's create-time.
type SpentEntry struct {
	Output codec.TxOut
	Time   uint64
}

// Posting is one entry of an account statement: either a receipt or a
// spend, never both.
type Posting struct {
	Time     uint64
	Received *codec.TxOut
	Spent    *codec.TxOut
}

// AccountStatement is the composed result of getAccountStatement.
type AccountStatement struct {
	Postings       []Posting
	OpeningBalance []codec.TxOut
	HeadHash       [32]byte
	ExtractTime    uint64
}

// GetBlock reads a BLOCK record and hydrates its full form by joining TX
// records in listed order.
func (e *Engine) GetBlock(hash [32]byte) (codec.Blk, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.getBlockLocked(hash)
}

func (e *Engine) getBlockLocked(hash [32]byte) (codec.Blk, error) {
	raw, ok, err := e.store.Get(kv.BlockKey(hash))
	if err != nil {
		return codec.Blk{}, storageErr("get-block", err)
	}
	if !ok {
		return codec.Blk{}, newErrf(KindNotFound, "get-block", "block %x not found", hash)
	}
	blk, err := codec.DecodeBlk(raw)
	if err != nil {
		return codec.Blk{}, asNotFound("get-block", err)
	}
	blk.Txs = make([]*codec.Tx, 0, len(blk.TxHashes))
	for _, th := range blk.TxHashes {
		tx, err := e.getTransactionLocked(th)
		if err != nil {
			return codec.Blk{}, err
		}
		blk.Txs = append(blk.Txs, &tx)
	}
	return blk, nil
}

// GetTransaction prefers the relay pool (external collaborator) for a fast
// mempool hit, else reads the TX record.
func (e *Engine) GetTransaction(hash [32]byte) (codec.Tx, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.getTransactionLocked(hash)
}

func (e *Engine) getTransactionLocked(hash [32]byte) (codec.Tx, error) {
	if e.relay != nil {
		if tx, ok := e.relay.GetTransaction(hash); ok {
			return tx, nil
		}
	}
	raw, ok, err := e.store.Get(kv.TxKey(hash))
	if err != nil {
		return codec.Tx{}, storageErr("get-transaction", err)
	}
	if !ok {
		return codec.Tx{}, newErrf(KindNotFound, "get-transaction", "tx %x not found", hash)
	}
	tx, err := codec.DecodeTx(raw, hash)
	if err != nil {
		return codec.Tx{}, asNotFound("get-transaction", err)
	}
	return tx, nil
}

// GetTrunk returns the current head's tip hash.
func (e *Engine) GetTrunk() ([32]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	hash, ok := e.index.currentHeadHash()
	if !ok {
		return [32]byte{}, newErrf(KindNotFound, "get-trunk", "no current head")
	}
	return hash, nil
}

// GetPreviousBlockHash returns the parent hash of the named block.
func (e *Engine) GetPreviousBlockHash(hash [32]byte) ([32]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	prev, ok := e.index.previousBlockHash(hash)
	if !ok {
		return [32]byte{}, newErrf(KindNotFound, "get-previous-block-hash", "block %x not found", hash)
	}
	return prev, nil
}

// GetUnspentOutput enumerates ATX entries for each address, loads each
// referenced Tx, and emits every output that is available and whose
// owners intersect the requested address set.
func (e *Engine) GetUnspentOutput(addresses []string) ([]codec.TxOut, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.getUnspentOutputLocked(addresses)
}

func (e *Engine) getUnspentOutputLocked(addresses []string) ([]codec.TxOut, error) {
	requested := toAddrSet(addresses)
	seen := make(map[codec.TxOutPoint]bool)
	var out []codec.TxOut
	for _, addr := range addresses {
		entries, err := e.store.ScanPrefix(kv.ATXPrefix(addr), kv.Forward)
		if err != nil {
			return nil, storageErr("get-unspent-output", err)
		}
		for _, entry := range entries {
			_, txHash, ok := kv.SplitATXKey(entry.Key[1:])
			if !ok {
				continue
			}
			tx, err := e.getTransactionLocked(txHash)
			if err != nil {
				if ce, ok := err.(*Error); ok && ce.Kind == KindNotFound {
					continue
				}
				return nil, err
			}
			for _, o := range tx.Outputs {
				if !o.Available {
					continue
				}
				point := codec.TxOutPoint{TxHash: txHash, Index: o.Index}
				if seen[point] || !ownersIntersect(o.Owners, requested) {
					continue
				}
				seen[point] = true
				out = append(out, o)
			}
		}
	}
	return out, nil
}

// GetSpent enumerates, for each address, every previously-owned output
// later spent by a tx whose containing block's create-time is at least
// fromTime.
func (e *Engine) GetSpent(ctx context.Context, addresses []string, fromTime uint64) ([]SpentEntry, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.getSpentLocked(ctx, addresses, fromTime)
}

func (e *Engine) getSpentLocked(ctx context.Context, addresses []string, fromTime uint64) ([]SpentEntry, error) {
	requested := toAddrSet(addresses)
	seen := make(map[codec.TxOutPoint]bool)
	var out []SpentEntry
	for _, addr := range addresses {
		entries, err := e.store.ScanPrefix(kv.ATXPrefix(addr), kv.Forward)
		if err != nil {
			return nil, storageErr("get-spent", err)
		}
		for _, entry := range entries {
			if err := checkCancelled(ctx); err != nil {
				return nil, err
			}
			_, txHash, ok := kv.SplitATXKey(entry.Key[1:])
			if !ok {
				continue
			}
			tx, err := e.getTransactionLocked(txHash)
			if err != nil {
				if ce, ok := err.(*Error); ok && ce.Kind == KindNotFound {
					continue
				}
				return nil, err
			}
			spendTime, ok := e.blockCreateTime(tx.BlockHash)
			if !ok || spendTime < fromTime {
				continue
			}
			for _, in := range tx.Inputs {
				if in.IsCoinbase() {
					continue
				}
				if err := checkCancelled(ctx); err != nil {
					return nil, err
				}
				srcTx, err := e.getTransactionLocked(in.SourceTxHash)
				if err != nil {
					continue
				}
				if int(in.SourceIndex) >= len(srcTx.Outputs) {
					continue
				}
				srcOut := srcTx.Outputs[in.SourceIndex]
				if !ownersIntersect(srcOut.Owners, requested) {
					continue
				}
				point := codec.TxOutPoint{TxHash: srcOut.TxHash, Index: srcOut.Index}
				if seen[point] {
					continue
				}
				seen[point] = true
				out = append(out, SpentEntry{Output: srcOut, Time: spendTime})
			}
		}
	}
	return out, nil
}

// GetReceived enumerates, for each address, every output it owns whose
// containing block's create-time is at least fromTime.
func (e *Engine) GetReceived(ctx context.Context, addresses []string, fromTime uint64) ([]ReceivedEntry, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.getReceivedLocked(ctx, addresses, fromTime)
}

func (e *Engine) getReceivedLocked(ctx context.Context, addresses []string, fromTime uint64) ([]ReceivedEntry, error) {
	requested := toAddrSet(addresses)
	seen := make(map[codec.TxOutPoint]bool)
	var out []ReceivedEntry
	for _, addr := range addresses {
		entries, err := e.store.ScanPrefix(kv.ATXPrefix(addr), kv.Forward)
		if err != nil {
			return nil, storageErr("get-received", err)
		}
		for _, entry := range entries {
			if err := checkCancelled(ctx); err != nil {
				return nil, err
			}
			_, txHash, ok := kv.SplitATXKey(entry.Key[1:])
			if !ok {
				continue
			}
			tx, err := e.getTransactionLocked(txHash)
			if err != nil {
				if ce, ok := err.(*Error); ok && ce.Kind == KindNotFound {
					continue
				}
				return nil, err
			}
			recvTime, ok := e.blockCreateTime(tx.BlockHash)
			if !ok || recvTime < fromTime {
				continue
			}
			for _, o := range tx.Outputs {
				if !ownersIntersect(o.Owners, requested) {
					continue
				}
				point := codec.TxOutPoint{TxHash: txHash, Index: o.Index}
				if seen[point] {
					continue
				}
				seen[point] = true
				out = append(out, ReceivedEntry{Output: o, Time: recvTime})
			}
		}
	}
	return out, nil
}

// GetAccountStatement composes GetReceived and GetSpent into a
// timestamp-ordered posting list (received sorts before spent at equal
// timestamps, P7), plus an opening balance built from current UTXOs minus
// any entry cancelled by a subsequent in-window receipt, per spec.md §4.5
// (a reviewed, intentional design — see DESIGN.md).
func (e *Engine) GetAccountStatement(ctx context.Context, addresses []string, fromTime uint64) (AccountStatement, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	received, err := e.getReceivedLocked(ctx, addresses, fromTime)
	if err != nil {
		return AccountStatement{}, err
	}
	spent, err := e.getSpentLocked(ctx, addresses, fromTime)
	if err != nil {
		return AccountStatement{}, err
	}

	postings := make([]Posting, 0, len(received)+len(spent))
	for i := range received {
		postings = append(postings, Posting{Time: received[i].Time, Received: &received[i].Output})
	}
	for i := range spent {
		postings = append(postings, Posting{Time: spent[i].Time, Spent: &spent[i].Output})
	}
	sort.SliceStable(postings, func(i, j int) bool {
		if postings[i].Time != postings[j].Time {
			return postings[i].Time < postings[j].Time
		}
		// Equal timestamps: received before spent (P7).
		return postings[i].Received != nil && postings[j].Spent != nil
	})

	opening, err := e.getUnspentOutputLocked(addresses)
	if err != nil {
		return AccountStatement{}, err
	}
	balance := make(map[codec.TxOutPoint]codec.TxOut, len(opening))
	for _, o := range opening {
		balance[codec.TxOutPoint{TxHash: o.TxHash, Index: o.Index}] = o
	}
	for i := range received {
		delete(balance, codec.TxOutPoint{TxHash: received[i].Output.TxHash, Index: received[i].Output.Index})
	}
	openingBalance := make([]codec.TxOut, 0, len(balance))
	for _, o := range balance {
		openingBalance = append(openingBalance, o)
	}
	sort.Slice(openingBalance, func(i, j int) bool {
		if openingBalance[i].TxHash != openingBalance[j].TxHash {
			return lessHash(openingBalance[i].TxHash, openingBalance[j].TxHash)
		}
		return openingBalance[i].Index < openingBalance[j].Index
	})

	headHash, _ := e.index.currentHeadHash()
	extractTime, _ := e.blockCreateTime(headHash)

	return AccountStatement{
		Postings:       postings,
		OpeningBalance: openingBalance,
		HeadHash:       headHash,
		ExtractTime:    extractTime,
	}, nil
}

func (e *Engine) blockCreateTime(hash [32]byte) (uint64, bool) {
	cb, ok := e.index.locate(hash)
	if !ok {
		return 0, false
	}
	return cb.CreateTime, true
}

func toAddrSet(addresses []string) map[string]bool {
	set := make(map[string]bool, len(addresses))
	for _, a := range addresses {
		set[a] = true
	}
	return set
}

func ownersIntersect(owners [3]string, requested map[string]bool) bool {
	for _, o := range owners {
		if o != "" && requested[o] {
			return true
		}
	}
	return false
}

func lessHash(a, b [32]byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// checkCancelled surfaces a Cancelled error with no side effects if ctx
// has been cancelled, per the engine's cooperative cancellation model.
func checkCancelled(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return newErr(KindCancelled, "cancelled", ctx.Err())
	default:
		return nil
	}
}
