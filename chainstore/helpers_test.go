package chainstore

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"path/filepath"
	"testing"

	"github.com/blockvault/chainstore/codec"
	"github.com/blockvault/chainstore/kv"
)

func newTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	store, err := kv.Open(filepath.Join(t.TempDir(), "chain.db"), 0)
	if err != nil {
		t.Fatalf("kv.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	e, err := NewEngine(store, opts)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// p2pkhScript builds a recognizable P2PKH locking script for a synthetic
// 20-byte address tag, so codec.OwnersFromScript resolves a stable owner
// string the tests can also compute independently via ownerAddr.
func p2pkhScript(tag byte) []byte {
	s := make([]byte, 21)
	s[0] = codec.ScriptTagP2PKH
	for i := 1; i < 21; i++ {
		s[i] = tag
	}
	return s
}

func ownerAddr(tag byte) string {
	return "p2pkh:" + hex.EncodeToString(bytes.Repeat([]byte{tag}, 20))
}

func coinbaseTx(toTag byte, value int64) *codec.Tx {
	return &codec.Tx{
		Version: 1,
		Inputs:  []codec.TxIn{{}}, // zero SourceTxHash: coinbase
		Outputs: []codec.TxOut{{Value: value, Script: p2pkhScript(toTag)}},
	}
}

func spendTx(src codec.Tx, srcIndex uint32, toTag byte, value int64) *codec.Tx {
	return &codec.Tx{
		Version: 1,
		Inputs:  []codec.TxIn{{SourceTxHash: src.Hash, SourceIndex: srcIndex}},
		Outputs: []codec.TxOut{{Value: value, Script: p2pkhScript(toTag)}},
	}
}

// targetN builds a difficulty target whose big-endian integer value is n:
// smaller n means smaller target means more chain-work per block.
func targetN(n uint64) [32]byte {
	var t [32]byte
	binary.BigEndian.PutUint64(t[24:], n)
	return t
}

func mkBlock(prevHash [32]byte, createTime uint64, target [32]byte, txs []*codec.Tx) codec.Blk {
	return codec.Blk{
		PrevHash:   prevHash,
		Version:    1,
		CreateTime: createTime,
		Target:     target,
		Nonce:      1,
		Txs:        txs,
	}
}
