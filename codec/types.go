// Package codec provides deterministic byte encodings for every persisted
// entity (and the domain types themselves); the store keys they are
// indexed by live in package kv. It has no side effects: it is the single point that
// converts between byte arrays and entities. decode(encode(x)) == x for
// every entity (P1).
package codec

import "math/big"

// TxOutPoint identifies one output by its owning transaction and index.
type TxOutPoint struct {
	TxHash [32]byte
	Index  uint32
}

// TxOut is one transaction output. Owners holds up to three addresses
// derived from the locking script by pattern recognition (never script
// execution); unused slots are empty strings. Available is true iff this
// output is unspent on the branch currently represented by the UTXO state.
type TxOut struct {
	TxHash    [32]byte
	Index     uint32
	Value     int64
	Script    []byte
	Owners    [3]string
	Available bool
}

// TxIn is one transaction input. A zero SourceTxHash designates a coinbase
// input, which has no referent output.
type TxIn struct {
	SourceTxHash [32]byte
	SourceIndex  uint32
	Sequence     uint32
	Script       []byte
}

// IsCoinbase reports whether this input is the distinguished coinbase
// input of a block's first transaction.
func (in TxIn) IsCoinbase() bool { return in.SourceTxHash == ([32]byte{}) }

// Tx is a persisted transaction.
type Tx struct {
	Hash      [32]byte // derived; not part of the encoded form
	Version   uint32
	LockTime  uint32
	BlockHash [32]byte
	Inputs    []TxIn
	Outputs   []TxOut
}

// Blk is a stored block: header fields plus the ordered list of member
// transaction hashes. The Txs field is populated only by the "full form"
// used transiently when a caller joins a Blk with its Tx records; it is
// never part of the persisted BLOCK encoding.
type Blk struct {
	Hash       [32]byte // derived; not part of the encoded form
	PrevHash   [32]byte
	Version    uint32
	MerkleRoot [32]byte
	CreateTime uint64
	Target     [32]byte
	Nonce      uint64
	Height     uint64
	HeadID     uint64
	TxHashes   [][32]byte
	Txs        []*Tx
}

// Head is a chain head: a competing tip of the block DAG.
type Head struct {
	ID         uint64
	ChainWork  *big.Int
	Height     uint64
	HasPrev    bool
	PrevHeadID uint64
}

// KnownPeer is one persisted network peer record.
type KnownPeer struct {
	Address      string
	BanUntil     int64 // unix seconds; in the past means connectable
	Preference   int32
	LastResponse int64 // unix seconds
}
