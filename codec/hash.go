package codec

import "crypto/sha256"

// doubleSHA256 is the Bitcoin wire convention for block/transaction hashes.
func doubleSHA256(b []byte) [32]byte {
	first := sha256.Sum256(b)
	return sha256.Sum256(first[:])
}

// HeaderBytes returns the canonical encoding of a Blk's header fields
// (everything except the derived hash, the height/head-id internal
// fields, and the tx-hash list), matching the Bitcoin wire convention for
// public fields.
func HeaderBytes(b Blk) []byte {
	out := append([]byte(nil), b.PrevHash[:]...)
	out = appendU32le(out, b.Version)
	out = append(out, b.MerkleRoot[:]...)
	out = appendU64le(out, b.CreateTime)
	out = append(out, b.Target[:]...)
	out = appendU64le(out, b.Nonce)
	return out
}

// BlockHash computes a Blk's derived, stable hash from its header fields.
func BlockHash(b Blk) [32]byte { return doubleSHA256(HeaderBytes(b)) }

// TxHash computes a Tx's derived hash. The containing BlockHash is
// deliberately excluded from the hash preimage: a transaction's identity
// must not depend on which block ends up containing it, since the block's
// own hash (via its merkle root) depends on its members' tx hashes — and a
// hash that included BlockHash would make that circular. For the same
// reason the internal output fields (Owners, Available) are excluded: an
// output contributes only its value and locking script.
func TxHash(tx Tx) [32]byte { return doubleSHA256(txHashPreimage(tx)) }

func txHashPreimage(tx Tx) []byte {
	out := appendU32le(nil, tx.Version)
	out = appendU32le(out, tx.LockTime)
	out = AppendCompactSize(out, uint64(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		out = append(out, EncodeTxIn(in)...)
	}
	out = AppendCompactSize(out, uint64(len(tx.Outputs)))
	for _, o := range tx.Outputs {
		out = appendU64le(out, uint64(o.Value))
		out = AppendCompactSize(out, uint64(len(o.Script)))
		out = append(out, o.Script...)
	}
	return out
}
