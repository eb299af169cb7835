package codec

// EncodeBlk encodes a Blk's stored form: header fields | height | headID |
// txCount | txHashes. Hash is derived, not stored; Txs (the full-form
// transaction list) is never part of this encoding.
func EncodeBlk(b Blk) []byte {
	out := HeaderBytes(b)
	out = appendU64le(out, b.Height)
	out = appendU64le(out, b.HeadID)
	out = AppendCompactSize(out, uint64(len(b.TxHashes)))
	for _, h := range b.TxHashes {
		out = append(out, h[:]...)
	}
	return out
}

// DecodeBlk decodes a Blk's stored form and fills in the derived Hash.
func DecodeBlk(raw []byte) (Blk, error) {
	if len(raw) < 32+4+32+8+32+8 {
		return Blk{}, errf("blk", "truncated header")
	}
	off := 0
	var b Blk
	var err error
	b.PrevHash, err = readHash(raw, &off)
	if err != nil {
		return Blk{}, err
	}
	b.Version, err = readU32le(raw, &off)
	if err != nil {
		return Blk{}, err
	}
	b.MerkleRoot, err = readHash(raw, &off)
	if err != nil {
		return Blk{}, err
	}
	b.CreateTime, err = readU64le(raw, &off)
	if err != nil {
		return Blk{}, err
	}
	b.Target, err = readHash(raw, &off)
	if err != nil {
		return Blk{}, err
	}
	b.Nonce, err = readU64le(raw, &off)
	if err != nil {
		return Blk{}, err
	}
	b.Height, err = readU64le(raw, &off)
	if err != nil {
		return Blk{}, err
	}
	b.HeadID, err = readU64le(raw, &off)
	if err != nil {
		return Blk{}, err
	}
	txCount, adv, err := DecodeCompactSize(raw[off:])
	if err != nil {
		return Blk{}, err
	}
	off += adv
	b.TxHashes = make([][32]byte, 0, txCount)
	for i := uint64(0); i < txCount; i++ {
		h, err := readHash(raw, &off)
		if err != nil {
			return Blk{}, err
		}
		b.TxHashes = append(b.TxHashes, h)
	}
	if off != len(raw) {
		return Blk{}, errf("blk", "trailing bytes")
	}
	b.Hash = BlockHash(b)
	return b, nil
}

// MerkleRoot computes the Bitcoin-style binary merkle root over an ordered
// list of transaction hashes (duplicating the last entry on odd levels).
// An empty list yields the zero hash.
func MerkleRoot(txHashes [][32]byte) [32]byte {
	if len(txHashes) == 0 {
		return [32]byte{}
	}
	level := make([][32]byte, len(txHashes))
	copy(level, txHashes)
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([][32]byte, len(level)/2)
		for i := range next {
			var buf [64]byte
			copy(buf[0:32], level[2*i][:])
			copy(buf[32:64], level[2*i+1][:])
			next[i] = doubleSHA256(buf[:])
		}
		level = next
	}
	return level[0]
}
