package codec

func appendOwner(dst []byte, owner string) []byte {
	dst = AppendCompactSize(dst, uint64(len(owner)))
	return append(dst, owner...)
}

func readOwner(b []byte, off *int) (string, error) {
	n, adv, err := DecodeCompactSize(b[*off:])
	if err != nil {
		return "", err
	}
	*off += adv
	raw, err := readBytes(b, off, int(n))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// EncodeTxOut encodes a TxOut's stored form: value | scriptLen | script |
// owner1 | owner2 | owner3 | available.
func EncodeTxOut(o TxOut) []byte {
	out := appendU64le(nil, uint64(o.Value))
	out = AppendCompactSize(out, uint64(len(o.Script)))
	out = append(out, o.Script...)
	for _, owner := range o.Owners {
		out = appendOwner(out, owner)
	}
	var avail byte
	if o.Available {
		avail = 1
	}
	return append(out, avail)
}

// DecodeTxOut decodes a TxOut's stored form. TxHash/Index are not part of
// the encoding (they come from the enclosing Tx and output position) and
// are left zero; callers fill them in from context.
func DecodeTxOut(b []byte) (TxOut, error) {
	off := 0
	value, err := readU64le(b, &off)
	if err != nil {
		return TxOut{}, err
	}
	scriptLen, adv, err := DecodeCompactSize(b[off:])
	if err != nil {
		return TxOut{}, err
	}
	off += adv
	script, err := readBytes(b, &off, int(scriptLen))
	if err != nil {
		return TxOut{}, err
	}
	var owners [3]string
	for i := range owners {
		owners[i], err = readOwner(b, &off)
		if err != nil {
			return TxOut{}, err
		}
	}
	availByte, err := readU8(b, &off)
	if err != nil {
		return TxOut{}, err
	}
	if off != len(b) {
		return TxOut{}, errf("txout", "trailing bytes")
	}
	return TxOut{
		Value:     int64(value),
		Script:    script,
		Owners:    owners,
		Available: availByte == 1,
	}, nil
}

// EncodeTxIn encodes a TxIn: srcTxHash | srcIndex | sequence | scriptLen | script.
func EncodeTxIn(in TxIn) []byte {
	out := append([]byte(nil), in.SourceTxHash[:]...)
	out = appendU32le(out, in.SourceIndex)
	out = appendU32le(out, in.Sequence)
	out = AppendCompactSize(out, uint64(len(in.Script)))
	return append(out, in.Script...)
}

func decodeTxIn(b []byte, off *int) (TxIn, error) {
	srcHash, err := readHash(b, off)
	if err != nil {
		return TxIn{}, err
	}
	srcIndex, err := readU32le(b, off)
	if err != nil {
		return TxIn{}, err
	}
	seq, err := readU32le(b, off)
	if err != nil {
		return TxIn{}, err
	}
	scriptLen, adv, err := DecodeCompactSize(b[*off:])
	if err != nil {
		return TxIn{}, err
	}
	*off += adv
	script, err := readBytes(b, off, int(scriptLen))
	if err != nil {
		return TxIn{}, err
	}
	return TxIn{SourceTxHash: srcHash, SourceIndex: srcIndex, Sequence: seq, Script: script}, nil
}

// EncodeTx encodes a Tx's stored form: version | lockTime | blockHash |
// inCount | ins | outCount | outs. Hash is derived, not stored.
func EncodeTx(tx Tx) []byte {
	out := appendU32le(nil, tx.Version)
	out = appendU32le(out, tx.LockTime)
	out = append(out, tx.BlockHash[:]...)
	out = AppendCompactSize(out, uint64(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		out = append(out, EncodeTxIn(in)...)
	}
	out = AppendCompactSize(out, uint64(len(tx.Outputs)))
	for _, o := range tx.Outputs {
		outBytes := EncodeTxOut(o)
		out = AppendCompactSize(out, uint64(len(outBytes)))
		out = append(out, outBytes...)
	}
	return out
}

// DecodeTx decodes a Tx's stored form. txHash is supplied by the caller
// (the store key it was read from) since the hash is derived, not encoded.
func DecodeTx(b []byte, txHash [32]byte) (Tx, error) {
	off := 0
	version, err := readU32le(b, &off)
	if err != nil {
		return Tx{}, err
	}
	lockTime, err := readU32le(b, &off)
	if err != nil {
		return Tx{}, err
	}
	blockHash, err := readHash(b, &off)
	if err != nil {
		return Tx{}, err
	}
	inCount, adv, err := DecodeCompactSize(b[off:])
	if err != nil {
		return Tx{}, err
	}
	off += adv
	ins := make([]TxIn, 0, inCount)
	for i := uint64(0); i < inCount; i++ {
		in, err := decodeTxIn(b, &off)
		if err != nil {
			return Tx{}, err
		}
		ins = append(ins, in)
	}
	outCount, adv, err := DecodeCompactSize(b[off:])
	if err != nil {
		return Tx{}, err
	}
	off += adv
	outs := make([]TxOut, 0, outCount)
	for i := uint64(0); i < outCount; i++ {
		outLen, adv, err := DecodeCompactSize(b[off:])
		if err != nil {
			return Tx{}, err
		}
		off += adv
		outBytes, err := readBytes(b, &off, int(outLen))
		if err != nil {
			return Tx{}, err
		}
		out, err := DecodeTxOut(outBytes)
		if err != nil {
			return Tx{}, err
		}
		out.TxHash = txHash
		out.Index = uint32(i) // #nosec G115 -- outCount is bounded by MAX_TX_OUTPUTS-scale caller validation.
		outs = append(outs, out)
	}
	if off != len(b) {
		return Tx{}, errf("tx", "trailing bytes")
	}
	return Tx{
		Hash:      txHash,
		Version:   version,
		LockTime:  lockTime,
		BlockHash: blockHash,
		Inputs:    ins,
		Outputs:   outs,
	}, nil
}
