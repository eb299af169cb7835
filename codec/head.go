package codec

import "math/big"

// EncodeHead encodes a Head: workLen(u8) | work magnitude (big-endian) |
// height(u64) | hasPrev(u8) | prevHeadID(u64, present iff hasPrev).
func EncodeHead(h Head) ([]byte, error) {
	work := h.ChainWork
	if work == nil {
		work = big.NewInt(0)
	}
	if work.Sign() < 0 {
		return nil, errf("head", "chain_work must be non-negative")
	}
	workBytes := work.Bytes()
	if len(workBytes) > 0xff {
		return nil, errf("head", "chain_work too large")
	}
	out := []byte{byte(len(workBytes))}
	out = append(out, workBytes...)
	out = appendU64le(out, h.Height)
	var hasPrev byte
	if h.HasPrev {
		hasPrev = 1
	}
	out = append(out, hasPrev)
	if h.HasPrev {
		out = appendU64le(out, h.PrevHeadID)
	}
	return out, nil
}

// DecodeHead decodes a Head's stored form. id is supplied by the caller
// (the store key it was read from).
func DecodeHead(b []byte, id uint64) (Head, error) {
	if len(b) < 1 {
		return Head{}, errf("head", "truncated")
	}
	workLen := int(b[0])
	off := 1
	work, err := readBytes(b, &off, workLen)
	if err != nil {
		return Head{}, err
	}
	height, err := readU64le(b, &off)
	if err != nil {
		return Head{}, err
	}
	hasPrevByte, err := readU8(b, &off)
	if err != nil {
		return Head{}, err
	}
	h := Head{
		ID:        id,
		ChainWork: new(big.Int).SetBytes(work),
		Height:    height,
		HasPrev:   hasPrevByte == 1,
	}
	if h.HasPrev {
		h.PrevHeadID, err = readU64le(b, &off)
		if err != nil {
			return Head{}, err
		}
	}
	if off != len(b) {
		return Head{}, errf("head", "trailing bytes")
	}
	return h, nil
}
