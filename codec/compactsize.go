package codec

// CompactSize is a Bitcoin-style variable-length unsigned integer encoding.
type CompactSize uint64

// AppendCompactSize appends n to dst using the minimal CompactSize form.
func AppendCompactSize(dst []byte, n uint64) []byte {
	switch {
	case n < 0xfd:
		return append(dst, byte(n))
	case n <= 0xffff:
		dst = append(dst, 0xfd)
		return append(dst, byte(n), byte(n>>8))
	case n <= 0xffffffff:
		dst = append(dst, 0xfe)
		return appendU32le(dst, uint32(n))
	default:
		dst = append(dst, 0xff)
		return appendU64le(dst, n)
	}
}

// EncodeCompactSize returns the minimal CompactSize encoding of n.
func EncodeCompactSize(n uint64) []byte { return AppendCompactSize(nil, n) }

// DecodeCompactSize decodes one CompactSize value from the front of buf,
// rejecting non-minimal encodings, and returns the value and the number of
// bytes consumed.
func DecodeCompactSize(buf []byte) (uint64, int, error) {
	off := 0
	tag, err := readU8(buf, &off)
	if err != nil {
		return 0, 0, err
	}
	switch {
	case tag < 0xfd:
		return uint64(tag), off, nil
	case tag == 0xfd:
		if off+2 > len(buf) {
			return 0, 0, errf("compactsize", "unexpected EOF (u16)")
		}
		v := uint64(buf[off]) | uint64(buf[off+1])<<8
		off += 2
		if v < 0xfd {
			return 0, 0, errf("compactsize", "non-minimal encoding (0xfd)")
		}
		return v, off, nil
	case tag == 0xfe:
		v, err := readU32le(buf, &off)
		if err != nil {
			return 0, 0, err
		}
		if v <= 0xffff {
			return 0, 0, errf("compactsize", "non-minimal encoding (0xfe)")
		}
		return uint64(v), off, nil
	default: // 0xff
		v, err := readU64le(buf, &off)
		if err != nil {
			return 0, 0, err
		}
		if v <= 0xffffffff {
			return 0, 0, errf("compactsize", "non-minimal encoding (0xff)")
		}
		return v, off, nil
	}
}
