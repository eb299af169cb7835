package codec

import "encoding/binary"

func readU8(b []byte, off *int) (uint8, error) {
	if *off+1 > len(b) {
		return 0, errf("wire", "unexpected EOF (u8)")
	}
	v := b[*off]
	*off++
	return v, nil
}

func readU32le(b []byte, off *int) (uint32, error) {
	if *off+4 > len(b) {
		return 0, errf("wire", "unexpected EOF (u32le)")
	}
	v := binary.LittleEndian.Uint32(b[*off : *off+4])
	*off += 4
	return v, nil
}

func readU64le(b []byte, off *int) (uint64, error) {
	if *off+8 > len(b) {
		return 0, errf("wire", "unexpected EOF (u64le)")
	}
	v := binary.LittleEndian.Uint64(b[*off : *off+8])
	*off += 8
	return v, nil
}

func readI64le(b []byte, off *int) (int64, error) {
	v, err := readU64le(b, off)
	if err != nil {
		return 0, err
	}
	return int64(v), nil
}

func readBytes(b []byte, off *int, n int) ([]byte, error) {
	if n < 0 {
		return nil, errf("wire", "negative length")
	}
	if *off+n > len(b) {
		return nil, errf("wire", "unexpected EOF (bytes)")
	}
	v := append([]byte(nil), b[*off:*off+n]...)
	*off += n
	return v, nil
}

func readHash(b []byte, off *int) ([32]byte, error) {
	var out [32]byte
	v, err := readBytes(b, off, 32)
	if err != nil {
		return out, err
	}
	copy(out[:], v)
	return out, nil
}

// appendU32le appends v as a 4-byte little-endian value to dst.
func appendU32le(dst []byte, v uint32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return append(dst, buf[:]...)
}

// appendU64le appends v as an 8-byte little-endian value to dst.
func appendU64le(dst []byte, v uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return append(dst, buf[:]...)
}

func appendI64le(dst []byte, v int64) []byte {
	return appendU64le(dst, uint64(v))
}
