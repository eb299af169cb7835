package codec

// EncodeKnownPeer encodes a KnownPeer: addrLen(CompactSize) | addr |
// banUntil(i64) | preference(i32) | lastResponse(i64). Address is also
// the store key, but is carried in the value too so a peer record can be reconstructed from a bare value blob (e.g. for
// backup/export tooling) without consulting the key.
func EncodeKnownPeer(p KnownPeer) []byte {
	out := AppendCompactSize(nil, uint64(len(p.Address)))
	out = append(out, p.Address...)
	out = appendI64le(out, p.BanUntil)
	out = appendU32le(out, uint32(p.Preference)) // #nosec G115 -- preference is a bounded score, round-trips via int32(uint32(...)).
	out = appendI64le(out, p.LastResponse)
	return out
}

// DecodeKnownPeer decodes a KnownPeer's stored form.
func DecodeKnownPeer(b []byte) (KnownPeer, error) {
	off := 0
	addrLen, adv, err := DecodeCompactSize(b[off:])
	if err != nil {
		return KnownPeer{}, err
	}
	off += adv
	addr, err := readBytes(b, &off, int(addrLen))
	if err != nil {
		return KnownPeer{}, err
	}
	banUntil, err := readI64le(b, &off)
	if err != nil {
		return KnownPeer{}, err
	}
	pref, err := readU32le(b, &off)
	if err != nil {
		return KnownPeer{}, err
	}
	lastResp, err := readI64le(b, &off)
	if err != nil {
		return KnownPeer{}, err
	}
	if off != len(b) {
		return KnownPeer{}, errf("known_peer", "trailing bytes")
	}
	return KnownPeer{
		Address:      string(addr),
		BanUntil:     banUntil,
		Preference:   int32(pref), // #nosec G115 -- inverse of the encode-side cast.
		LastResponse: lastResp,
	}, nil
}
