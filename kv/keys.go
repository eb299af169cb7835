package kv

import "encoding/binary"

// Tag is the 1-byte discriminant that every key starts with, so all
// entities of one kind occupy a contiguous, orderable key range.
type Tag byte

const (
	TagTx    Tag = 0x01
	TagBlock Tag = 0x02
	TagHead  Tag = 0x03
	TagPeer  Tag = 0x04
	TagATX   Tag = 0x05
)

// Prefix returns the single-byte key prefix for this tag.
func (t Tag) Prefix() []byte { return []byte{byte(t)} }

// TxKey builds the key for a TX record: tag || 32-byte tx hash.
func TxKey(hash [32]byte) []byte { return appendTagged(TagTx, hash[:]) }

// BlockKey builds the key for a BLOCK record: tag || 32-byte block hash.
func BlockKey(hash [32]byte) []byte { return appendTagged(TagBlock, hash[:]) }

// HeadKey builds the key for a HEAD record: tag || 8-byte big-endian head id.
func HeadKey(id uint64) []byte {
	var idb [8]byte
	binary.BigEndian.PutUint64(idb[:], id)
	return appendTagged(TagHead, idb[:])
}

// PeerKey builds the key for a PEER record: tag || UTF-8 address bytes.
func PeerKey(addr string) []byte { return appendTagged(TagPeer, []byte(addr)) }

// ATXKey builds the key for an ATX record: tag || address bytes || 32-byte tx hash.
func ATXKey(addr string, txHash [32]byte) []byte {
	out := appendTagged(TagATX, []byte(addr))
	return append(out, txHash[:]...)
}

// ATXPrefix builds the scan prefix for all ATX entries of one address.
func ATXPrefix(addr string) []byte { return appendTagged(TagATX, []byte(addr)) }

// DecodeHeadID extracts the head id from a HEAD key's body (post-tag bytes).
func DecodeHeadID(body []byte) uint64 { return binary.BigEndian.Uint64(body) }

// SplitATXKey splits an ATX key's body (post-tag bytes) into address and tx hash.
func SplitATXKey(body []byte) (addr string, txHash [32]byte, ok bool) {
	if len(body) < 32 {
		return "", txHash, false
	}
	addr = string(body[:len(body)-32])
	copy(txHash[:], body[len(body)-32:])
	return addr, txHash, true
}

func appendTagged(t Tag, body []byte) []byte {
	out := make([]byte, 0, 1+len(body))
	out = append(out, byte(t))
	out = append(out, body...)
	return out
}
