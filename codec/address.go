package codec

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // ripemd160 is required for Bitcoin-style hash160, not for a security property of its own.
)

// Recognized locking-script tags. Since script execution is explicitly out
// of scope, owner addresses are derived by pattern recognition over a
// minimal tag format rather than by running a script interpreter.
const (
	ScriptTagP2PKH          = 0x76
	ScriptTagP2SH           = 0xA9
	ScriptTagP2PKCompress   = 0x21
	ScriptTagP2PKUncompress = 0x41
	ScriptTagBareMultisig   = 0xAE
)

// Hash160 is SHA-256 followed by RIPEMD-160, the Bitcoin convention for
// deriving a short address hash from a public key or script.
func Hash160(b []byte) [20]byte {
	sum256 := sha256.Sum256(b)
	h := ripemd160.New()
	_, _ = h.Write(sum256[:]) // ripemd160.digest.Write never returns an error.
	var out [20]byte
	copy(out[:], h.Sum(nil))
	return out
}

// OwnersFromScript extracts up to three owner addresses from a locking
// script by recognizing standard templates. Unrecognized or data-carrier
// scripts yield zero owners. This never executes the script.
func OwnersFromScript(script []byte) [3]string {
	var owners [3]string
	if len(script) == 0 {
		return owners
	}
	switch script[0] {
	case ScriptTagP2PKH:
		if len(script) == 21 {
			owners[0] = "p2pkh:" + hex.EncodeToString(script[1:21])
		}
	case ScriptTagP2SH:
		if len(script) == 21 {
			owners[0] = "p2sh:" + hex.EncodeToString(script[1:21])
		}
	case ScriptTagP2PKCompress:
		if len(script) == 1+33 {
			h := Hash160(script[1:34])
			owners[0] = "p2pk:" + hex.EncodeToString(h[:])
		}
	case ScriptTagP2PKUncompress:
		if len(script) == 1+65 {
			h := Hash160(script[1:66])
			owners[0] = "p2pk:" + hex.EncodeToString(h[:])
		}
	case ScriptTagBareMultisig:
		owners = bareMultisigOwners(script[1:])
	}
	return owners
}

func bareMultisigOwners(body []byte) [3]string {
	var owners [3]string
	count, adv, err := DecodeCompactSize(body)
	if err != nil || count == 0 || count > 3 {
		return owners
	}
	off := adv
	for i := uint64(0); i < count; i++ {
		keyLen, kadv, err := DecodeCompactSize(body[off:])
		if err != nil || (keyLen != 33 && keyLen != 65) {
			return [3]string{}
		}
		off += kadv
		if off+int(keyLen) > len(body) {
			return [3]string{}
		}
		key := body[off : off+int(keyLen)]
		off += int(keyLen)
		h := Hash160(key)
		owners[i] = "p2pk:" + hex.EncodeToString(h[:])
	}
	return owners
}
