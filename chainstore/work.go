package chainstore

import "math/big"

var twoTo256 = new(big.Int).Lsh(big.NewInt(1), 256)

// workFromTarget returns floor(2^256 / target), the chain-work
// contribution of a single block given its difficulty target interpreted
// as an unsigned big-endian integer.
func workFromTarget(target [32]byte) (*big.Int, error) {
	t := new(big.Int).SetBytes(target[:])
	if t.Sign() <= 0 {
		return nil, newErrf(KindInconsistentStore, "work-from-target", "target must be > 0")
	}
	return new(big.Int).Quo(twoTo256, t), nil
}
