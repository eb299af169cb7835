package codec

import (
	"math/big"
	"testing"
)

func TestTxOutRoundTrip(t *testing.T) {
	o := TxOut{
		Value:     12345,
		Script:    []byte{ScriptTagP2PKH, 1, 2, 3, 4, 5},
		Owners:    [3]string{"p2pkh:aabb", "", ""},
		Available: true,
	}
	enc := EncodeTxOut(o)
	dec, err := DecodeTxOut(enc)
	if err != nil {
		t.Fatalf("DecodeTxOut: %v", err)
	}
	dec.TxHash = o.TxHash
	dec.Index = o.Index
	if dec.Value != o.Value || string(dec.Script) != string(o.Script) || dec.Owners != o.Owners || dec.Available != o.Available {
		t.Fatalf("round trip mismatch: got %+v want %+v", dec, o)
	}
}

func TestTxRoundTrip(t *testing.T) {
	tx := Tx{
		Version:  2,
		LockTime: 99,
		Inputs: []TxIn{
			{SourceTxHash: [32]byte{1}, SourceIndex: 0, Sequence: 0xffffffff, Script: []byte{9, 9}},
		},
		Outputs: []TxOut{
			{Value: 50, Script: []byte{ScriptTagP2PKH, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, Owners: [3]string{"x", "", ""}},
		},
	}
	hash := TxHash(tx)
	tx.BlockHash = [32]byte{7}
	enc := EncodeTx(tx)
	dec, err := DecodeTx(enc, hash)
	if err != nil {
		t.Fatalf("DecodeTx: %v", err)
	}
	if dec.Hash != hash || dec.Version != tx.Version || dec.LockTime != tx.LockTime || dec.BlockHash != tx.BlockHash {
		t.Fatalf("round trip mismatch: %+v", dec)
	}
	if len(dec.Inputs) != 1 || dec.Inputs[0].SourceTxHash != tx.Inputs[0].SourceTxHash ||
		dec.Inputs[0].SourceIndex != tx.Inputs[0].SourceIndex || dec.Inputs[0].Sequence != tx.Inputs[0].Sequence ||
		string(dec.Inputs[0].Script) != string(tx.Inputs[0].Script) {
		t.Fatalf("input mismatch: %+v", dec.Inputs)
	}
	if len(dec.Outputs) != 1 || dec.Outputs[0].Value != tx.Outputs[0].Value {
		t.Fatalf("output mismatch: %+v", dec.Outputs)
	}

	// Excluding BlockHash from the preimage means re-parenting a tx to a
	// different block must not change its hash.
	tx2 := tx
	tx2.BlockHash = [32]byte{8}
	if TxHash(tx2) != hash {
		t.Fatalf("tx hash must not depend on BlockHash")
	}
}

func TestBlkRoundTrip(t *testing.T) {
	b := Blk{
		PrevHash:   [32]byte{1},
		Version:    1,
		MerkleRoot: [32]byte{2},
		CreateTime: 100,
		Target:     [32]byte{0xff},
		Nonce:      42,
		Height:     7,
		HeadID:     9,
		TxHashes:   [][32]byte{{3}, {4}},
	}
	b.Hash = BlockHash(b)
	enc := EncodeBlk(b)
	dec, err := DecodeBlk(enc)
	if err != nil {
		t.Fatalf("DecodeBlk: %v", err)
	}
	if dec.Hash != b.Hash || dec.Height != b.Height || dec.HeadID != b.HeadID {
		t.Fatalf("round trip mismatch: %+v vs %+v", dec, b)
	}
	if len(dec.TxHashes) != 2 || dec.TxHashes[0] != b.TxHashes[0] {
		t.Fatalf("tx hash list mismatch: %+v", dec.TxHashes)
	}
}

func TestHeadRoundTrip(t *testing.T) {
	h := Head{ID: 5, ChainWork: big.NewInt(123456789), Height: 3, HasPrev: true, PrevHeadID: 2}
	enc, err := EncodeHead(h)
	if err != nil {
		t.Fatalf("EncodeHead: %v", err)
	}
	dec, err := DecodeHead(enc, h.ID)
	if err != nil {
		t.Fatalf("DecodeHead: %v", err)
	}
	if dec.ID != h.ID || dec.ChainWork.Cmp(h.ChainWork) != 0 || dec.Height != h.Height || dec.HasPrev != h.HasPrev || dec.PrevHeadID != h.PrevHeadID {
		t.Fatalf("round trip mismatch: %+v vs %+v", dec, h)
	}

	noPrev := Head{ID: 1, ChainWork: big.NewInt(0), Height: 0}
	enc2, err := EncodeHead(noPrev)
	if err != nil {
		t.Fatalf("EncodeHead: %v", err)
	}
	dec2, err := DecodeHead(enc2, noPrev.ID)
	if err != nil {
		t.Fatalf("DecodeHead: %v", err)
	}
	if dec2.HasPrev {
		t.Fatalf("expected HasPrev=false")
	}
}

func TestKnownPeerRoundTrip(t *testing.T) {
	p := KnownPeer{Address: "203.0.113.5:8333", BanUntil: 1700000000, Preference: -5, LastResponse: 1699999999}
	enc := EncodeKnownPeer(p)
	dec, err := DecodeKnownPeer(enc)
	if err != nil {
		t.Fatalf("DecodeKnownPeer: %v", err)
	}
	if dec != p {
		t.Fatalf("round trip mismatch: got %+v want %+v", dec, p)
	}
}

func TestCompactSizeRoundTripAndMinimality(t *testing.T) {
	cases := []uint64{0, 1, 0xfc, 0xfd, 0xffff, 0x10000, 0xffffffff, 0x100000000, 1 << 40}
	for _, n := range cases {
		enc := EncodeCompactSize(n)
		got, adv, err := DecodeCompactSize(enc)
		if err != nil {
			t.Fatalf("DecodeCompactSize(%d): %v", n, err)
		}
		if got != n || adv != len(enc) {
			t.Fatalf("round trip mismatch for %d: got=%d adv=%d len=%d", n, got, adv, len(enc))
		}
	}
	if _, _, err := DecodeCompactSize([]byte{0xfd, 0xfc, 0x00}); err == nil {
		t.Fatalf("expected non-minimal 0xfd rejection")
	}
}

func TestOwnersFromScript(t *testing.T) {
	p2pkh := append([]byte{ScriptTagP2PKH}, make([]byte, 20)...)
	owners := OwnersFromScript(p2pkh)
	if owners[0] == "" || owners[1] != "" || owners[2] != "" {
		t.Fatalf("expected exactly one p2pkh owner, got %+v", owners)
	}

	dataCarrier := []byte{0x6a, 1, 2, 3}
	if owners := OwnersFromScript(dataCarrier); owners != ([3]string{}) {
		t.Fatalf("expected no owners for data-carrier script, got %+v", owners)
	}
}

func TestMerkleRootEmptyAndSingle(t *testing.T) {
	if MerkleRoot(nil) != ([32]byte{}) {
		t.Fatalf("expected zero root for empty list")
	}
	single := [32]byte{1}
	if MerkleRoot([][32]byte{single}) != single {
		t.Fatalf("single-leaf merkle root should be the leaf itself")
	}
}
