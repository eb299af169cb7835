package chainstore

import (
	"context"
	"errors"
	"testing"

	"github.com/blockvault/chainstore/codec"
)

func TestLinearInsertionForwardApplies(t *testing.T) {
	e := newTestEngine(t, Options{})
	addrA := ownerAddr(0xA1)

	cb := coinbaseTx(0xA1, 5000)
	genesis := mkBlock([32]byte{}, 1000, targetN(1_000_000), []*codec.Tx{cb})
	genesisHash := codec.BlockHash(genesis)
	must(t, e.InsertBlock(genesis))

	trunk, err := e.GetTrunk()
	if err != nil || trunk != genesisHash {
		t.Fatalf("GetTrunk = %x, %v, want %x", trunk, err, genesisHash)
	}

	utxos, err := e.GetUnspentOutput([]string{addrA})
	if err != nil || len(utxos) != 1 || utxos[0].Value != 5000 {
		t.Fatalf("GetUnspentOutput = %+v, %v", utxos, err)
	}

	cb2 := coinbaseTx(0xB2, 10)
	blk2 := mkBlock(genesisHash, 1001, targetN(1_000_000), []*codec.Tx{cb2})
	blk2Hash := codec.BlockHash(blk2)
	must(t, e.InsertBlock(blk2))

	trunk, err = e.GetTrunk()
	if err != nil || trunk != blk2Hash {
		t.Fatalf("GetTrunk after second block = %x, %v, want %x", trunk, err, blk2Hash)
	}

	blk, err := e.GetBlock(genesisHash)
	if err != nil || len(blk.Txs) != 1 || blk.Txs[0].Hash != cb.Hash {
		t.Fatalf("GetBlock(genesis) = %+v, %v", blk, err)
	}

	prev, err := e.GetPreviousBlockHash(blk2Hash)
	if err != nil || prev != genesisHash {
		t.Fatalf("GetPreviousBlockHash = %x, %v, want %x", prev, err, genesisHash)
	}
}

func TestSimpleSpendMovesAvailability(t *testing.T) {
	e := newTestEngine(t, Options{})
	addrA := ownerAddr(0x01)
	addrB := ownerAddr(0x02)

	cb := coinbaseTx(0x01, 1000)
	genesis := mkBlock([32]byte{}, 100, targetN(1_000_000), []*codec.Tx{cb})
	genesisHash := codec.BlockHash(genesis)
	must(t, e.InsertBlock(genesis))

	spend := spendTx(*cb, 0, 0x02, 900)
	blk2 := mkBlock(genesisHash, 200, targetN(1_000_000), []*codec.Tx{spend})
	must(t, e.InsertBlock(blk2))

	utxoA, err := e.GetUnspentOutput([]string{addrA})
	if err != nil || len(utxoA) != 0 {
		t.Fatalf("addrA should have no UTXOs after spend, got %+v, %v", utxoA, err)
	}
	utxoB, err := e.GetUnspentOutput([]string{addrB})
	if err != nil || len(utxoB) != 1 || utxoB[0].Value != 900 {
		t.Fatalf("addrB GetUnspentOutput = %+v, %v", utxoB, err)
	}

	ctx := context.Background()
	received, err := e.GetReceived(ctx, []string{addrB}, 0)
	if err != nil || len(received) != 1 || received[0].Output.Value != 900 {
		t.Fatalf("GetReceived(addrB) = %+v, %v", received, err)
	}
	spent, err := e.GetSpent(ctx, []string{addrA}, 0)
	if err != nil || len(spent) != 1 || spent[0].Output.Value != 1000 {
		t.Fatalf("GetSpent(addrA) = %+v, %v", spent, err)
	}
}

// TestReorgSwitchesOnHigherWork builds a genesis, extends it with a
// low-work block (the initial current head), then inserts a competing
// side block off genesis with far greater chain-work and checks the
// engine reorgs onto it: P3/P4.
func TestReorgSwitchesOnHigherWork(t *testing.T) {
	e := newTestEngine(t, Options{})
	addrA := ownerAddr(0x0A)
	addrB := ownerAddr(0x0B)

	genesis := mkBlock([32]byte{}, 1, targetN(1_000_000), []*codec.Tx{coinbaseTx(0x00, 1)})
	genesisHash := codec.BlockHash(genesis)
	must(t, e.InsertBlock(genesis))

	blkA := mkBlock(genesisHash, 2, targetN(1_000_000), []*codec.Tx{coinbaseTx(0x0A, 100)})
	blkAHash := codec.BlockHash(blkA)
	must(t, e.InsertBlock(blkA))

	if trunk, err := e.GetTrunk(); err != nil || trunk != blkAHash {
		t.Fatalf("expected A as current before reorg, trunk=%x err=%v", trunk, err)
	}
	if utxoA, err := e.GetUnspentOutput([]string{addrA}); err != nil || len(utxoA) != 1 {
		t.Fatalf("A's coinbase should be available on current head, got %+v, %v", utxoA, err)
	}

	blkB := mkBlock(genesisHash, 3, targetN(1_000), []*codec.Tx{coinbaseTx(0x0B, 200)})
	blkBHash := codec.BlockHash(blkB)
	must(t, e.InsertBlock(blkB))

	trunk, err := e.GetTrunk()
	if err != nil || trunk != blkBHash {
		t.Fatalf("expected reorg onto B (higher work), trunk=%x err=%v", trunk, err)
	}

	utxoA, err := e.GetUnspentOutput([]string{addrA})
	if err != nil || len(utxoA) != 0 {
		t.Fatalf("A's coinbase must become unavailable once its branch is no longer current, got %+v, %v", utxoA, err)
	}
	utxoB, err := e.GetUnspentOutput([]string{addrB})
	if err != nil || len(utxoB) != 1 {
		t.Fatalf("B's coinbase must become available once its branch is current, got %+v, %v", utxoB, err)
	}

	if prev, err := e.GetPreviousBlockHash(blkBHash); err != nil || prev != genesisHash {
		t.Fatalf("GetPreviousBlockHash(B) = %x, %v, want %x", prev, err, genesisHash)
	}
}

// TestReorgBackRestoresOriginalBranch extends the original (now side)
// branch with enough additional work to win the head back, and checks
// that the ATX history for the losing branch's address still answers
// queries even though its outputs are unavailable again: P3 reversibility,
// P5 ATX completeness (history is never deleted by backward-apply).
func TestReorgBackRestoresOriginalBranch(t *testing.T) {
	e := newTestEngine(t, Options{})
	addrA := ownerAddr(0x0A)
	addrB := ownerAddr(0x0B)

	genesis := mkBlock([32]byte{}, 1, targetN(1_000_000), []*codec.Tx{coinbaseTx(0x00, 1)})
	genesisHash := codec.BlockHash(genesis)
	must(t, e.InsertBlock(genesis))

	blkA := mkBlock(genesisHash, 2, targetN(1_000_000), []*codec.Tx{coinbaseTx(0x0A, 100)})
	blkAHash := codec.BlockHash(blkA)
	must(t, e.InsertBlock(blkA))

	blkB := mkBlock(genesisHash, 3, targetN(1_000), []*codec.Tx{coinbaseTx(0x0B, 200)})
	must(t, e.InsertBlock(blkB))

	blkA2 := mkBlock(blkAHash, 4, targetN(1), []*codec.Tx{coinbaseTx(0x0A, 50)})
	blkA2Hash := codec.BlockHash(blkA2)
	must(t, e.InsertBlock(blkA2))

	trunk, err := e.GetTrunk()
	if err != nil || trunk != blkA2Hash {
		t.Fatalf("expected reorg back onto A's branch, trunk=%x err=%v", trunk, err)
	}

	utxoB, err := e.GetUnspentOutput([]string{addrB})
	if err != nil || len(utxoB) != 0 {
		t.Fatalf("B's coinbase should be unavailable again, got %+v, %v", utxoB, err)
	}
	utxoA, err := e.GetUnspentOutput([]string{addrA})
	if err != nil || len(utxoA) != 2 {
		t.Fatalf("A's branch should have both coinbases available, got %+v, %v", utxoA, err)
	}

	received, err := e.GetReceived(context.Background(), []string{addrB}, 0)
	if err != nil || len(received) != 1 {
		t.Fatalf("ATX history for B must survive the reorg back, got %+v, %v", received, err)
	}
}

func TestInsertBlockMissingParentDoesNotTaintEngine(t *testing.T) {
	e := newTestEngine(t, Options{})

	orphan := mkBlock([32]byte{0xAA}, 1, targetN(1_000_000), []*codec.Tx{coinbaseTx(0x01, 1)})
	err := e.InsertBlock(orphan)
	if !errors.Is(err, ErrInconsistentStore) {
		t.Fatalf("want InconsistentStore for unknown parent, got %v", err)
	}
	if e.tainted {
		t.Fatalf("a rejected insert that never opened a batch must not taint the engine")
	}

	genesis := mkBlock([32]byte{}, 2, targetN(1_000_000), []*codec.Tx{coinbaseTx(0x02, 1)})
	if err := e.InsertBlock(genesis); err != nil {
		t.Fatalf("engine should remain writable after the rejected orphan: %v", err)
	}
}

func TestTaintedEngineRefusesFurtherWrites(t *testing.T) {
	e := newTestEngine(t, Options{})
	e.tainted = true

	err := e.InsertBlock(mkBlock([32]byte{}, 1, targetN(1_000_000), []*codec.Tx{coinbaseTx(0x01, 1)}))
	if !errors.Is(err, ErrStorageFault) {
		t.Fatalf("InsertBlock on tainted engine: want StorageFault, got %v", err)
	}
	if err := e.StorePeer(codec.KnownPeer{Address: "x"}); !errors.Is(err, ErrStorageFault) {
		t.Fatalf("StorePeer on tainted engine: want StorageFault, got %v", err)
	}
}
