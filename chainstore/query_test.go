package chainstore

import (
	"context"
	"testing"

	"github.com/blockvault/chainstore/codec"
)

// TestAccountStatementWindowAndOpeningBalance exercises the full statement
// pipeline against a small three-block history: a windowed receipt, a
// windowed spend, and the deliberately literal opening-balance algorithm
// (seed from current UTXOs, subtract only in-window receipts) documented
// in DESIGN.md rather than "corrected" to also subtract in-window spends.
func TestAccountStatementWindowAndOpeningBalance(t *testing.T) {
	e := newTestEngine(t, Options{})
	addr := ownerAddr(0x55)
	other := ownerAddr(0x66)

	cb1 := coinbaseTx(0x55, 100)
	genesis := mkBlock([32]byte{}, 10, targetN(1_000_000), []*codec.Tx{cb1})
	genesisHash := codec.BlockHash(genesis)
	must(t, e.InsertBlock(genesis))

	cb2 := coinbaseTx(0x55, 50)
	blk2 := mkBlock(genesisHash, 20, targetN(1_000_000), []*codec.Tx{cb2})
	blk2Hash := codec.BlockHash(blk2)
	must(t, e.InsertBlock(blk2))

	spend := spendTx(*cb1, 0, 0x66, 90)
	blk3 := mkBlock(blk2Hash, 30, targetN(1_000_000), []*codec.Tx{spend})
	blk3Hash := codec.BlockHash(blk3)
	must(t, e.InsertBlock(blk3))

	stmt, err := e.GetAccountStatement(context.Background(), []string{addr}, 15)
	if err != nil {
		t.Fatalf("GetAccountStatement: %v", err)
	}

	if len(stmt.Postings) != 2 {
		t.Fatalf("want 2 postings (cb1's receipt at t=10 predates the window), got %d: %+v", len(stmt.Postings), stmt.Postings)
	}
	if stmt.Postings[0].Received == nil || stmt.Postings[0].Time != 20 || stmt.Postings[0].Received.Value != 50 {
		t.Fatalf("posting[0] = %+v, want received cb2 at t=20", stmt.Postings[0])
	}
	if stmt.Postings[1].Spent == nil || stmt.Postings[1].Time != 30 || stmt.Postings[1].Spent.Value != 100 {
		t.Fatalf("posting[1] = %+v, want spent cb1-output at t=30", stmt.Postings[1])
	}

	// Current UTXO set for addr is just cb2's output (cb1's was spent). The
	// spec's opening-balance algorithm seeds from that set and then deletes
	// any seed entry that is also an in-window *receipt* — cb2's receipt at
	// t=20 is in-window, so it cancels the only seed entry, leaving the
	// opening balance empty. This is the literal, reviewed behavior, not a
	// bug: see DESIGN.md's decision on spec.md's opening-balance algorithm.
	if len(stmt.OpeningBalance) != 0 {
		t.Fatalf("want opening balance emptied by its own in-window receipt, got %+v", stmt.OpeningBalance)
	}

	if stmt.HeadHash != blk3Hash {
		t.Fatalf("HeadHash = %x, want %x", stmt.HeadHash, blk3Hash)
	}
	if stmt.ExtractTime != 30 {
		t.Fatalf("ExtractTime = %d, want 30", stmt.ExtractTime)
	}

	// addr no longer holds other's output, and other never appears as addr.
	received, err := e.GetReceived(context.Background(), []string{other}, 0)
	if err != nil || len(received) != 1 || received[0].Output.Value != 90 {
		t.Fatalf("GetReceived(other) = %+v, %v", received, err)
	}
}
