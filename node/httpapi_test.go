package node

import (
	"bytes"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/blockvault/chainstore"
	"github.com/blockvault/chainstore/codec"
	"github.com/blockvault/chainstore/kv"
)

func newTestServer(t *testing.T) (*Server, *chainstore.Engine) {
	t.Helper()
	store, err := kv.Open(filepath.Join(t.TempDir(), "chain.db"), 0)
	if err != nil {
		t.Fatalf("kv.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	engine, err := chainstore.NewEngine(store, chainstore.Options{})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return NewServer(engine, NewLogger("error")), engine
}

func p2pkh(tag byte) []byte {
	s := make([]byte, 21)
	s[0] = codec.ScriptTagP2PKH
	for i := 1; i < 21; i++ {
		s[i] = tag
	}
	return s
}

func TestHTTPGetTrunkAndBlock(t *testing.T) {
	srv, engine := newTestServer(t)

	cb := &codec.Tx{Version: 1, Inputs: []codec.TxIn{{}}, Outputs: []codec.TxOut{{Value: 10, Script: p2pkh(0x01)}}}
	genesis := codec.Blk{Version: 1, CreateTime: 1, Target: targetFull(), Nonce: 1, Txs: []*codec.Tx{cb}}
	genesisHash := codec.BlockHash(genesis)
	if err := engine.InsertBlock(genesis); err != nil {
		t.Fatalf("InsertBlock: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/trunk", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /v1/trunk status = %d, body=%s", rec.Code, rec.Body.String())
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(hex.EncodeToString(genesisHash[:]))) {
		t.Fatalf("trunk response missing genesis hash: %s", rec.Body.String())
	}

	blockReq := httptest.NewRequest(http.MethodGet, "/v1/blocks/"+hex.EncodeToString(genesisHash[:]), nil)
	blockRec := httptest.NewRecorder()
	srv.ServeHTTP(blockRec, blockReq)
	if blockRec.Code != http.StatusOK {
		t.Fatalf("GET /v1/blocks/{hash} status = %d, body=%s", blockRec.Code, blockRec.Body.String())
	}
}

func TestHTTPGetBlockNotFoundMapsTo404(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/blocks/"+hex.EncodeToString(make([]byte, 32)), nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHTTPGetBlockBadHashMapsTo400(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/blocks/not-hex", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHTTPGetTxReturnsBinaryOnOctetAccept(t *testing.T) {
	srv, engine := newTestServer(t)

	cb := &codec.Tx{Version: 1, Inputs: []codec.TxIn{{}}, Outputs: []codec.TxOut{{Value: 10, Script: p2pkh(0x01)}}}
	genesis := codec.Blk{Version: 1, CreateTime: 1, Target: targetFull(), Nonce: 1, Txs: []*codec.Tx{cb}}
	if err := engine.InsertBlock(genesis); err != nil {
		t.Fatalf("InsertBlock: %v", err)
	}

	addr := "p2pkh:" + hex.EncodeToString(bytes.Repeat([]byte{0x01}, 20))
	req := httptest.NewRequest(http.MethodGet, "/v1/txs/"+hex.EncodeToString(cb.Hash[:]), nil)
	req.Header.Set("Accept", "application/octet-stream")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/octet-stream" {
		t.Fatalf("Content-Type = %q, want application/octet-stream", rec.Header().Get("Content-Type"))
	}

	utxoReq := httptest.NewRequest(http.MethodGet, "/v1/utxo?address="+addr, nil)
	utxoRec := httptest.NewRecorder()
	srv.ServeHTTP(utxoRec, utxoReq)
	if utxoRec.Code != http.StatusOK {
		t.Fatalf("GET /v1/utxo status = %d, body=%s", utxoRec.Code, utxoRec.Body.String())
	}
}

// targetFull is a maximally permissive difficulty target, large enough
// that workFromTarget never needs a tiny denominator in these HTTP tests.
func targetFull() [32]byte {
	var t [32]byte
	for i := range t {
		t[i] = 0xff
	}
	return t
}
