package node

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/blockvault/chainstore"
	"github.com/blockvault/chainstore/codec"
)

// Server exposes a read-only HTTP view over a chainstore.Engine: the C5
// query surface, served as JSON. The block and transaction routes return
// canonical codec bytes instead when the client sends
// Accept: application/octet-stream; all other routes always return JSON.
type Server struct {
	engine *chainstore.Engine
	log    *logrus.Logger
	router chi.Router
}

// NewServer builds the router. The caller is responsible for calling
// http.ListenAndServe(bindAddr, srv) or similar.
func NewServer(engine *chainstore.Engine, log *logrus.Logger) *Server {
	s := &Server{engine: engine, log: log}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequest)
	r.Get("/v1/blocks/{hash}", s.handleGetBlock)
	r.Get("/v1/txs/{hash}", s.handleGetTx)
	r.Get("/v1/trunk", s.handleGetTrunk)
	r.Get("/v1/utxo", s.handleGetUTXO)
	r.Get("/v1/spent", s.handleGetSpent)
	r.Get("/v1/received", s.handleGetReceived)
	r.Get("/v1/statement", s.handleGetStatement)
	r.Get("/v1/peers", s.handleGetPeers)
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		s.log.WithFields(logrus.Fields{"method": r.Method, "path": r.URL.Path}).Debug("request served")
	})
}

func wantsBinary(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/octet-stream")
}

func parseHash(s string) ([32]byte, error) {
	var h [32]byte
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 32 {
		return h, chainstore.ErrCodecError
	}
	copy(h[:], raw)
	return h, nil
}

func (s *Server) handleGetBlock(w http.ResponseWriter, r *http.Request) {
	hash, err := parseHash(chi.URLParam(r, "hash"))
	if err != nil {
		writeError(w, err)
		return
	}
	blk, err := s.engine.GetBlock(hash)
	if err != nil {
		writeError(w, err)
		return
	}
	if wantsBinary(r) {
		writeBinary(w, codec.EncodeBlk(blk))
		return
	}
	writeJSON(w, blk)
}

func (s *Server) handleGetTx(w http.ResponseWriter, r *http.Request) {
	hash, err := parseHash(chi.URLParam(r, "hash"))
	if err != nil {
		writeError(w, err)
		return
	}
	tx, err := s.engine.GetTransaction(hash)
	if err != nil {
		writeError(w, err)
		return
	}
	if wantsBinary(r) {
		writeBinary(w, codec.EncodeTx(tx))
		return
	}
	writeJSON(w, tx)
}

func (s *Server) handleGetTrunk(w http.ResponseWriter, r *http.Request) {
	hash, err := s.engine.GetTrunk()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"hash": hex.EncodeToString(hash[:])})
}

func addressesParam(r *http.Request) []string {
	raw := r.URL.Query().Get("address")
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

func fromTimeParam(r *http.Request) uint64 {
	v := r.URL.Query().Get("from")
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func (s *Server) handleGetUTXO(w http.ResponseWriter, r *http.Request) {
	out, err := s.engine.GetUnspentOutput(addressesParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, out)
}

func (s *Server) handleGetSpent(w http.ResponseWriter, r *http.Request) {
	out, err := s.engine.GetSpent(r.Context(), addressesParam(r), fromTimeParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, out)
}

func (s *Server) handleGetReceived(w http.ResponseWriter, r *http.Request) {
	out, err := s.engine.GetReceived(r.Context(), addressesParam(r), fromTimeParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, out)
}

func (s *Server) handleGetStatement(w http.ResponseWriter, r *http.Request) {
	out, err := s.engine.GetAccountStatement(r.Context(), addressesParam(r), fromTimeParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, out)
}

func (s *Server) handleGetPeers(w http.ResponseWriter, r *http.Request) {
	out, err := s.engine.GetConnectablePeers()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, out)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	_ = enc.Encode(v)
}

func writeBinary(w http.ResponseWriter, b []byte) {
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(b)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if ce, ok := err.(*chainstore.Error); ok {
		switch ce.Kind {
		case chainstore.KindNotFound:
			status = http.StatusNotFound
		case chainstore.KindCodecError:
			status = http.StatusBadRequest
		case chainstore.KindCancelled:
			status = http.StatusRequestTimeout
		case chainstore.KindInconsistentStore, chainstore.KindStorageFault:
			status = http.StatusInternalServerError
		}
	}
	http.Error(w, err.Error(), status)
}
