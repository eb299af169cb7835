package node

import (
	"fmt"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/blockvault/chainstore"
	"github.com/blockvault/chainstore/kv"
)

// OpenEngine opens the kv store under cfg.DataDir and wires it into a
// chainstore.Engine, registering its instrumentation into reg. The caller
// owns the returned store's lifetime (Close it on shutdown); the engine
// holds no resources of its own beyond the store.
func OpenEngine(cfg Config, reg *prometheus.Registry) (*chainstore.Engine, *kv.Store, error) {
	dbPath := filepath.Join(cfg.DataDir, "chain.db")
	store, err := kv.Open(dbPath, cfg.KVCacheSizeMiB)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	metrics := chainstore.NewMetrics(reg)
	engine, err := chainstore.NewEngine(store, chainstore.Options{
		UTXOWindow: cfg.UTXOWindow,
		Metrics:    metrics,
	})
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("new engine: %w", err)
	}
	return engine, store, nil
}
