package chainstore

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the engine's Prometheus instrumentation. It is constructed
// with NewMetrics and registered into a caller-supplied registry: the
// engine never touches prometheus.DefaultRegisterer, keeping it injectable
// the same way the rest of this codebase's lineage injects its crypto
// provider and RNG rather than reaching for globals.
type Metrics struct {
	BlocksInserted prometheus.Counter
	ReorgsTotal    prometheus.Counter
	ReorgDepth     prometheus.Histogram
	BatchCommits   prometheus.Counter
	BatchCancels   prometheus.Counter
	UTXOCacheSize  prometheus.Gauge
	ATXWrites      prometheus.Counter
}

// NewMetrics constructs and registers a Metrics instance into reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BlocksInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chainstore_blocks_inserted_total",
			Help: "Total number of blocks successfully inserted.",
		}),
		ReorgsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chainstore_reorgs_total",
			Help: "Total number of chain reorganizations performed.",
		}),
		ReorgDepth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chainstore_reorg_depth_blocks",
			Help:    "Depth, in blocks disconnected, of each reorganization.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		BatchCommits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chainstore_batch_commits_total",
			Help: "Total number of committed write batches.",
		}),
		BatchCancels: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chainstore_batch_cancels_total",
			Help: "Total number of cancelled write batches.",
		}),
		UTXOCacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chainstore_utxo_cache_size",
			Help: "Current number of entries in the advisory UTXO cache.",
		}),
		ATXWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chainstore_atx_writes_total",
			Help: "Total number of address-to-transaction index entries written.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.BlocksInserted, m.ReorgsTotal, m.ReorgDepth,
			m.BatchCommits, m.BatchCancels, m.UTXOCacheSize, m.ATXWrites)
	}
	return m
}

// noopMetrics is used when the caller supplies no registry, so the mutator
// never has to nil-check every instrumentation call site.
func noopMetrics() *Metrics {
	return &Metrics{
		BlocksInserted: prometheus.NewCounter(prometheus.CounterOpts{Name: "chainstore_noop_blocks_inserted"}),
		ReorgsTotal:    prometheus.NewCounter(prometheus.CounterOpts{Name: "chainstore_noop_reorgs"}),
		ReorgDepth:     prometheus.NewHistogram(prometheus.HistogramOpts{Name: "chainstore_noop_reorg_depth"}),
		BatchCommits:   prometheus.NewCounter(prometheus.CounterOpts{Name: "chainstore_noop_batch_commits"}),
		BatchCancels:   prometheus.NewCounter(prometheus.CounterOpts{Name: "chainstore_noop_batch_cancels"}),
		UTXOCacheSize:  prometheus.NewGauge(prometheus.GaugeOpts{Name: "chainstore_noop_utxo_cache_size"}),
		ATXWrites:      prometheus.NewCounter(prometheus.CounterOpts{Name: "chainstore_noop_atx_writes"}),
	}
}
