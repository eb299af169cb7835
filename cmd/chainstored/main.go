package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/blockvault/chainstore"
	"github.com/blockvault/chainstore/codec"
	"github.com/blockvault/chainstore/node"
)

// importBlock/importTx/importTxIn/importTxOut are the import tool's own
// line-delimited JSON block format: a full, not-yet-persisted block with
// its member transactions' bodies. This is distinct from the BLOCK/TX
// store encoding (codec.EncodeBlk/EncodeTx), which never carries full
// transaction bodies inline — it is not a network wire format either,
// since peer framing is out of this module's scope.
type importBlock struct {
	PrevHash   string     `json:"prev_hash"`
	Version    uint32     `json:"version"`
	CreateTime uint64     `json:"create_time"`
	Target     string     `json:"target"`
	Nonce      uint64     `json:"nonce"`
	Txs        []importTx `json:"txs"`
}

type importTx struct {
	Version  uint32        `json:"version"`
	LockTime uint32        `json:"lock_time"`
	Inputs   []importTxIn  `json:"inputs"`
	Outputs  []importTxOut `json:"outputs"`
}

type importTxIn struct {
	SourceTxHash string `json:"source_tx_hash"`
	SourceIndex  uint32 `json:"source_index"`
	Sequence     uint32 `json:"sequence"`
	Script       string `json:"script"`
}

type importTxOut struct {
	Value  int64  `json:"value"`
	Script string `json:"script"`
}

func decodeHash32(s string) ([32]byte, error) {
	var h [32]byte
	if s == "" {
		return h, nil
	}
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 32 {
		return h, fmt.Errorf("want 32 hex-encoded bytes, got %q", s)
	}
	copy(h[:], raw)
	return h, nil
}

func (ib importBlock) toBlk() (codec.Blk, error) {
	prevHash, err := decodeHash32(ib.PrevHash)
	if err != nil {
		return codec.Blk{}, fmt.Errorf("prev_hash: %w", err)
	}
	target, err := decodeHash32(ib.Target)
	if err != nil {
		return codec.Blk{}, fmt.Errorf("target: %w", err)
	}
	txs := make([]*codec.Tx, 0, len(ib.Txs))
	txHashes := make([][32]byte, 0, len(ib.Txs))
	for i, it := range ib.Txs {
		inputs := make([]codec.TxIn, 0, len(it.Inputs))
		for j, ii := range it.Inputs {
			srcHash, err := decodeHash32(ii.SourceTxHash)
			if err != nil {
				return codec.Blk{}, fmt.Errorf("tx %d input %d source_tx_hash: %w", i, j, err)
			}
			script, err := hex.DecodeString(ii.Script)
			if err != nil {
				return codec.Blk{}, fmt.Errorf("tx %d input %d script: %w", i, j, err)
			}
			inputs = append(inputs, codec.TxIn{SourceTxHash: srcHash, SourceIndex: ii.SourceIndex, Sequence: ii.Sequence, Script: script})
		}
		outputs := make([]codec.TxOut, 0, len(it.Outputs))
		for j, oo := range it.Outputs {
			script, err := hex.DecodeString(oo.Script)
			if err != nil {
				return codec.Blk{}, fmt.Errorf("tx %d output %d script: %w", i, j, err)
			}
			outputs = append(outputs, codec.TxOut{Value: oo.Value, Script: script})
		}
		tx := &codec.Tx{Version: it.Version, LockTime: it.LockTime, Inputs: inputs, Outputs: outputs}
		tx.Hash = codec.TxHash(*tx)
		txs = append(txs, tx)
		txHashes = append(txHashes, tx.Hash)
	}
	return codec.Blk{
		PrevHash:   prevHash,
		Version:    ib.Version,
		MerkleRoot: codec.MerkleRoot(txHashes),
		CreateTime: ib.CreateTime,
		Target:     target,
		Nonce:      ib.Nonce,
		Txs:        txs,
	}, nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	defaults := node.DefaultConfig()
	cfg := defaults
	var envFile string

	root := &cobra.Command{
		Use:           "chainstored",
		Short:         "persistent block-chain storage engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&cfg.Network, "network", defaults.Network, "network name")
	root.PersistentFlags().StringVar(&cfg.DataDir, "datadir", defaults.DataDir, "node data directory")
	root.PersistentFlags().StringVar(&cfg.BindAddr, "bind", defaults.BindAddr, "HTTP bind address host:port")
	root.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", defaults.LogLevel, "log level: debug|info|warn|error")
	root.PersistentFlags().IntVar(&cfg.KVCacheSizeMiB, "kv-cache-mib", defaults.KVCacheSizeMiB, "bbolt page cache size in MiB")
	root.PersistentFlags().IntVar(&cfg.UTXOWindow, "utxo-window", defaults.UTXOWindow, "blocks to warm the UTXO cache from on startup")
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "optional .env file; its CHAINSTORE_* values override the matching flags, including flags set on the command line")

	root.AddCommand(serveCmd(&cfg, &envFile, stdout, stderr))
	root.AddCommand(importCmd(&cfg, &envFile, stdout, stderr))

	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}
	return 0
}

func loadAndValidate(cfg *node.Config, envFile string) error {
	merged, err := node.LoadEnvFile(*cfg, envFile)
	if err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	*cfg = merged
	return node.ValidateConfig(*cfg)
}

func serveCmd(cfg *node.Config, envFile *string, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "open the engine and serve the HTTP query façade",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadAndValidate(cfg, *envFile); err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
				return fmt.Errorf("datadir create: %w", err)
			}
			log := node.NewLogger(cfg.LogLevel)
			reg := prometheus.NewRegistry()
			engine, store, err := node.OpenEngine(*cfg, reg)
			if err != nil {
				return err
			}
			defer store.Close()

			mux := http.NewServeMux()
			mux.Handle("/", node.NewServer(engine, log))
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			httpServer := &http.Server{Addr: cfg.BindAddr, Handler: mux}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- httpServer.ListenAndServe() }()
			log.WithField("addr", cfg.BindAddr).Info("chainstored serving")

			select {
			case <-ctx.Done():
				log.Info("chainstored shutting down")
				return httpServer.Shutdown(context.Background())
			case err := <-errCh:
				if err != nil && err != http.ErrServerClosed {
					return err
				}
				return nil
			}
		},
	}
}

func importCmd(cfg *node.Config, envFile *string, stdout, stderr io.Writer) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "stream newline-delimited JSON blocks into the engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadAndValidate(cfg, *envFile); err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
				return fmt.Errorf("datadir create: %w", err)
			}
			reg := prometheus.NewRegistry()
			engine, store, err := node.OpenEngine(*cfg, reg)
			if err != nil {
				return err
			}
			defer store.Close()

			var in io.Reader = os.Stdin
			if from != "" && from != "-" {
				f, err := os.Open(from)
				if err != nil {
					return fmt.Errorf("open %s: %w", from, err)
				}
				defer f.Close()
				in = f
			}

			inserted, err := runImport(engine, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "imported %d blocks\n", inserted)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "-", "input file, or - for stdin")
	return cmd
}

// runImport reads newline-delimited importBlock JSON from in and inserts
// each into engine in order, returning the count successfully inserted
// before the first error (if any).
func runImport(engine *chainstore.Engine, in io.Reader) (int, error) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	inserted := 0
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		var ib importBlock
		if err := json.Unmarshal([]byte(line), &ib); err != nil {
			return inserted, fmt.Errorf("line %d: decode json: %w", lineNo, err)
		}
		blk, err := ib.toBlk()
		if err != nil {
			return inserted, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if err := engine.InsertBlock(blk); err != nil {
			return inserted, fmt.Errorf("line %d: insert block: %w", lineNo, err)
		}
		inserted++
	}
	if err := scanner.Err(); err != nil {
		return inserted, fmt.Errorf("read input: %w", err)
	}
	return inserted, nil
}
