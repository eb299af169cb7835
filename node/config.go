// Package node wires the chainstore engine together with its ambient
// concerns: configuration, logging, metrics registration and the HTTP
// query façade.
package node

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds everything chainstored needs to open an engine and serve
// queries over it. Fields can be set from flags, a .env file (via
// LoadEnvFile), or left at their DefaultConfig value.
type Config struct {
	Network        string `json:"network"`
	DataDir        string `json:"data_dir"`
	BindAddr       string `json:"bind_addr"`
	LogLevel       string `json:"log_level"`
	KVCacheSizeMiB int    `json:"kv_cache_size_mib"`
	UTXOWindow     int    `json:"utxo_window"`
}

var allowedLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".chainstore"
	}
	return filepath.Join(home, ".chainstore")
}

func DefaultConfig() Config {
	return Config{
		Network:        "devnet",
		DataDir:        DefaultDataDir(),
		BindAddr:       "0.0.0.0:8080",
		LogLevel:       "info",
		KVCacheSizeMiB: 64,
		UTXOWindow:     2016,
	}
}

// LoadEnvFile applies any CHAINSTORE_-prefixed variables found in the
// .env-format file at path over cfg. A missing file is not an error.
func LoadEnvFile(cfg Config, path string) (Config, error) {
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	env, err := godotenv.Read(path)
	if err != nil {
		return cfg, fmt.Errorf("read env file: %w", err)
	}
	if v, ok := env["CHAINSTORE_NETWORK"]; ok {
		cfg.Network = v
	}
	if v, ok := env["CHAINSTORE_DATA_DIR"]; ok {
		cfg.DataDir = v
	}
	if v, ok := env["CHAINSTORE_BIND_ADDR"]; ok {
		cfg.BindAddr = v
	}
	if v, ok := env["CHAINSTORE_LOG_LEVEL"]; ok {
		cfg.LogLevel = v
	}
	if v, ok := env["CHAINSTORE_KV_CACHE_SIZE_MIB"]; ok {
		n, convErr := strconv.Atoi(strings.TrimSpace(v))
		if convErr != nil {
			return cfg, fmt.Errorf("CHAINSTORE_KV_CACHE_SIZE_MIB: %w", convErr)
		}
		cfg.KVCacheSizeMiB = n
	}
	if v, ok := env["CHAINSTORE_UTXO_WINDOW"]; ok {
		n, convErr := strconv.Atoi(strings.TrimSpace(v))
		if convErr != nil {
			return cfg, fmt.Errorf("CHAINSTORE_UTXO_WINDOW: %w", convErr)
		}
		cfg.UTXOWindow = n
	}
	return cfg, nil
}

func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Network) == "" {
		return errors.New("network is required")
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return errors.New("data_dir is required")
	}
	if err := validateAddr(cfg.BindAddr); err != nil {
		return fmt.Errorf("invalid bind_addr: %w", err)
	}
	logLevel := strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if _, ok := allowedLogLevels[logLevel]; !ok {
		return fmt.Errorf("invalid log_level %q", cfg.LogLevel)
	}
	if cfg.KVCacheSizeMiB < 0 {
		return errors.New("kv_cache_size_mib must be >= 0")
	}
	if cfg.UTXOWindow <= 0 {
		return errors.New("utxo_window must be > 0")
	}
	return nil
}

func validateAddr(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return errors.New("empty address")
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if strings.TrimSpace(port) == "" {
		return errors.New("missing port")
	}
	if strings.Contains(host, " ") {
		return errors.New("invalid host")
	}
	return nil
}
