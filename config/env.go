package config

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
)

// Environment variable names recognized as config overrides.
const (
	EnvLedgerRPCURL       = "AXON_LEDGER_RPC_URL"
	EnvContractAddress    = "AXON_CHECKPOINT_CONTRACT"
	EnvStoreGatewayURL    = "AXON_STORE_GATEWAY_URL"
	EnvFetchConcurrency   = "AXON_FETCH_CONCURRENCY"
	EnvDatabasePath       = "AXON_DATABASE_PATH"
)

var loadEnvOnce sync.Once

// loadDotEnv loads a .env file from the working directory or up to five
// parent directories. Safe to call repeatedly; only loads once. A missing
// .env file is not an error.
func loadDotEnv() {
	loadEnvOnce.Do(func() {
		if godotenv.Load() == nil {
			return
		}
		dir, err := os.Getwd()
		if err != nil {
			return
		}
		for i := 0; i < 5; i++ {
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				return
			}
		}
	})
}

// applyEnvOverrides overlays environment variables onto a loaded config.
func applyEnvOverrides(cfg *Config) {
	loadDotEnv()

	if v := os.Getenv(EnvLedgerRPCURL); v != "" {
		cfg.LedgerRPCURL = v
	}
	if v := os.Getenv(EnvContractAddress); v != "" {
		cfg.CheckpointContractAddress = v
	}
	if v := os.Getenv(EnvStoreGatewayURL); v != "" {
		cfg.StoreGatewayURL = v
	}
	if v := os.Getenv(EnvFetchConcurrency); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.FetchConcurrency = n
		}
	}
	if v := os.Getenv(EnvDatabasePath); v != "" {
		cfg.DatabasePath = v
	}
}
