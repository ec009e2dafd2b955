package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	configSubdir   = "config"
	configFileName = "axon_config.json"
)

//go:embed default_config.json
var defaultConfigJSON []byte

func validateConfig(cfg *Config) error {
	// Validate log level
	if cfg.LogLevel < -1 || cfg.LogLevel > 5 {
		return fmt.Errorf("log level must be between -1 and 5")
	}

	// Validate log format
	if cfg.LogFormat == "" {
		cfg.LogFormat = "console"
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return fmt.Errorf("log format must be 'json' or 'console'")
	}

	// Set defaults for recovery tuning
	if cfg.HostQueryTimeoutSeconds == 0 {
		cfg.HostQueryTimeoutSeconds = 10
	}
	if cfg.DeltaFetchTimeoutSeconds == 0 {
		cfg.DeltaFetchTimeoutSeconds = 30
	}
	if cfg.FetchConcurrency == 0 {
		cfg.FetchConcurrency = 4
	}
	if cfg.FetchConcurrency < 1 {
		return fmt.Errorf("fetch concurrency must be at least 1")
	}

	// Default to a local node if no ledger RPC URL is provided
	if cfg.LedgerRPCURL == "" {
		cfg.LedgerRPCURL = "http://localhost:8545"
	}
	if cfg.StoreGatewayURL == "" {
		cfg.StoreGatewayURL = "http://localhost:8080"
	}

	return nil
}

// Default returns the embedded default configuration.
func Default() (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(defaultConfigJSON, &cfg); err != nil {
		return nil, fmt.Errorf("invalid embedded default config: %w", err)
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// Load reads <basePath>/config/axon_config.json, falling back to the embedded
// defaults when the file does not exist. Environment overrides apply last.
func Load(basePath string) (*Config, error) {
	configPath := filepath.Join(basePath, configSubdir, configFileName)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Default()
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// Save writes the given config to <basePath>/config/axon_config.json.
func Save(cfg *Config, basePath string) error {
	if err := validateConfig(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	configDir := filepath.Join(basePath, configSubdir)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	configPath := filepath.Join(configDir, configFileName)
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
