package config

// Config holds SDK-wide settings. Loaded from JSON with embedded defaults;
// a .env overlay may override the external endpoints.
type Config struct {
	// Logging
	LogLevel   int    `json:"log_level"`   // zerolog levels: -1 trace .. 5 panic
	LogFormat  string `json:"log_format"`  // "json" or "console"
	LogSampler bool   `json:"log_sampler"` // sample 1-in-5 when true

	// Ledger access (read-only)
	LedgerRPCURL              string `json:"ledger_rpc_url"`
	CheckpointContractAddress string `json:"checkpoint_contract_address"`

	// Content-addressed store gateway
	StoreGatewayURL string `json:"store_gateway_url"`

	// Recovery tuning
	HostQueryTimeoutSeconds  int `json:"host_query_timeout_seconds"`
	DeltaFetchTimeoutSeconds int `json:"delta_fetch_timeout_seconds"`
	FetchConcurrency         int `json:"fetch_concurrency"`

	// Optional local cache of recovered conversations
	DatabasePath string `json:"database_path"`
}
