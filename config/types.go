package config

// Config holds all settings for the converged process.
type Config struct {
	// Log Config
	LogLevel   int    `json:"log_level"`   // e.g., 0 = debug, 1 = info, etc.
	LogFormat  string `json:"log_format"`  // "json" or "console"
	LogSampler bool   `json:"log_sampler"` // if true, samples logs (e.g., 1 in 5)

	// Service Config
	APIPort int    `json:"api_port"` // Port for the HTTP API server (default: 8080)
	DataDir string `json:"data_dir"` // Base directory for local state (default: ~/.converge)

	// Storage Config
	TradeDBFile    string `json:"trade_db_file"`    // SQLite file for the orchestration store (default: trades.db)
	LedgerFile     string `json:"ledger_file"`      // bbolt file for the token ledger (default: ledger.db)
	InMemoryStores bool   `json:"in_memory_stores"` // ephemeral stores, used in tests and local runs

	// Ledger authorities
	IssuerAddress       string   `json:"issuer_address"`       // identity allowed to create instruments and issue
	ComplianceAddresses []string `json:"compliance_addresses"` // identities allowed to manage whitelists

	// Relay network
	Relay RelayConfig `json:"relay"`
}

// RelayConfig configures both directions of the relay integration: the
// trigger endpoint converged calls, and the identities the relay uses when
// it calls back into the ledger dispatcher.
type RelayConfig struct {
	// TriggerEndpoint is the relay's issuance intake URL. An empty value is
	// a non-fatal failure mode: trades still persist, the trigger call
	// reports an upstream failure.
	TriggerEndpoint string `json:"trigger_endpoint"`

	// TriggerTimeoutSeconds bounds the synchronous trigger round-trip (default: 15).
	TriggerTimeoutSeconds int `json:"trigger_timeout_seconds"`

	// Identity is the caller identity the relay presents to the ledger
	// dispatcher. PreviousIdentity, when set, is also accepted so the relay
	// key can rotate without a hard cutover.
	Identity         string `json:"identity"`
	PreviousIdentity string `json:"previous_identity,omitempty"`
}
