package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cast"
)

const (
	configSubdir   = "config"
	configFileName = "converge_config.json"
)

//go:embed default_config.json
var defaultConfigJSON []byte

// Default returns the embedded default configuration.
func Default() (Config, error) {
	var cfg Config
	if err := json.Unmarshal(defaultConfigJSON, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse embedded default config: %w", err)
	}
	if err := validateConfig(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg *Config) error {
	// Validate log level
	if cfg.LogLevel < 0 || cfg.LogLevel > 5 {
		return fmt.Errorf("log level must be between 0 and 5")
	}

	// Validate log format
	if cfg.LogFormat == "" {
		cfg.LogFormat = "console"
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return fmt.Errorf("log format must be 'json' or 'console'")
	}

	// Set defaults for the API server
	if cfg.APIPort == 0 {
		cfg.APIPort = 8080
	}

	// Set defaults for local storage
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to resolve home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".converge")
	}
	if cfg.TradeDBFile == "" {
		cfg.TradeDBFile = "trades.db"
	}
	if cfg.LedgerFile == "" {
		cfg.LedgerFile = "ledger.db"
	}

	// Set defaults for the relay trigger. An empty endpoint stays empty:
	// that is a legal, degraded configuration.
	if cfg.Relay.TriggerTimeoutSeconds == 0 {
		cfg.Relay.TriggerTimeoutSeconds = 15
	}

	if cfg.Relay.Identity == "" {
		return fmt.Errorf("relay identity must be configured")
	}
	if cfg.IssuerAddress == "" {
		return fmt.Errorf("issuer address must be configured")
	}

	return nil
}

// Save writes the given config to <basePath>/config/converge_config.json.
func Save(cfg *Config, basePath string) error {
	if err := validateConfig(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	configDir := filepath.Join(basePath, configSubdir)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := filepath.Join(configDir, configFileName)
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Load reads and returns the config from <basePath>/config/converge_config.json,
// applies environment overrides, and validates the result.
func Load(basePath string) (Config, error) {
	configFile := filepath.Join(basePath, configSubdir, configFileName)
	data, err := os.ReadFile(filepath.Clean(configFile))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnvOverrides lets environment variables win over the file values.
// Only operational knobs are overridable; ledger authorities stay in the file.
func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("CONVERGE_API_PORT"); ok {
		cfg.APIPort = cast.ToInt(v)
	}
	if v, ok := os.LookupEnv("CONVERGE_LOG_LEVEL"); ok {
		cfg.LogLevel = cast.ToInt(v)
	}
	if v, ok := os.LookupEnv("CONVERGE_LOG_FORMAT"); ok {
		cfg.LogFormat = v
	}
	if v, ok := os.LookupEnv("CONVERGE_DATA_DIR"); ok {
		cfg.DataDir = v
	}
	if v, ok := os.LookupEnv("CONVERGE_RELAY_TRIGGER_ENDPOINT"); ok {
		cfg.Relay.TriggerEndpoint = v
	}
	if v, ok := os.LookupEnv("CONVERGE_RELAY_TRIGGER_TIMEOUT"); ok {
		cfg.Relay.TriggerTimeoutSeconds = cast.ToInt(v)
	}
}
