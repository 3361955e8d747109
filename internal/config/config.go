// Package config loads the chainpulse TOML configuration file.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// CometVersion selects the CometBFT RPC compatibility dialect a chain speaks.
type CometVersion string

const (
	CometV034 CometVersion = "0.34"
	CometV037 CometVersion = "0.37"

	defaultCometVersion = CometV034
)

// Config is the root of chainpulse.toml.
type Config struct {
	Database Database          `toml:"database"`
	Metrics  Metrics           `toml:"metrics"`
	Chains   map[string]*Chain `toml:"chains"`
}

// Database configures the embedded packet store.
type Database struct {
	Path string `toml:"path"`
}

// Metrics configures the Prometheus exposition endpoint and its collaborators.
type Metrics struct {
	Enabled         bool   `toml:"enabled"`
	Port            uint16 `toml:"port"`
	PopulateOnStart bool   `toml:"populate_on_start"`
	StuckPackets    bool   `toml:"stuck_packets"`
}

// Chain configures one chain's consensus-node endpoint.
type Chain struct {
	URL          string       `toml:"url"`
	CometVersion CometVersion `toml:"comet_version"`
}

// Load reads and parses the TOML file at path. A missing file or malformed
// TOML is a fatal startup error (§7.1 of the design).
func Load(path string) (*Config, error) {
	var cfg Config

	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("loading config from %q: %w", path, err)
	}

	if len(cfg.Chains) == 0 {
		return nil, fmt.Errorf("config %q declares no [chains.*]", path)
	}

	for id, chain := range cfg.Chains {
		if chain.URL == "" {
			return nil, fmt.Errorf("chain %q: missing url", id)
		}
		if chain.CometVersion == "" {
			chain.CometVersion = defaultCometVersion
		}
		if chain.CometVersion != CometV034 && chain.CometVersion != CometV037 {
			return nil, fmt.Errorf("chain %q: unsupported comet_version %q", id, chain.CometVersion)
		}
	}

	// stuck_packets defaults to true unless the key was present and false.
	if !meta.IsDefined("metrics", "stuck_packets") {
		cfg.Metrics.StuckPackets = true
	}

	return &cfg, nil
}
