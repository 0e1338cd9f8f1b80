// Package config loads and validates cmd/ssiagentd's runtime
// configuration: a YAML file layered under CLI flags, the same two-stage
// shape the teacher's cmd/walletd/main.go builds by hand from flag.String
// defaults, generalized here into a struct validated with
// go-playground/validator.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration for cmd/ssiagentd.
type Config struct {
	Host    string `yaml:"host" validate:"required,hostname_port|hostname|fqdn|ip"`
	Port    string `yaml:"port" validate:"required,numeric"`
	DataDir string `yaml:"data_dir"`

	WalletPath string `yaml:"wallet_path" validate:"required"`
	GenesisPath string `yaml:"genesis_path"`

	TAA TAAPolicy `yaml:"taa"`
}

// TAAPolicy mirrors the ledger's Transaction Author Agreement acceptance
// flags (§4.4): whether acceptance is required before submitting, and
// the mechanism recorded in the acceptance block.
type TAAPolicy struct {
	Required  bool   `yaml:"required"`
	Mechanism string `yaml:"mechanism" validate:"required_if=Required true"`
}

var validate = validator.New()

// Default returns the configuration cmd/ssiagentd falls back to when no
// file is given, matching cmd/walletd/main.go's flag.String defaults.
func Default() *Config {
	return &Config{
		Host:        "127.0.0.1",
		Port:        "8080",
		DataDir:     "",
		WalletPath:  "wallet.db",
		GenesisPath: "",
		TAA:         TAAPolicy{Required: false, Mechanism: "on_file"},
	}
}

// Load reads and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Flags are the CLI overrides cmd/ssiagentd/main.go parses with the
// standard flag package, matching cmd/walletd/main.go's -port/-host/
// -data-dir usage, plus -genesis for the ledger client.
type Flags struct {
	Host        string
	Port        string
	DataDir     string
	GenesisPath string
}

// ApplyFlags layers non-empty CLI flag values over cfg, the same
// precedence cmd/walletd/main.go gives its flag.String defaults over an
// unset environment.
func (c *Config) ApplyFlags(f Flags) {
	if f.Host != "" {
		c.Host = f.Host
	}
	if f.Port != "" {
		c.Port = f.Port
	}
	if f.DataDir != "" {
		c.DataDir = f.DataDir
	}
	if f.GenesisPath != "" {
		c.GenesisPath = f.GenesisPath
	}
}

// Validate re-runs struct validation, for use after ApplyFlags mutates a
// loaded config.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
