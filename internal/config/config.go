// Package config loads client settings from a YAML file with environment
// overrides. Secrets are read from the environment only.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/roach88/rlchess/internal/model"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RLCHESS_"

// Config holds client settings.
type Config struct {
	RPCURL           string `yaml:"rpc_url" env:"RPC_URL"`
	ToriiURL         string `yaml:"torii_url" env:"TORII_URL"`
	ManifestPath     string `yaml:"manifest" env:"MANIFEST"`
	Namespace        string `yaml:"namespace" env:"NAMESPACE"`
	ChainID          string `yaml:"chain_id" env:"CHAIN_ID"`
	StorePath        string `yaml:"store" env:"STORE"`
	KeystorePath     string `yaml:"keystore" env:"KEYSTORE"`
	AccountClassHash string `yaml:"account_class_hash" env:"ACCOUNT_CLASS_HASH"`
	MasterAddress    string `yaml:"master_address" env:"MASTER_ADDRESS"`

	RetryInterval     time.Duration `yaml:"retry_interval" env:"RETRY_INTERVAL"`
	WaitTimeout       time.Duration `yaml:"wait_timeout" env:"WAIT_TIMEOUT"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval" env:"RECONNECT_INTERVAL"`
	MetricsAddr       string        `yaml:"metrics_addr" env:"METRICS_ADDR"`

	// Secrets: environment only.
	MasterPrivateKey   string `yaml:"-" env:"MASTER_PRIVATE_KEY"`
	KeystorePassphrase string `yaml:"-" env:"KEYSTORE_PASSPHRASE"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		RPCURL:            "http://localhost:5050",
		ToriiURL:          "ws://localhost:8080/ws",
		ManifestPath:      "manifest_dev.json",
		Namespace:         model.Namespace,
		StorePath:         filepath.Join(".rlchess", "state.db"),
		KeystorePath:      filepath.Join(".rlchess", "keystore.json"),
		RetryInterval:     100 * time.Millisecond,
		ReconnectInterval: time.Second,
	}
}

// Load reads path (when non-empty) over the defaults and applies
// RLCHESS_* environment overrides from the process environment.
func Load(path string) (Config, error) {
	return LoadWithEnv(path, nil)
}

// LoadWithEnv is Load with an explicit environment. A nil map means the
// process environment.
func LoadWithEnv(path string, environ map[string]string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix, Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that have no sensible fallback.
func (c Config) Validate() error {
	if c.Namespace == "" {
		return fmt.Errorf("config: namespace is required")
	}
	if c.RetryInterval <= 0 {
		return fmt.Errorf("config: retry_interval must be positive")
	}
	if c.ReconnectInterval <= 0 {
		return fmt.Errorf("config: reconnect_interval must be positive")
	}
	if c.WaitTimeout < 0 {
		return fmt.Errorf("config: wait_timeout must not be negative")
	}
	return nil
}

// RequireChain reports an error when settings needed to submit
// transactions are missing.
func (c Config) RequireChain() error {
	switch {
	case c.RPCURL == "":
		return fmt.Errorf("config: rpc_url is required")
	case c.ManifestPath == "":
		return fmt.Errorf("config: manifest is required")
	}
	return nil
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.MasterPrivateKey != "" {
		c.MasterPrivateKey = "***"
	}
	if c.KeystorePassphrase != "" {
		c.KeystorePassphrase = "***"
	}
	return c
}
