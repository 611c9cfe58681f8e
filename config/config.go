// Package config loads the server configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the contents of the server config file.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr"`

	// DBPath is the SQLite database path. ":memory:" for in-memory.
	DBPath string `yaml:"db_path"`

	// JWTSecret signs bearer tokens. Must be set outside of dev.
	JWTSecret string `yaml:"jwt_secret"`

	// TokenTTL is the bearer token lifetime.
	TokenTTL time.Duration `yaml:"token_ttl"`

	// ReconcilerQueue is the reconciliation job queue capacity.
	ReconcilerQueue int `yaml:"reconciler_queue"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Addr:            ":8080",
		DBPath:          "loyalty.db",
		JWTSecret:       "dev-secret-do-not-use-in-production",
		TokenTTL:        time.Hour,
		ReconcilerQueue: 64,
	}
}

// Load reads the config from path. A missing file yields the defaults;
// fields absent from the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Addr == "" {
		cfg.Addr = Default().Addr
	}
	if cfg.DBPath == "" {
		cfg.DBPath = Default().DBPath
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = Default().TokenTTL
	}
	if cfg.ReconcilerQueue <= 0 {
		cfg.ReconcilerQueue = Default().ReconcilerQueue
	}
	return cfg, nil
}
