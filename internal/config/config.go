// Package config reads and writes ledger.yaml and overlays settings from the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the config file at the root of a data directory.
const FileName = "ledger.yaml"

// Environment variables read by ApplyEnv.
const (
	EnvStoreDriver = "LEDGER_STORE_DRIVER"
	EnvStoreDSN    = "LEDGER_STORE_DSN"
	EnvHTTPAddr    = "LEDGER_HTTP_ADDR"
	EnvActor       = "LEDGER_ACTOR"
)

// Config represents the top-level ledger.yaml configuration.
type Config struct {
	Business BusinessConfig `yaml:"business"`
	Store    StoreConfig    `yaml:"store"`
	Server   ServerConfig   `yaml:"server"`
	Defaults DefaultsConfig `yaml:"defaults"`
	Actor    string         `yaml:"actor,omitempty"`
}

// BusinessConfig identifies the business whose books this directory holds.
type BusinessConfig struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	EntityType string `yaml:"entity_type"`
	Currency   string `yaml:"currency"`
}

// StoreConfig selects the storage backend. For file backends a relative DSN
// is resolved against the data directory.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn,omitempty"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultsConfig holds the account codes used when a command or an import
// does not name one.
type DefaultsConfig struct {
	CashAccount    string `yaml:"cash_account"`
	IncomeAccount  string `yaml:"income_account"`
	ExpenseAccount string `yaml:"expense_account"`
}

// Load reads a ledger.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new data directory.
// The business ID is left for the caller to assign.
func Default(businessName, entityType string) *Config {
	return &Config{
		Business: BusinessConfig{
			Name:       businessName,
			EntityType: entityType,
			Currency:   "USD",
		},
		Store: StoreConfig{
			Driver: "sqlite",
			DSN:    "data/ledger.db",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Defaults: DefaultsConfig{
			CashAccount:    "1100",
			IncomeAccount:  "4000",
			ExpenseAccount: "5000",
		},
	}
}

// ApplyEnv loads envFile into the process environment when it exists, then
// overrides config fields from LEDGER_* variables. Variables already set in
// the environment win over the file.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	if v := os.Getenv(EnvStoreDriver); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv(EnvStoreDSN); v != "" {
		c.Store.DSN = v
	}
	if v := os.Getenv(EnvHTTPAddr); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(EnvActor); v != "" {
		c.Actor = v
	}
	return nil
}

// Validate reports the settings a usable config must have.
func (c *Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Business.ID) == "" {
		missing = append(missing, "business.id")
	}
	if strings.TrimSpace(c.Store.Driver) == "" {
		missing = append(missing, "store.driver")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ResolveDSN returns the store DSN with relative file paths anchored at
// repoRoot. Postgres connection strings and the memory driver pass through.
func (c *Config) ResolveDSN(repoRoot string) string {
	switch strings.ToLower(c.Store.Driver) {
	case "sqlite", "sqlite3", "bolt", "bbolt":
		if c.Store.DSN != "" && !filepath.IsAbs(c.Store.DSN) {
			return filepath.Join(repoRoot, c.Store.DSN)
		}
	}
	return c.Store.DSN
}
