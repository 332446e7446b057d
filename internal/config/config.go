// Package config provides configuration types for the storefront client.
//
// Configuration is file-based (storefront.yaml) with environment overrides
// under the STOREFRONT_ prefix. Durations are kept as strings in the file
// and parsed by the accessor methods after validation.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Session storage backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
	BackendValkey = "valkey"
	BackendMemory = "memory"
)

// Config is the top-level storefront configuration.
type Config struct {
	// API configures the backend the client talks to.
	API APIConfig `yaml:"api" mapstructure:"api"`

	// Session configures where the credential pair is persisted.
	Session SessionConfig `yaml:"session" mapstructure:"session"`

	// Catalog configures read caching of catalog data.
	Catalog CatalogConfig `yaml:"catalog" mapstructure:"catalog"`

	// LogLevel is debug, info, warn or error. Default: "info".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"oneof=debug info warn error"`
}

// APIConfig configures the storefront REST backend.
type APIConfig struct {
	// BaseURL is the root every endpoint path is resolved against.
	// Default: "http://127.0.0.1:8000/".
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"required,url"`

	// Timeout bounds one logical request, including a refresh and replay.
	// Default: "15s".
	Timeout string `yaml:"timeout" mapstructure:"timeout" validate:"duration"`

	// RefreshPath is the token refresh endpoint, relative to BaseURL.
	RefreshPath string `yaml:"refresh_path" mapstructure:"refresh_path" validate:"required"`

	// LoginPath is the login endpoint, relative to BaseURL.
	LoginPath string `yaml:"login_path" mapstructure:"login_path" validate:"required"`
}

// SessionConfig selects the credential storage backend.
type SessionConfig struct {
	// Backend is one of file, sqlite, bolt, valkey or memory. Default: "file".
	Backend string `yaml:"backend" mapstructure:"backend" validate:"oneof=file sqlite bolt valkey memory"`

	// Path is the file used by the file, sqlite and bolt backends.
	// Default: ~/.storefront/credentials.<ext> depending on the backend.
	Path string `yaml:"path" mapstructure:"path"`

	// Valkey configures the valkey backend.
	Valkey ValkeyConfig `yaml:"valkey" mapstructure:"valkey"`
}

// ValkeyConfig configures a shared Valkey session.
type ValkeyConfig struct {
	// Addr is host:port of the Valkey server.
	Addr string `yaml:"addr" mapstructure:"addr" validate:"omitempty,hostname_port"`
	// Prefix namespaces the two token keys. Default: "storefront".
	Prefix string `yaml:"prefix" mapstructure:"prefix"`
}

// CatalogConfig configures catalog caching.
type CatalogConfig struct {
	// CacheTTL is how long categories, products and suggestions are reused.
	// "0s" disables caching. Default: "5m".
	CacheTTL string `yaml:"cache_ttl" mapstructure:"cache_ttl" validate:"duration"`
}

// SetDefaults applies sensible default values to the configuration.
func (c *Config) SetDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = "http://127.0.0.1:8000/"
	}
	if c.API.Timeout == "" {
		c.API.Timeout = "15s"
	}
	if c.API.RefreshPath == "" {
		c.API.RefreshPath = "accounts/login/refresh/"
	}
	if c.API.LoginPath == "" {
		c.API.LoginPath = "accounts/login/"
	}

	if c.Session.Backend == "" {
		c.Session.Backend = BackendFile
	}
	if c.Session.Path == "" {
		c.Session.Path = defaultSessionPath(c.Session.Backend)
	}
	if c.Session.Valkey.Prefix == "" {
		c.Session.Valkey.Prefix = "storefront"
	}

	if c.Catalog.CacheTTL == "" {
		c.Catalog.CacheTTL = "5m"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// defaultSessionPath returns the per-user credentials location for backend,
// or "" for backends that do not use a local file.
func defaultSessionPath(backend string) string {
	var name string
	switch backend {
	case BackendFile:
		name = "credentials.json"
	case BackendSQLite:
		name = "credentials.db"
	case BackendBolt:
		name = "credentials.bolt"
	default:
		return ""
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".storefront", name)
	}
	return filepath.Join(home, ".storefront", name)
}

// APITimeout returns the parsed request timeout.
func (c *Config) APITimeout() time.Duration {
	d, _ := time.ParseDuration(c.API.Timeout)
	return d
}

// CacheTTL returns the parsed catalog cache TTL.
func (c *Config) CacheTTL() time.Duration {
	d, _ := time.ParseDuration(c.Catalog.CacheTTL)
	return d
}

// UsesLocalFile reports whether the session backend stores a file on disk.
func (s SessionConfig) UsesLocalFile() bool {
	switch s.Backend {
	case BackendFile, BackendSQLite, BackendBolt:
		return true
	}
	return false
}
