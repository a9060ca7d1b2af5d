// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for
// ollamadesk.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete ollamadesk configuration.
type Config struct {
	Version string `toml:"version"`

	// Server settings
	Server ServerConfig `toml:"server"`

	// Runtime (Ollama) settings
	Runtime RuntimeConfig `toml:"runtime"`

	// Storage settings
	Storage StorageConfig `toml:"storage"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// Addr is the listen address (default: "127.0.0.1:8080")
	Addr string `toml:"addr"`

	// RateLimitRPS is the per-client request rate (default: 10)
	RateLimitRPS float64 `toml:"rate_limit_rps"`

	// RateLimitBurst is the per-client burst allowance (default: 20)
	RateLimitBurst int `toml:"rate_limit_burst"`
}

// RuntimeConfig contains local Ollama runtime configuration.
type RuntimeConfig struct {
	// Binary is the Ollama executable name or path (default: "ollama")
	Binary string `toml:"binary"`

	// OllamaURL is the Ollama API base URL (default: http://127.0.0.1:11434)
	OllamaURL string `toml:"ollama_url"`

	// DefaultModel is the model used before the client selects one
	DefaultModel string `toml:"default_model"`
}

// StorageConfig contains persistence configuration.
type StorageConfig struct {
	// ChatsDir holds one JSON file per saved chat
	// Default: ~/.ollamadesk/chats/
	ChatsDir string `toml:"chats_dir"`

	// UsageDBPath is the SQLite usage log location
	// Default: ~/.ollamadesk/usage.db
	UsageDBPath string `toml:"usage_db_path"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in default configuration.
func Default() *Config {
	return &Config{
		Version: "1.0",
		Server: ServerConfig{
			Addr:           "127.0.0.1:8080",
			RateLimitRPS:   10,
			RateLimitBurst: 20,
		},
		Runtime: RuntimeConfig{
			Binary:       "ollama",
			OllamaURL:    "http://127.0.0.1:11434",
			DefaultModel: "gemma3:270m",
		},
		Storage: StorageConfig{},
	}
}

// SetDefaults fills any zero-valued fields with defaults.
func (c *Config) SetDefaults() {
	def := Default()

	if c.Version == "" {
		c.Version = def.Version
	}
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
	if c.Server.RateLimitRPS <= 0 {
		c.Server.RateLimitRPS = def.Server.RateLimitRPS
	}
	if c.Server.RateLimitBurst <= 0 {
		c.Server.RateLimitBurst = def.Server.RateLimitBurst
	}
	if c.Runtime.Binary == "" {
		c.Runtime.Binary = def.Runtime.Binary
	}
	if c.Runtime.OllamaURL == "" {
		c.Runtime.OllamaURL = def.Runtime.OllamaURL
	}
	if c.Runtime.DefaultModel == "" {
		c.Runtime.DefaultModel = def.Runtime.DefaultModel
	}

	if c.Storage.ChatsDir == "" {
		if dir, err := ConfigDir(); err == nil {
			c.Storage.ChatsDir = filepath.Join(dir, "chats")
		}
	}
	if c.Storage.UsageDBPath == "" {
		if dir, err := ConfigDir(); err == nil {
			c.Storage.UsageDBPath = filepath.Join(dir, "usage.db")
		}
	}
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns the ollamadesk configuration directory (~/.ollamadesk).
func ConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".ollamadesk"), nil
}

// ConfigPath returns the default config file path (~/.ollamadesk/config.toml).
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOADING
// =============================================================================

// Load loads configuration from the default location. A missing file is
// not an error; defaults apply.
func Load() (*Config, error) {
	cfg := Default()

	path, err := ConfigPath()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := loadTOML(cfg, path); err != nil {
				return nil, fmt.Errorf("failed to load config: %w", err)
			}
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if err := loadTOML(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// loadTOML decodes a TOML file over cfg.
func loadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// Save writes the configuration to the default location.
func Save(cfg *Config) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies OLLAMADESK_* environment variables over the
// loaded configuration.
func (c *Config) ApplyEnvOverrides() {
	if addr := os.Getenv("OLLAMADESK_ADDR"); addr != "" {
		c.Server.Addr = addr
	}

	if model := os.Getenv("OLLAMADESK_MODEL"); model != "" {
		c.Runtime.DefaultModel = model
	}

	if binary := os.Getenv("OLLAMADESK_BINARY"); binary != "" {
		c.Runtime.Binary = binary
	}

	if u := os.Getenv("OLLAMADESK_OLLAMA_URL"); u != "" {
		c.Runtime.OllamaURL = u
	}

	if dir := os.Getenv("OLLAMADESK_CHATS_DIR"); dir != "" {
		c.Storage.ChatsDir = dir
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError describes one invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.Addr != "" && !strings.Contains(c.Server.Addr, ":") {
		return ValidationError{Field: "server.addr", Message: "must be host:port"}
	}

	if c.Runtime.OllamaURL != "" {
		u, err := url.Parse(c.Runtime.OllamaURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return ValidationError{Field: "runtime.ollama_url", Message: "must be an http(s) URL"}
		}
	}

	if c.Server.RateLimitRPS < 0 {
		return ValidationError{Field: "server.rate_limit_rps", Message: "must not be negative"}
	}

	return nil
}
