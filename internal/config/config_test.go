// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for
// ollamadesk.
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.Equal(t, "ollama", cfg.Runtime.Binary)
	assert.Equal(t, "http://127.0.0.1:11434", cfg.Runtime.OllamaURL)
	assert.Equal(t, "gemma3:270m", cfg.Runtime.DefaultModel)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromPath(t *testing.T) {
	path := writeConfig(t, `
version = "1.0"

[server]
addr = "0.0.0.0:9000"

[runtime]
default_model = "llama3.1:8b"
`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.Equal(t, "llama3.1:8b", cfg.Runtime.DefaultModel)

	// Unset fields fall back to defaults.
	assert.Equal(t, "ollama", cfg.Runtime.Binary)
	assert.Equal(t, "http://127.0.0.1:11434", cfg.Runtime.OllamaURL)
}

func TestLoadFromPath_Missing(t *testing.T) {
	_, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadFromPath_Malformed(t *testing.T) {
	path := writeConfig(t, `addr = [not toml`)

	_, err := LoadFromPath(path)
	assert.Error(t, err)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("OLLAMADESK_ADDR", "127.0.0.1:7777")
	t.Setenv("OLLAMADESK_MODEL", "qwen2.5:7b")
	t.Setenv("OLLAMADESK_OLLAMA_URL", "http://127.0.0.1:11435")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "127.0.0.1:7777", cfg.Server.Addr)
	assert.Equal(t, "qwen2.5:7b", cfg.Runtime.DefaultModel)
	assert.Equal(t, "http://127.0.0.1:11435", cfg.Runtime.OllamaURL)
}

func TestEnvOverridesBeatFile(t *testing.T) {
	path := writeConfig(t, `
[runtime]
default_model = "from-file"
`)
	t.Setenv("OLLAMADESK_MODEL", "from-env")

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Runtime.DefaultModel)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"addr without port", func(c *Config) { c.Server.Addr = "localhost" }, true},
		{"bad ollama url scheme", func(c *Config) { c.Runtime.OllamaURL = "ftp://x" }, true},
		{"garbage ollama url", func(c *Config) { c.Runtime.OllamaURL = "://" }, true},
		{"negative rate limit", func(c *Config) { c.Server.RateLimitRPS = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSetDefaults_FillsStoragePaths(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()

	assert.NotEmpty(t, cfg.Storage.ChatsDir)
	assert.NotEmpty(t, cfg.Storage.UsageDBPath)
}
