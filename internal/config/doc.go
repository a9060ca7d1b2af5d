// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for
// ollamadesk.
//
// Configuration is TOML with sensible defaults, environment variable
// overrides, and validation. Locations in order of precedence:
//
//   - an explicit path given with -config
//   - ~/.ollamadesk/config.toml
//   - built-in defaults
//
// Environment overrides (applied after the file):
//
//   - OLLAMADESK_ADDR: overrides server.addr
//   - OLLAMADESK_MODEL: overrides runtime.default_model
//   - OLLAMADESK_BINARY: overrides runtime.binary
//   - OLLAMADESK_OLLAMA_URL: overrides runtime.ollama_url
//   - OLLAMADESK_CHATS_DIR: overrides storage.chats_dir
//
// A Watcher can reload the file on change via fsnotify, so edits to
// config.toml take effect without restarting the server.
package config
