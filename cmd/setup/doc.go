// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Command setup runs environment preflight checks for ollamadesk and can
// pull the configured default model.
//
// Checks:
//   - operating system and architecture
//   - the Ollama binary on PATH
//   - the Ollama service responding to `ollama list`
//   - free disk space in the home directory
//   - the chats directory being writable
//   - whether the default model is installed
//
// Usage:
//
//	ollamadesk-setup            run the checks
//	ollamadesk-setup -pull      also pull the default model if absent
//	ollamadesk-setup -init      also write a default config.toml
package main
