// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the client for the local Ollama runtime.
//
// Model management (list, pull) goes through the `ollama` CLI as a
// subprocess; chat completions go through the runtime's HTTP API. The two
// surfaces are deliberately hidden behind the narrow Runtime interface so
// the CLI can be swapped for a pure API client without touching callers.
//
// # Key Types
//
//   - Runtime: the interface callers program against
//   - CLIRuntime: subprocess + HTTP implementation of Runtime
//   - Manager: EnsurePulled orchestration that drives the status tracker
//   - ClientError: typed error with category and cause
//
// # Usage
//
//	rt := ollama.NewCLIRuntime(nil)
//	mgr := ollama.NewManager(rt, tracker)
//	if err := mgr.EnsurePulled(ctx, "gemma3:270m"); err != nil {
//	    // record and surface the failure
//	}
//	reply, err := rt.Chat(ctx, "gemma3:270m", messages)
package ollama
