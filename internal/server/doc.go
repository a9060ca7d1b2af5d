// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the HTTP API and web page for ollamadesk.
//
// Endpoints:
//   - GET  /             - chat web page
//   - POST /set-model    - select the current model
//   - GET  /models       - list locally installed models
//   - GET  /model-status - current model-preparation status
//   - POST /chat         - send a prompt, get the reply
//   - POST /save-chat    - persist a chat transcript
//   - GET  /chats        - list saved chats
//   - GET  /chats/{id}   - load one saved chat
//
// Every API response is a JSON envelope {ok: bool, ...}; failures carry
// {ok: false, error: "..."} and never crash the process. Handlers are
// stateless apart from the process-wide current model selection.
package server
