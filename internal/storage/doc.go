// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides chat transcript persistence for ollamadesk.
//
// Each transcript lives in its own JSON file named <id>.json under the
// store's base directory. Identifiers are sanitized to a filename-safe
// alphabet before any filesystem access, so a stored id never escapes the
// base directory. Writes go through an atomic temp-file-and-rename so a
// crash mid-save never leaves a half-written transcript behind.
//
// Concurrent saves to the same id are resolved last-writer-wins at the
// file level; the store does no cross-process locking.
//
// # Key Types
//
//   - Transcript: a full saved chat (id, title, model, messages)
//   - Summary: the listing view of a transcript, without messages
//   - Store: Save / Load / List / Delete over a directory of JSON files
//   - TitleFunc: optional callback that names untitled chats
package storage
