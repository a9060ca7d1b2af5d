// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry provides local usage logging for ollamadesk.
//
// Every completed chat exchange is recorded in a small SQLite database:
// which model answered, how large the prompt and reply were, and how long
// generation took. The log is strictly local; nothing leaves the machine.
//
// Recording is best-effort. A failed insert is reported to the caller so
// it can be logged, but chat handling never depends on the usage log
// being writable.
package telemetry
