// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package status tracks the current model-preparation phase.
//
// A single process-wide Tracker holds the latest Status snapshot. Every
// write replaces the whole value under one mutex, so concurrent readers
// never observe a partially updated record.
//
// # Usage
//
//	tracker := status.NewTracker()
//	tracker.Set(status.StatePulling, "Downloading model...", "gemma3:270m")
//	snap := tracker.Get()
//
// The tracker is never persisted; it lives for the process lifetime and
// starts in StateIdle.
package status
