// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package status tracks the current model-preparation phase.
package status

import "sync"

// =============================================================================
// STATES
// =============================================================================

// State identifies a phase of model preparation.
type State string

const (
	// StateIdle means no model activity has happened yet.
	StateIdle State = "idle"

	// StateChecking means the installed model list is being queried.
	StateChecking State = "checking"

	// StatePulling means a model download is in progress.
	StatePulling State = "pulling"

	// StateLoading means the model is present and being loaded by the runtime.
	StateLoading State = "loading"

	// StateSelected means a model was chosen but not yet prepared.
	StateSelected State = "selected"

	// StateReady means the last chat request completed successfully.
	StateReady State = "ready"

	// StateError means the last model operation failed.
	StateError State = "error"
)

// =============================================================================
// STATUS SNAPSHOT
// =============================================================================

// Status is a point-in-time snapshot of model preparation.
type Status struct {
	State   State  `json:"state"`
	Message string `json:"message"`
	Model   string `json:"model"`
}

// =============================================================================
// TRACKER
// =============================================================================

// Tracker holds the current Status behind a single mutex.
//
// The lock covers both reads and writes for their full critical section,
// and is never held across blocking external calls. Each Set replaces the
// prior value wholesale; no history is kept.
type Tracker struct {
	mu      sync.Mutex
	current Status
}

// NewTracker creates a tracker initialized to StateIdle.
func NewTracker() *Tracker {
	return &Tracker{
		current: Status{State: StateIdle},
	}
}

// Set replaces the current status with a new snapshot.
func (t *Tracker) Set(state State, message, model string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = Status{State: state, Message: message, Model: model}
}

// Get returns a copy of the current status.
func (t *Tracker) Get() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}
