// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the client for the local Ollama runtime.
package ollama

import (
	"context"

	"github.com/jeranaias/ollamadesk/internal/status"
)

// =============================================================================
// MANAGER
// =============================================================================

// Manager prepares models before chat requests, publishing each phase to
// the status tracker as an observable side effect.
type Manager struct {
	runtime Runtime
	tracker *status.Tracker
}

// NewManager creates a manager over the given runtime and tracker.
func NewManager(runtime Runtime, tracker *status.Tracker) *Manager {
	return &Manager{
		runtime: runtime,
		tracker: tracker,
	}
}

// Runtime returns the underlying runtime client.
func (m *Manager) Runtime() Runtime {
	return m.runtime
}

// EnsurePulled makes sure a model is installed, pulling it when absent.
//
// Status transitions: checking, then either loading (model present) or
// pulling followed by loading. When the pull fails the status is left at
// pulling and the error returned; the caller owns recording the terminal
// error state. A model already installed never triggers a pull.
func (m *Manager) EnsurePulled(ctx context.Context, model string) error {
	m.tracker.Set(status.StateChecking, "Checking installed models...", model)

	models, err := m.runtime.ListModels(ctx)
	if err != nil {
		return err
	}

	for _, name := range models {
		if name == model {
			m.tracker.Set(status.StateLoading, "Loading model...", model)
			return nil
		}
	}

	m.tracker.Set(status.StatePulling, "Pulling model "+model+"...", model)
	if err := m.runtime.PullModel(ctx, model); err != nil {
		return err
	}

	m.tracker.Set(status.StateLoading, "Loading model...", model)
	return nil
}
