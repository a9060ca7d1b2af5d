// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides chat transcript persistence for ollamadesk.
package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/jeranaias/ollamadesk/internal/ollama"
	"github.com/jeranaias/ollamadesk/internal/util"
)

// =============================================================================
// TRANSCRIPT TYPES
// =============================================================================

// Transcript represents a persisted chat.
type Transcript struct {
	ID       string           `json:"id"`
	Title    string           `json:"title"`
	Model    string           `json:"model"`
	Messages []ollama.Message `json:"messages"`

	// UpdatedAt is an RFC 3339 UTC timestamp ("2025-01-02T15:04:05Z").
	// Kept as a string so the file format is stable across Go versions.
	UpdatedAt string `json:"updatedAt"`
}

// Summary contains the listing view of a transcript, without messages.
type Summary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Model     string `json:"model"`
	UpdatedAt string `json:"updatedAt"`
}

// TitleFunc names an untitled chat from its first user message. The model
// is the one the chat was held with.
type TitleFunc func(ctx context.Context, model, firstUserMessage string) (string, error)

// =============================================================================
// ID SANITIZATION
// =============================================================================

var idUnsafe = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// SanitizeID strips every character outside [A-Za-z0-9_-] from an id.
// The result of a sanitized id is itself; an id with nothing safe in it
// sanitizes to the empty string.
func SanitizeID(id string) string {
	return idUnsafe.ReplaceAllString(id, "")
}

// =============================================================================
// STORE
// =============================================================================

// Store handles transcript persistence over a directory of JSON files.
type Store struct {
	// BaseDir is the directory holding one <id>.json file per transcript.
	BaseDir string

	titleFn TitleFunc
}

// NewStore creates a store rooted at baseDir, creating it if needed.
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}

	return &Store{BaseDir: baseDir}, nil
}

// WithTitleFunc sets the callback used to name untitled chats and returns
// the store for chaining. Without one, untitled chats stay untitled.
func (s *Store) WithTitleFunc(fn TitleFunc) *Store {
	s.titleFn = fn
	return s
}

// =============================================================================
// SAVE OPERATIONS
// =============================================================================

// Save persists a transcript and returns the sanitized id it was stored
// under. The id is sanitized first; an id that sanitizes to nothing is
// rejected. A nil message slice is rejected.
//
// Title resolution: an explicit title wins. An empty title falls back to
// the title already on disk for this id, and only a chat with no prior
// title gets one generated from its first user message. Generation
// failures are swallowed; the chat is saved untitled.
func (s *Store) Save(ctx context.Context, id, title, model string, messages []ollama.Message) (string, error) {
	clean := SanitizeID(id)
	if clean == "" {
		return "", ErrInvalidChatID
	}

	if messages == nil {
		return "", ErrNoMessages
	}

	if title == "" {
		if existing, err := s.Load(clean); err == nil {
			title = existing.Title
		}
	}

	if title == "" {
		title = s.generateTitle(ctx, model, messages)
	}

	transcript := &Transcript{
		ID:        clean,
		Title:     title,
		Model:     model,
		Messages:  messages,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}

	data, err := json.MarshalIndent(transcript, "", "  ")
	if err != nil {
		return "", err
	}

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	if err := util.AtomicWriteFile(s.filePath(clean), data, 0644); err != nil {
		return "", err
	}

	return clean, nil
}

// generateTitle asks the title callback to name the chat from its first
// user message. Any failure, or an empty answer, yields an untitled chat.
func (s *Store) generateTitle(ctx context.Context, model string, messages []ollama.Message) string {
	if s.titleFn == nil || model == "" {
		return ""
	}

	first := ""
	for _, msg := range messages {
		if msg.Role == "user" && msg.Content != "" {
			first = msg.Content
			break
		}
	}
	if first == "" {
		return ""
	}

	title, err := s.titleFn(ctx, model, first)
	if err != nil {
		return ""
	}

	title = util.CollapseSpace(strings.Trim(title, `"' `))
	return util.TruncateRunesNoEllipsis(title, 80)
}

// =============================================================================
// LOAD OPERATIONS
// =============================================================================

// Load retrieves a transcript by id. The id is sanitized before lookup.
func (s *Store) Load(id string) (*Transcript, error) {
	clean := SanitizeID(id)
	if clean == "" {
		return nil, ErrInvalidChatID
	}

	data, err := os.ReadFile(s.filePath(clean))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}

	var transcript Transcript
	if err := json.Unmarshal(data, &transcript); err != nil {
		return nil, err
	}

	return &transcript, nil
}

// =============================================================================
// LIST OPERATIONS
// =============================================================================

// List returns summaries of all saved transcripts, most recently updated
// first. Files that fail to parse are skipped rather than failing the
// whole listing, so one corrupt transcript never hides the rest.
func (s *Store) List() ([]Summary, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Summary{}, nil
		}
		return nil, err
	}

	summaries := []Summary{}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		// Only files named by a sanitized id belong to the store.
		id := strings.TrimSuffix(entry.Name(), ".json")
		if id == "" || SanitizeID(id) != id {
			continue
		}

		transcript, err := s.Load(id)
		if err != nil {
			continue // skip corrupted files
		}

		summaries = append(summaries, Summary{
			ID:        id,
			Title:     transcript.Title,
			Model:     transcript.Model,
			UpdatedAt: transcript.UpdatedAt,
		})
	}

	// Most recent first. Unparseable timestamps sort to the end; the
	// stable sort keeps their directory order.
	sort.SliceStable(summaries, func(i, j int) bool {
		ti, _ := time.Parse(time.RFC3339, summaries[i].UpdatedAt)
		tj, _ := time.Parse(time.RFC3339, summaries[j].UpdatedAt)
		return ti.After(tj)
	})

	return summaries, nil
}

// =============================================================================
// DELETE OPERATIONS
// =============================================================================

// Delete removes a transcript by id.
func (s *Store) Delete(id string) error {
	clean := SanitizeID(id)
	if clean == "" {
		return ErrInvalidChatID
	}

	if err := os.Remove(s.filePath(clean)); err != nil {
		if os.IsNotExist(err) {
			return ErrChatNotFound
		}
		return err
	}

	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// filePath returns the file path for a sanitized transcript id.
func (s *Store) filePath(id string) string {
	return filepath.Join(s.BaseDir, id+".json")
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrChatNotFound is returned when a transcript doesn't exist.
// Use errors.Is(err, ErrChatNotFound) to check for this error.
var ErrChatNotFound = &StoreError{Message: "chat not found"}

// ErrInvalidChatID is returned when an id sanitizes to the empty string.
var ErrInvalidChatID = &StoreError{Message: "invalid chat id"}

// ErrNoMessages is returned when a save carries no message slice at all.
var ErrNoMessages = &StoreError{Message: "missing messages"}

// StoreError represents a transcript-related error.
// It implements the error interface and can be compared using errors.Is.
type StoreError struct {
	Message string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing store errors.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}
