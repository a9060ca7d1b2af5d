// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the client for the local Ollama runtime.
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jeranaias/ollamadesk/internal/status"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewUserMessage(t *testing.T) {
	msg := NewUserMessage("Hello")

	if msg.Role != "user" {
		t.Errorf("Role = %q, want 'user'", msg.Role)
	}

	if msg.Content != "Hello" {
		t.Errorf("Content = %q, want 'Hello'", msg.Content)
	}
}

func TestNewAssistantMessage(t *testing.T) {
	msg := NewAssistantMessage("Response")

	if msg.Role != "assistant" {
		t.Errorf("Role = %q, want 'assistant'", msg.Role)
	}
}

func TestNewSystemMessage(t *testing.T) {
	msg := NewSystemMessage("You are a helpful assistant")

	if msg.Role != "system" {
		t.Errorf("Role = %q, want 'system'", msg.Role)
	}
}

// =============================================================================
// LIST OUTPUT PARSING TESTS
// =============================================================================

func TestParseListOutput(t *testing.T) {
	out := "NAME              ID            SIZE    MODIFIED\n" +
		"gemma3:270m       abc123        291 MB  2 days ago\n" +
		"llama3.1:8b       def456        4.7 GB  3 weeks ago\n"

	models := parseListOutput(out)

	if len(models) != 2 {
		t.Fatalf("len(models) = %d, want 2", len(models))
	}

	if models[0] != "gemma3:270m" {
		t.Errorf("models[0] = %q, want 'gemma3:270m'", models[0])
	}

	if models[1] != "llama3.1:8b" {
		t.Errorf("models[1] = %q, want 'llama3.1:8b'", models[1])
	}
}

func TestParseListOutput_HeaderOnly(t *testing.T) {
	models := parseListOutput("NAME ID SIZE MODIFIED\n")

	if len(models) != 0 {
		t.Errorf("len(models) = %d, want 0", len(models))
	}
}

func TestParseListOutput_Empty(t *testing.T) {
	models := parseListOutput("")

	if len(models) != 0 {
		t.Errorf("len(models) = %d, want 0", len(models))
	}
}

func TestParseListOutput_BlankLines(t *testing.T) {
	out := "NAME ID SIZE MODIFIED\n\ngemma3:270m abc 291MB now\n\n"
	models := parseListOutput(out)

	if len(models) != 1 || models[0] != "gemma3:270m" {
		t.Errorf("models = %v, want [gemma3:270m]", models)
	}
}

// =============================================================================
// ERROR TESTS
// =============================================================================

func TestClientError_Error(t *testing.T) {
	err := &ClientError{Type: ErrTypeUnavailable, Message: "boom"}
	if err.Error() != "boom" {
		t.Errorf("Error() = %q, want 'boom'", err.Error())
	}

	wrapped := &ClientError{Message: "outer", Cause: errors.New("inner")}
	if wrapped.Error() != "outer: inner" {
		t.Errorf("Error() = %q, want 'outer: inner'", wrapped.Error())
	}
}

func TestIsUnavailable(t *testing.T) {
	err := &ClientError{Type: ErrTypeUnavailable, Message: "exit status 1"}

	if !IsUnavailable(err) {
		t.Error("IsUnavailable should be true for ErrTypeUnavailable")
	}

	if IsUnavailable(errors.New("other")) {
		t.Error("IsUnavailable should be false for unrelated errors")
	}
}

func TestRunCommand_FailureCarriesStderr(t *testing.T) {
	// "false" exits non-zero with no stderr, so the default message applies.
	rt := NewCLIRuntime(&Config{Binary: "false"})

	_, err := rt.ListModels(context.Background())
	if err == nil {
		t.Fatal("expected an error from a failing command")
	}

	var clientErr *ClientError
	if !errors.As(err, &clientErr) {
		t.Fatalf("expected *ClientError, got %T", err)
	}

	if clientErr.Message != DefaultErrorMessage {
		t.Errorf("Message = %q, want %q", clientErr.Message, DefaultErrorMessage)
	}
}

// =============================================================================
// CHAT TESTS
// =============================================================================

func TestChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %q, want /api/chat", r.URL.Path)
		}

		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		if req.Stream {
			t.Error("Stream should be false")
		}

		json.NewEncoder(w).Encode(ChatResponse{
			Model:   req.Model,
			Message: NewAssistantMessage("Hi there!"),
			Done:    true,
		})
	}))
	defer srv.Close()

	rt := NewCLIRuntime(&Config{BaseURL: srv.URL})

	reply, err := rt.Chat(context.Background(), "gemma3:270m", []Message{NewUserMessage("hi")})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if reply != "Hi there!" {
		t.Errorf("reply = %q, want 'Hi there!'", reply)
	}
}

func TestChat_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(APIError{Error: "model not found"})
	}))
	defer srv.Close()

	rt := NewCLIRuntime(&Config{BaseURL: srv.URL})

	_, err := rt.Chat(context.Background(), "nope", nil)
	if err == nil {
		t.Fatal("expected an error")
	}

	var clientErr *ClientError
	if !errors.As(err, &clientErr) {
		t.Fatalf("expected *ClientError, got %T", err)
	}

	if clientErr.Message != "model not found" {
		t.Errorf("Message = %q, want 'model not found'", clientErr.Message)
	}
}

func TestChat_Unreachable(t *testing.T) {
	// Point at a closed port.
	rt := NewCLIRuntime(&Config{BaseURL: "http://127.0.0.1:1"})

	_, err := rt.Chat(context.Background(), "m", nil)
	if !IsUnavailable(err) {
		t.Errorf("expected an unavailable error, got %v", err)
	}
}

// =============================================================================
// MANAGER TESTS
// =============================================================================

// fakeRuntime implements Runtime for manager tests.
type fakeRuntime struct {
	models    []string
	listErr   error
	pullErr   error
	pullCalls int
}

func (f *fakeRuntime) ListModels(ctx context.Context) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.models, nil
}

func (f *fakeRuntime) PullModel(ctx context.Context, model string) error {
	f.pullCalls++
	return f.pullErr
}

func (f *fakeRuntime) Chat(ctx context.Context, model string, messages []Message) (string, error) {
	return "", nil
}

func TestEnsurePulled_ModelPresent(t *testing.T) {
	rt := &fakeRuntime{models: []string{"gemma3:270m", "llama3.1:8b"}}
	tracker := status.NewTracker()
	mgr := NewManager(rt, tracker)

	if err := mgr.EnsurePulled(context.Background(), "gemma3:270m"); err != nil {
		t.Fatalf("EnsurePulled failed: %v", err)
	}

	if rt.pullCalls != 0 {
		t.Errorf("pullCalls = %d, want 0 for a present model", rt.pullCalls)
	}

	snap := tracker.Get()
	if snap.State != status.StateLoading {
		t.Errorf("State = %q, want %q", snap.State, status.StateLoading)
	}
}

func TestEnsurePulled_ModelAbsent(t *testing.T) {
	rt := &fakeRuntime{models: []string{"other:model"}}
	tracker := status.NewTracker()
	mgr := NewManager(rt, tracker)

	if err := mgr.EnsurePulled(context.Background(), "gemma3:270m"); err != nil {
		t.Fatalf("EnsurePulled failed: %v", err)
	}

	if rt.pullCalls != 1 {
		t.Errorf("pullCalls = %d, want exactly 1 for an absent model", rt.pullCalls)
	}

	if tracker.Get().State != status.StateLoading {
		t.Errorf("State = %q, want %q", tracker.Get().State, status.StateLoading)
	}
}

func TestEnsurePulled_PullFails(t *testing.T) {
	rt := &fakeRuntime{pullErr: &ClientError{Type: ErrTypeUnavailable, Message: "no space left"}}
	tracker := status.NewTracker()
	mgr := NewManager(rt, tracker)

	err := mgr.EnsurePulled(context.Background(), "gemma3:270m")
	if err == nil {
		t.Fatal("expected an error when pull fails")
	}

	// The manager leaves the status at pulling; the caller records the
	// terminal error state.
	if tracker.Get().State != status.StatePulling {
		t.Errorf("State = %q, want %q", tracker.Get().State, status.StatePulling)
	}
}

func TestEnsurePulled_ListFails(t *testing.T) {
	rt := &fakeRuntime{listErr: &ClientError{Type: ErrTypeUnavailable, Message: "not running"}}
	tracker := status.NewTracker()
	mgr := NewManager(rt, tracker)

	if err := mgr.EnsurePulled(context.Background(), "gemma3:270m"); err == nil {
		t.Fatal("expected an error when list fails")
	}

	if rt.pullCalls != 0 {
		t.Errorf("pullCalls = %d, want 0 when listing fails", rt.pullCalls)
	}
}
