// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the client for the local Ollama runtime.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/exec"
	"strings"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the Ollama runtime.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeUnavailable
	ErrTypeConnection
	ErrTypeInvalidResponse
)

// DefaultErrorMessage is used when a failed command produced no error text.
const DefaultErrorMessage = "Ollama command failed"

// ErrUnavailable is the sentinel for an unreachable or failing runtime.
var ErrUnavailable = &ClientError{Type: ErrTypeUnavailable, Message: "Ollama runtime unavailable"}

// IsUnavailable checks if an error indicates the runtime is unavailable.
func IsUnavailable(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeUnavailable
	}
	return errors.Is(err, ErrUnavailable)
}

// =============================================================================
// RUNTIME INTERFACE
// =============================================================================

// Runtime is the narrow surface the rest of the application programs
// against. Model validity is decided entirely by the runtime; callers treat
// model names as opaque strings.
type Runtime interface {
	// ListModels returns the names of all locally installed models.
	ListModels(ctx context.Context) ([]string, error)

	// PullModel downloads a model by name.
	PullModel(ctx context.Context, model string) error

	// Chat sends the message sequence to a model and returns the
	// assistant reply text.
	Chat(ctx context.Context, model string, messages []Message) (string, error)
}

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// Config holds configuration options for the CLI runtime.
type Config struct {
	// Binary is the Ollama executable name or path (default: "ollama")
	Binary string

	// BaseURL is the Ollama API base URL (default: http://127.0.0.1:11434)
	// Note: Uses explicit IPv4 address instead of localhost to avoid IPv6
	// resolution issues on Windows
	BaseURL string
}

// DefaultConfig returns the default runtime configuration.
func DefaultConfig() *Config {
	return &Config{
		Binary:  "ollama",
		BaseURL: "http://127.0.0.1:11434",
	}
}

// =============================================================================
// CLI RUNTIME
// =============================================================================

// CLIRuntime implements Runtime using the `ollama` CLI for model
// management and the runtime's HTTP API for chat.
//
// Subprocess and HTTP calls are synchronous and carry no timeout of their
// own; cancellation comes only from the caller's context. The CLIRuntime
// is safe for concurrent use.
type CLIRuntime struct {
	config     *Config
	httpClient *http.Client
}

// NewCLIRuntime creates a runtime client. A nil config selects defaults;
// zero-valued fields are filled in.
func NewCLIRuntime(config *Config) *CLIRuntime {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Binary == "" {
		config.Binary = "ollama"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://127.0.0.1:11434"
	}

	return &CLIRuntime{
		config:     config,
		httpClient: &http.Client{},
	}
}

// =============================================================================
// MODEL OPERATIONS
// =============================================================================

// ListModels runs `ollama list` and parses its tabular output.
func (c *CLIRuntime) ListModels(ctx context.Context) ([]string, error) {
	out, err := c.runCommand(ctx, "list")
	if err != nil {
		return nil, err
	}
	return parseListOutput(out), nil
}

// PullModel runs `ollama pull <model>` and waits for it to finish.
func (c *CLIRuntime) PullModel(ctx context.Context, model string) error {
	_, err := c.runCommand(ctx, "pull", model)
	return err
}

// runCommand executes the Ollama binary and returns its stdout. A non-zero
// exit becomes a ClientError carrying the command's stderr text, or
// DefaultErrorMessage when the command produced none.
func (c *CLIRuntime) runCommand(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, c.config.Binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = DefaultErrorMessage
		}
		return "", &ClientError{Type: ErrTypeUnavailable, Message: msg, Cause: err}
	}

	return stdout.String(), nil
}

// parseListOutput extracts model names from `ollama list` output.
// The first line is a column header; each remaining row names a model in
// its first whitespace-delimited field.
func parseListOutput(out string) []string {
	var models []string

	lines := strings.Split(out, "\n")
	for i, line := range lines {
		if i == 0 {
			continue // header
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		models = append(models, fields[0])
	}

	return models
}

// =============================================================================
// CHAT OPERATIONS
// =============================================================================

// Chat sends a chat request over HTTP and returns the assistant reply text.
func (c *CLIRuntime) Chat(ctx context.Context, model string, messages []Message) (string, error) {
	reqBody := ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   false,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &ClientError{Type: ErrTypeUnavailable, Message: "Ollama runtime unavailable", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Try to read the runtime's error message
		var apiErr APIError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return "", &ClientError{Type: ErrTypeUnavailable, Message: apiErr.Error}
		}
		return "", &ClientError{Type: ErrTypeUnavailable, Message: "chat request failed: " + resp.Status}
	}

	var result ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}

	return result.Message.Content, nil
}
