// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the HTTP API and web page for ollamadesk.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/jeranaias/ollamadesk/internal/ollama"
	"github.com/jeranaias/ollamadesk/internal/status"
	"github.com/jeranaias/ollamadesk/internal/storage"
	"github.com/jeranaias/ollamadesk/internal/telemetry"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:8080"

	// MaxRequestBodySize limits request bodies to prevent DoS (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// Version is the server version.
	Version = "0.1.0"
)

// ============================================================================
// SERVER
// ============================================================================

// Server is the ollamadesk HTTP server.
type Server struct {
	addr   string
	router *http.ServeMux
	server *http.Server

	manager *ollama.Manager
	tracker *status.Tracker
	store   *storage.Store
	usage   *telemetry.UsageLog

	rateLimiter *RateLimiter

	// currentModel is the process-wide selected model. Chat requests
	// without an explicit model fall back to it.
	currentModel string
	mu           sync.RWMutex
}

// NewServer creates a server over the given components. defaultModel is
// the initial model selection; empty means no model selected until the
// client picks one.
func NewServer(addr string, manager *ollama.Manager, tracker *status.Tracker, store *storage.Store, defaultModel string) *Server {
	if addr == "" {
		addr = DefaultAddr
	}

	s := &Server{
		addr:         addr,
		router:       http.NewServeMux(),
		manager:      manager,
		tracker:      tracker,
		store:        store,
		rateLimiter:  DefaultRateLimiter(),
		currentModel: defaultModel,
	}

	s.setupRoutes()
	return s
}

// WithUsageLog sets the usage log. Without one, exchanges go unrecorded.
func (s *Server) WithUsageLog(usage *telemetry.UsageLog) *Server {
	s.usage = usage
	return s
}

// WithRateLimiter sets a custom rate limiter.
func (s *Server) WithRateLimiter(rl *RateLimiter) *Server {
	s.rateLimiter = rl
	return s
}

// CurrentModel returns the process-wide selected model.
func (s *Server) CurrentModel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentModel
}

// SetCurrentModel replaces the process-wide selected model.
func (s *Server) SetCurrentModel(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentModel = model
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// ============================================================================
// ROUTES
// ============================================================================

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /{$}", s.handleIndex)

	s.router.HandleFunc("POST /set-model", s.handleSetModel)
	s.router.HandleFunc("GET /models", s.handleModels)
	s.router.HandleFunc("GET /model-status", s.handleModelStatus)
	s.router.HandleFunc("POST /chat", s.handleChat)

	s.router.HandleFunc("POST /save-chat", s.handleSaveChat)
	s.router.HandleFunc("GET /chats", s.handleListChats)
	s.router.HandleFunc("GET /chats/{id}", s.handleGetChat)
}

// ============================================================================
// REQUEST / RESPONSE TYPES
// ============================================================================

// SetModelRequest is the POST /set-model body.
type SetModelRequest struct {
	Model string `json:"model"`
}

// ChatRequest is the POST /chat body.
type ChatRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
}

// SaveChatRequest is the POST /save-chat body.
type SaveChatRequest struct {
	ID       string           `json:"id"`
	Title    string           `json:"title,omitempty"`
	Model    string           `json:"model,omitempty"`
	Messages []ollama.Message `json:"messages"`
}

// SetModelResponse is the POST /set-model success envelope.
type SetModelResponse struct {
	OK    bool   `json:"ok"`
	Model string `json:"model"`
}

// ModelsResponse is the GET /models success envelope.
type ModelsResponse struct {
	OK     bool     `json:"ok"`
	Models []string `json:"models"`
}

// StatusResponse is the GET /model-status envelope.
type StatusResponse struct {
	OK      bool   `json:"ok"`
	State   string `json:"state"`
	Message string `json:"message"`
	Model   string `json:"model"`
}

// ChatResponse is the POST /chat success envelope.
type ChatResponse struct {
	OK       bool   `json:"ok"`
	Model    string `json:"model"`
	Response string `json:"response"`
}

// SaveChatResponse is the POST /save-chat success envelope.
type SaveChatResponse struct {
	OK bool   `json:"ok"`
	ID string `json:"id"`
}

// TranscriptResponse is the GET /chats/{id} success envelope.
type TranscriptResponse struct {
	OK        bool             `json:"ok"`
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Model     string           `json:"model"`
	Messages  []ollama.Message `json:"messages"`
	UpdatedAt string           `json:"updatedAt"`
}

// ChatListResponse is the GET /chats success envelope.
type ChatListResponse struct {
	OK    bool              `json:"ok"`
	Chats []storage.Summary `json:"chats"`
}

// ErrorResponse is the envelope for every failure.
type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// ============================================================================
// MODEL HANDLERS
// ============================================================================

// handleSetModel handles POST /set-model.
func (s *Server) handleSetModel(w http.ResponseWriter, r *http.Request) {
	var req SetModelRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if req.Model == "" {
		s.writeError(w, http.StatusBadRequest, "Missing model.")
		return
	}

	s.SetCurrentModel(req.Model)
	s.tracker.Set(status.StateSelected, "Model selected.", req.Model)

	log.Printf("MODEL_SELECTED | model=%s", req.Model)
	s.writeJSON(w, http.StatusOK, SetModelResponse{OK: true, Model: req.Model})
}

// handleModels handles GET /models.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.manager.Runtime().ListModels(r.Context())
	if err != nil {
		log.Printf("MODELS_ERROR | error=%v", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if models == nil {
		models = []string{}
	}
	s.writeJSON(w, http.StatusOK, ModelsResponse{OK: true, Models: models})
}

// handleModelStatus handles GET /model-status.
func (s *Server) handleModelStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Get()

	s.writeJSON(w, http.StatusOK, StatusResponse{
		OK:      true,
		State:   string(snap.State),
		Message: snap.Message,
		Model:   snap.Model,
	})
}

// ============================================================================
// CHAT HANDLER
// ============================================================================

// handleChat handles POST /chat.
//
// The model falls back to the current selection when the body carries
// none. Preparation failures and chat failures both record an "error"
// status for later polling and return 500.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if req.Prompt == "" {
		s.writeError(w, http.StatusBadRequest, "Missing prompt.")
		return
	}

	model := req.Model
	if model == "" {
		model = s.CurrentModel()
	}
	if model == "" {
		s.writeError(w, http.StatusBadRequest, "No model selected.")
		return
	}

	ctx := r.Context()
	start := time.Now()

	if err := s.manager.EnsurePulled(ctx, model); err != nil {
		log.Printf("CHAT_PREPARE_ERROR | model=%s error=%v", model, err)
		s.tracker.Set(status.StateError, err.Error(), model)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	reply, err := s.manager.Runtime().Chat(ctx, model, []ollama.Message{ollama.NewUserMessage(req.Prompt)})
	if err != nil {
		log.Printf("CHAT_ERROR | model=%s error=%v", model, err)
		s.tracker.Set(status.StateError, err.Error(), model)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.tracker.Set(status.StateReady, "Model ready.", model)

	elapsed := time.Since(start)
	log.Printf("CHAT_COMPLETE | model=%s prompt_chars=%d reply_chars=%d latency=%.3fs",
		model, len(req.Prompt), len(reply), elapsed.Seconds())

	s.recordUsage(ctx, model, len(req.Prompt), len(reply), elapsed)

	s.writeJSON(w, http.StatusOK, ChatResponse{OK: true, Model: model, Response: reply})
}

// recordUsage records an exchange in the usage log. Failures are logged,
// never surfaced; chat handling does not depend on the log.
func (s *Server) recordUsage(ctx context.Context, model string, promptChars, replyChars int, elapsed time.Duration) {
	if s.usage == nil {
		return
	}

	if err := s.usage.Record(ctx, model, promptChars, replyChars, elapsed); err != nil {
		log.Printf("USAGE_RECORD_FAILED | model=%s error=%v", model, err)
	}
}

// ============================================================================
// CHAT PERSISTENCE HANDLERS
// ============================================================================

// handleSaveChat handles POST /save-chat.
func (s *Server) handleSaveChat(w http.ResponseWriter, r *http.Request) {
	var req SaveChatRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	id, err := s.store.Save(r.Context(), req.ID, req.Title, req.Model, req.Messages)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrInvalidChatID):
			s.writeError(w, http.StatusBadRequest, "Invalid chat id.")
		case errors.Is(err, storage.ErrNoMessages):
			s.writeError(w, http.StatusBadRequest, "Missing messages.")
		default:
			log.Printf("SAVE_CHAT_ERROR | id=%s error=%v", req.ID, err)
			s.writeError(w, http.StatusInternalServerError, "Failed to save chat.")
		}
		return
	}

	s.writeJSON(w, http.StatusOK, SaveChatResponse{OK: true, ID: id})
}

// handleGetChat handles GET /chats/{id}.
func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	transcript, err := s.store.Load(id)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrInvalidChatID):
			s.writeError(w, http.StatusBadRequest, "Invalid chat id.")
		case errors.Is(err, storage.ErrChatNotFound):
			s.writeError(w, http.StatusNotFound, "Chat not found.")
		default:
			log.Printf("LOAD_CHAT_ERROR | id=%s error=%v", id, err)
			s.writeError(w, http.StatusInternalServerError, "Failed to load chat.")
		}
		return
	}

	s.writeJSON(w, http.StatusOK, TranscriptResponse{
		OK:        true,
		ID:        transcript.ID,
		Title:     transcript.Title,
		Model:     transcript.Model,
		Messages:  transcript.Messages,
		UpdatedAt: transcript.UpdatedAt,
	})
}

// handleListChats handles GET /chats.
func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := s.store.List()
	if err != nil {
		log.Printf("LIST_CHATS_ERROR | error=%v", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to list chats.")
		return
	}

	s.writeJSON(w, http.StatusOK, ChatListResponse{OK: true, Chats: chats})
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	handler := Chain(
		RecoveryMiddleware(),
		SecurityHeadersMiddleware(),
		RequestIDMiddleware(),
		LoggingMiddleware(log.Default()),
		RateLimitMiddleware(s.rateLimiter),
	)(s.router)

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("SERVER_START | addr=%s version=%s", s.addr, Version)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	log.Printf("SERVER_SHUTDOWN | starting graceful shutdown")
	return s.server.Shutdown(ctx)
}

// Handler returns the fully assembled handler, for tests.
func (s *Server) Handler() http.Handler {
	return Chain(
		RecoveryMiddleware(),
		SecurityHeadersMiddleware(),
		RequestIDMiddleware(),
	)(s.router)
}

// ============================================================================
// HELPERS
// ============================================================================

// decodeBody decodes a JSON request body into v, writing the 400 envelope
// itself on failure. Returns false when the handler should stop.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if err.Error() == "http: request body too large" {
			s.writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("Request body exceeds maximum size of %d bytes.", MaxRequestBodySize))
			return false
		}
		log.Printf("INVALID_BODY | path=%s error=%v", r.URL.Path, err)
		s.writeError(w, http.StatusBadRequest, "Invalid request body.")
		return false
	}

	return true
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// writeError writes the standard {ok: false, error} envelope.
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	s.writeJSON(w, statusCode, ErrorResponse{OK: false, Error: message})
}

// writeEnvelopeError is the package-level variant for middleware, which
// has no Server receiver.
func writeEnvelopeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{OK: false, Error: message})
}
