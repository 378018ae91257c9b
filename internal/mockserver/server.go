// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package mockserver

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/jeranaias/parley/internal/cloud"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is where the mock-server command listens.
	DefaultAddr = "127.0.0.1:8787"

	// MaxRequestBodySize bounds the request body (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	// EchoPrefix starts every answer that is not canned.
	EchoPrefix = "You said: "
)

// DefaultAnswers are the canned replies.
func DefaultAnswers() map[string]string {
	return map[string]string{"2+2?": "4"}
}

// ============================================================================
// SERVER
// ============================================================================

// Server answers streamed completion requests.
type Server struct {
	answers   map[string]string
	delay     time.Duration
	authToken string

	router chi.Router
	server *http.Server
	mu     sync.Mutex

	requests atomic.Int64
}

// Option configures a Server.
type Option func(*Server)

// WithDelay pauses between words.
func WithDelay(d time.Duration) Option {
	return func(s *Server) { s.delay = d }
}

// WithAnswer adds or replaces a canned answer.
func WithAnswer(question, answer string) Option {
	return func(s *Server) { s.answers[question] = answer }
}

// WithAuthToken requires "Authorization: Bearer <token>".
func WithAuthToken(token string) Option {
	return func(s *Server) { s.authToken = token }
}

// New creates a Server.
func New(opts ...Option) *Server {
	s := &Server{answers: DefaultAnswers()}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Requests returns how many completions were served.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Group(func(r chi.Router) {
		if s.authToken != "" {
			r.Use(s.requireToken)
		}
		r.Post(cloud.DefaultPath, s.handleCompletions)
	})
	return r
}

// logRequests logs one line per request.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Printf("MOCK_REQUEST | method=%s path=%s status=%d duration=%s request_id=%s",
			r.Method, r.URL.Path, ww.Status(), time.Since(start), middleware.GetReqID(r.Context()))
	})
}

// requireToken checks the bearer token.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		// SECURITY: constant-time comparison
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ============================================================================
// HANDLERS
// ============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"requests": s.Requests(),
	})
}

// streamChunk is one frame of a streamed answer.
type streamChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Choices []chunkChoice `json:"choices"`
}

type chunkChoice struct {
	Index        int        `json:"index"`
	Delta        chunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

type chunkDelta struct {
	Content string `json:"content,omitempty"`
}

func (s *Server) handleCompletions(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var req cloud.CompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request format")
		return
	}
	question, ok := lastUserMessage(req.Messages)
	if !ok {
		writeError(w, http.StatusBadRequest, "request must contain a user message")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	s.requests.Add(1)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	id := "chatcmpl-" + uuid.NewString()
	created := time.Now().Unix()

	for _, word := range Words(s.Answer(question)) {
		if err := sleep(ctx, s.delay); err != nil {
			log.Printf("MOCK_STREAM_ABORTED | id=%s err=%v", id, err)
			return
		}
		writeChunk(w, flusher, streamChunk{
			ID:      id,
			Object:  "chat.completion.chunk",
			Created: created,
			Choices: []chunkChoice{{Delta: chunkDelta{Content: word}}},
		})
	}

	stop := "stop"
	writeChunk(w, flusher, streamChunk{
		ID:      id,
		Object:  "chat.completion.chunk",
		Created: created,
		Choices: []chunkChoice{{FinishReason: &stop}},
	})
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// Answer returns the reply for question.
func (s *Server) Answer(question string) string {
	if a, ok := s.answers[strings.TrimSpace(question)]; ok {
		return a
	}
	return EchoPrefix + question
}

// Words splits text into streaming pieces. Each piece but the first keeps
// its leading space so the pieces concatenate back to text.
func Words(text string) []string {
	var out []string
	start := 0
	for i := 1; i < len(text); i++ {
		if text[i] == ' ' && text[i-1] != ' ' {
			out = append(out, text[start:i])
			start = i
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

func lastUserMessage(msgs []cloud.ChatMessage) (string, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "user" {
			return msgs[i].Content, true
		}
	}
	return "", false
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// ListenAndServe serves on addr until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}
	s.mu.Lock()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()

	log.Printf("MOCK_SERVER_START | addr=%s", addr)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	log.Printf("MOCK_SERVER_SHUTDOWN | requests=%d", s.Requests())
	return srv.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

func writeChunk(w http.ResponseWriter, flusher http.Flusher, chunk streamChunk) {
	data, err := json.Marshal(chunk)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    status,
		},
	})
}
