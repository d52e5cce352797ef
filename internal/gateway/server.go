// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/bridgeai/internal/cloud"
	"github.com/jeranaias/bridgeai/internal/config"
	"github.com/jeranaias/bridgeai/internal/connectivity"
	"github.com/jeranaias/bridgeai/internal/offline"
	"github.com/jeranaias/bridgeai/internal/ollama"
	"github.com/jeranaias/bridgeai/internal/stream"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is where the gateway listens when none is configured.
	DefaultAddr = "127.0.0.1:8000"

	// MaxQueryLength is the maximum query size in bytes.
	MaxQueryLength = 100000

	// MaxRequestBodySize bounds the JSON body of a chat request (1MB).
	MaxRequestBodySize = 1 << 20

	// LocalFailedMessage is the text sent alongside a local model error.
	LocalFailedMessage = "Local model failed"

	// DefaultSystemPrompt is sent ahead of every conversation.
	DefaultSystemPrompt = "You are BridgeAI, a helpful assistant that works online and offline. " +
		"Answer clearly and concisely. Use Markdown where it helps."
)

// Version is the gateway version.
var Version = "1.0.0"

// Sources reported on content frames.
const (
	SourceOnline  = "online"
	SourceOffline = "offline"
)

// ============================================================================
// WIRE TYPES
// ============================================================================

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
	Online    bool   `json:"online"`
}

// HealthResponse is the body of GET /health and POST /refresh-network.
type HealthResponse struct {
	Status         string `json:"status"`
	Online         bool   `json:"online"`
	CloudAvailable bool   `json:"cloud_available"`
	OfflineMode    bool   `json:"offline_mode"`
	CheckedAt      string `json:"checked_at,omitempty"`
	Version        string `json:"version"`
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the chat gateway. It routes each question to the online model
// when the network allows and falls back to the local model otherwise.
type Server struct {
	mux    *http.ServeMux
	server *http.Server
	addr   string

	local   LocalModel
	cloud   CloudModel
	history HistoryStore
	network *connectivity.Cache

	systemPrompt  string
	historyTurns  int
	historyTTL    time.Duration
	forcedOffline bool

	cors    *CORSConfig
	limiter *RateLimiter
	logger  *log.Logger

	mu sync.RWMutex
}

// NewServer creates a gateway around the local model and history store.
// The online model is optional; without a network check the network is
// assumed reachable.
func NewServer(local LocalModel, history HistoryStore) *Server {
	if history == nil {
		history = NewMemoryHistory(DefaultHistoryTurns * 2)
	}
	s := &Server{
		mux:          http.NewServeMux(),
		addr:         DefaultAddr,
		local:        local,
		history:      history,
		systemPrompt: DefaultSystemPrompt,
		historyTurns: DefaultHistoryTurns,
		cors:         DefaultCORSConfig(),
		limiter:      NewRateLimiter(0, 1),
		logger:       log.Default(),
	}
	s.setupRoutes()
	return s
}

// FromConfig builds a gateway with real backends from configuration.
func FromConfig(cfg config.GatewayConfig) (*Server, error) {
	if err := offline.ValidateURL(cfg.OllamaURL, false); err != nil {
		return nil, fmt.Errorf("ollama url: %w", err)
	}

	history, err := NewHistoryStore(cfg)
	if err != nil {
		return nil, err
	}

	local := NewOllamaModel(ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:      cfg.OllamaURL,
		DefaultModel: cfg.OllamaModel,
	}), cfg.OllamaModel)

	var targets []string
	if cfg.NetworkCheckURL != "" {
		targets = append(targets, cfg.NetworkCheckURL)
	}

	s := NewServer(local, history).
		WithAddr(cfg.Listen).
		WithSystemPrompt(cfg.SystemPrompt).
		WithHistoryTurns(cfg.HistoryTurns).
		WithHistoryTTL(cfg.HistoryTTL()).
		WithOffline(cfg.Offline).
		WithNetwork(NewNetworkChecker(DefaultNetworkTimeout, targets...).Cached(cfg.NetworkCacheTTL())).
		WithRateLimiter(NewRateLimiter(cfg.RateLimit, cfg.RateBurst))

	if len(cfg.AllowedOrigins) > 0 {
		cors := DefaultCORSConfig()
		cors.AllowedOrigins = cfg.AllowedOrigins
		s.WithCORS(cors)
	}

	if cfg.CloudConfigured() {
		client := cloud.NewClient(cfg.CloudKey).WithBaseURL(cfg.CloudURL).WithModel(cfg.CloudModel)
		s.WithCloud(NewCloudChatModel(client))
		log.Printf("GATEWAY_CLOUD | model=%s key=%s", client.Model(), client.KeyFingerprint())
	}
	return s, nil
}

// WithCloud sets the online model.
func (s *Server) WithCloud(m CloudModel) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cloud = m
	return s
}

// WithNetwork sets the cached network check.
func (s *Server) WithNetwork(c *connectivity.Cache) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.network = c
	return s
}

// WithAddr sets the listen address.
func (s *Server) WithAddr(addr string) *Server {
	if addr != "" {
		s.addr = addr
	}
	return s
}

// WithSystemPrompt replaces the system prompt. Empty keeps the default.
func (s *Server) WithSystemPrompt(prompt string) *Server {
	if strings.TrimSpace(prompt) != "" {
		s.systemPrompt = prompt
	}
	return s
}

// WithHistoryTurns sets how many exchanges of history are sent as context.
func (s *Server) WithHistoryTurns(turns int) *Server {
	if turns > 0 {
		s.historyTurns = turns
	}
	return s
}

// WithHistoryTTL sets how long idle in-memory sessions are kept. Stores
// with their own expiry ignore it.
func (s *Server) WithHistoryTTL(ttl time.Duration) *Server {
	s.historyTTL = ttl
	return s
}

// WithOffline forces every request to the local model.
func (s *Server) WithOffline(forced bool) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forcedOffline = forced
	return s
}

// WithCORS replaces the CORS configuration.
func (s *Server) WithCORS(c *CORSConfig) *Server {
	s.cors = c
	return s
}

// WithRateLimiter replaces the per-client rate limiter.
func (s *Server) WithRateLimiter(rl *RateLimiter) *Server {
	s.limiter = rl
	return s
}

// WithLogger sets the request logger.
func (s *Server) WithLogger(l *log.Logger) *Server {
	s.logger = l
	return s
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.addr
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleRoot)
	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	s.mux.HandleFunc("POST /api/chat/clear/{session}", s.handleClear)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /refresh-network", s.handleRefreshNetwork)
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return Chain(
		RecoveryMiddleware(),
		LoggingMiddleware(s.logger),
		CORSMiddleware(s.cors),
		RateLimitMiddleware(s.limiter),
	)(s.mux)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "BridgeAI Gateway",
		"version": Version,
		"status":  "running",
	})
}

// ============================================================================
// CHAT
// ============================================================================

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	query, err := normalizeQuery(req.Query)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	session := strings.TrimSpace(req.SessionID)
	if session == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	turns := s.buildTurns(ctx, session, query)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	out := &frameWriter{enc: stream.NewEncoder(w), cancel: cancel}
	answer, ok := s.answer(ctx, out, req.Online, turns)
	if out.err != nil {
		return
	}
	if err := out.enc.Done(); err != nil {
		return
	}

	if ok && ctx.Err() == nil && answer != "" {
		// The exchange is saved even if the client hangs up right now.
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.history.Append(saveCtx, session,
			Turn{Role: RoleUser, Content: query},
			Turn{Role: RoleAssistant, Content: answer},
		); err != nil {
			log.Printf("HISTORY_APPEND_FAILED | session=%s err=%v", session, err)
		}
	}
}

// frameWriter sends frames until the first write error, then cancels the
// model stream feeding it.
type frameWriter struct {
	enc    *stream.Encoder
	cancel context.CancelFunc
	err    error
}

func (fw *frameWriter) send(f stream.Frame) {
	if fw.err != nil {
		return
	}
	if err := fw.enc.Encode(f); err != nil {
		fw.fail(err)
	}
}

func (fw *frameWriter) fallback() {
	if fw.err != nil {
		return
	}
	if err := fw.enc.Fallback(); err != nil {
		fw.fail(err)
	}
}

func (fw *frameWriter) fail(err error) {
	fw.err = err
	log.Printf("CHAT_WRITE_FAILED | err=%v", err)
	fw.cancel()
}

// answer streams the response and returns its text and whether it
// completed.
func (s *Server) answer(ctx context.Context, out *frameWriter, wantOnline bool, turns []Turn) (string, bool) {
	var text strings.Builder

	if wantOnline && s.cloudUsable(ctx) {
		start := time.Now()
		err := s.cloudModel().Stream(ctx, turns, func(chunk string) {
			if out.err != nil {
				return
			}
			text.WriteString(chunk)
			out.send(stream.Frame{Content: chunk, Source: SourceOnline})
		})
		if out.err != nil || ctx.Err() != nil {
			return text.String(), false
		}
		if err == nil {
			log.Printf("CHAT_COMPLETE | source=online chars=%d elapsed=%s", text.Len(), time.Since(start).Round(time.Millisecond))
			return text.String(), true
		}

		log.Printf("CLOUD_FAILED | falling back to local model: %v", err)
		if s.network != nil {
			s.network.Invalidate()
		}
		out.fallback()
		if out.err != nil {
			return text.String(), false
		}
	}

	start := time.Now()
	err := s.local.Stream(ctx, turns, func(chunk string) {
		if out.err != nil {
			return
		}
		text.WriteString(chunk)
		out.send(stream.Frame{Content: chunk, Source: SourceOffline})
	})
	if out.err != nil || ctx.Err() != nil {
		return text.String(), false
	}
	if err != nil {
		log.Printf("LOCAL_FAILED | err=%v", err)
		out.send(stream.Frame{Error: err.Error(), Content: LocalFailedMessage, Source: SourceOffline})
		return text.String(), false
	}
	log.Printf("CHAT_COMPLETE | source=offline chars=%d elapsed=%s", text.Len(), time.Since(start).Round(time.Millisecond))
	return text.String(), true
}

// buildTurns assembles system prompt, capped history and the new query.
func (s *Server) buildTurns(ctx context.Context, session, query string) []Turn {
	history, err := s.history.Recent(ctx, session, s.historyTurns*2)
	if err != nil {
		log.Printf("HISTORY_READ_FAILED | session=%s err=%v", session, err)
		history = nil
	}
	turns := make([]Turn, 0, len(history)+2)
	turns = append(turns, Turn{Role: RoleSystem, Content: s.systemPrompt})
	turns = append(turns, history...)
	turns = append(turns, Turn{Role: RoleUser, Content: query})
	return turns
}

// normalizeQuery trims and NFC-normalizes a query and enforces its limits.
func normalizeQuery(q string) (string, error) {
	q = strings.TrimSpace(norm.NFC.String(q))
	if q == "" {
		return "", errors.New("query is required")
	}
	if len(q) > MaxQueryLength {
		return "", fmt.Errorf("query exceeds %d bytes", MaxQueryLength)
	}
	return q, nil
}

func (s *Server) cloudModel() CloudModel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cloud
}

// cloudUsable reports whether the online model may take a request now.
func (s *Server) cloudUsable(ctx context.Context) bool {
	s.mu.RLock()
	m, forced := s.cloud, s.forcedOffline
	s.mu.RUnlock()

	if forced {
		log.Printf("CLOUD_SKIPPED | %v", offline.ErrCloudBlocked)
		return false
	}
	if m == nil || !m.Available() {
		return false
	}
	return s.networkOnline(ctx)
}

func (s *Server) networkOnline(ctx context.Context) bool {
	s.mu.RLock()
	c := s.network
	s.mu.RUnlock()
	if c == nil {
		return true
	}
	return c.Get(ctx)
}

// ============================================================================
// SESSION / HEALTH
// ============================================================================

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	session := strings.TrimSpace(r.PathValue("session"))
	if session == "" {
		writeError(w, http.StatusBadRequest, "session is required")
		return
	}
	if err := s.history.Clear(r.Context(), session); err != nil {
		log.Printf("HISTORY_CLEAR_FAILED | session=%s err=%v", session, err)
		writeError(w, http.StatusInternalServerError, "failed to clear session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared", "session_id": session})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.health(s.networkOnline(r.Context())))
}

func (s *Server) handleRefreshNetwork(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	c := s.network
	s.mu.RUnlock()

	online := true
	if c != nil {
		online = c.Refresh(r.Context())
	}
	log.Printf("NETWORK_REFRESH | online=%v", online)
	writeJSON(w, http.StatusOK, s.health(online))
}

func (s *Server) health(online bool) HealthResponse {
	s.mu.RLock()
	m, forced, c := s.cloud, s.forcedOffline, s.network
	s.mu.RUnlock()

	resp := HealthResponse{
		Status:         "healthy",
		Online:         online,
		CloudAvailable: online && !forced && m != nil && m.Available(),
		OfflineMode:    forced,
		Version:        Version,
	}
	if c != nil && !c.CheckedAt().IsZero() {
		resp.CheckedAt = c.CheckedAt().UTC().Format(time.RFC3339)
	}
	return resp
}

// ============================================================================
// LIFECYCLE
// ============================================================================

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		// No WriteTimeout: answers stream for as long as the model talks.
	}

	if p, ok := s.history.(pruner); ok && s.historyTTL > 0 {
		go s.pruneLoop(ctx, p)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("GATEWAY_START | addr=%s version=%s", ln.Addr(), Version)
		errCh <- s.server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

type pruner interface {
	Prune(ttl time.Duration) int
}

// pruneLoop drops idle sessions until ctx ends.
func (s *Server) pruneLoop(ctx context.Context, p pruner) {
	interval := s.historyTTL / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := p.Prune(s.historyTTL); n > 0 {
				log.Printf("HISTORY_PRUNED | sessions=%d", n)
			}
		}
	}
}

// Shutdown stops the server and closes the history store.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Printf("GATEWAY_SHUTDOWN | starting graceful shutdown")
	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}
	if cerr := s.history.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// ============================================================================
// HELPERS
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes {"error": message}.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
