// Package server implements the HTTP API for Annai.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/annai-ai/annai/internal/action"
	"github.com/annai-ai/annai/internal/auth"
	"github.com/annai-ai/annai/internal/memory"
	"github.com/annai-ai/annai/internal/orchestrator"
	"github.com/annai-ai/annai/internal/ratelimit"
	"github.com/annai-ai/annai/internal/store"
)

// Server is the Annai HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// Config holds all dependencies and settings for creating a Server.
// Limiter and MCPServer are optional (nil = disabled).
type Config struct {
	Orchestrator *orchestrator.Orchestrator
	Memories     *memory.Store
	Drafts       *action.Manager
	Records      store.Store
	JWTMgr       *auth.JWTManager
	Logger       *slog.Logger

	Limiter   ratelimit.Limiter
	MCPServer *mcpserver.MCPServer

	// Owner bootstrap credentials: the Argon2id hash of the API key that
	// POST /auth/token accepts, and the owner it maps to. An empty hash
	// disables the exchange.
	OwnerKeyHash string
	OwnerID      string

	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	MaxRequestBodyBytes int64
	OpenAPISpec         []byte
}

// New creates an HTTP server with all routes configured.
func New(cfg Config) *Server {
	h := &handlers{
		orch:         cfg.Orchestrator,
		memories:     cfg.Memories,
		drafts:       cfg.Drafts,
		records:      cfg.Records,
		jwtMgr:       cfg.JWTMgr,
		logger:       cfg.Logger,
		ownerKeyHash: cfg.OwnerKeyHash,
		ownerID:      cfg.OwnerID,
		version:      cfg.Version,
		maxBodyBytes: cfg.MaxRequestBodyBytes,
	}

	reqIDFunc := func(r *http.Request) string {
		return RequestIDFromContext(r.Context())
	}
	ownerRL := ratelimit.Middleware(cfg.Limiter, ownerKeyFunc, reqIDFunc)
	authRL := ratelimit.Middleware(cfg.Limiter, ratelimit.IPKeyFunc, reqIDFunc)

	mux := http.NewServeMux()

	// Token exchange (no auth required, rate limited by IP).
	mux.Handle("POST /auth/token", authRL(http.HandlerFunc(h.handleAuthToken)))

	// Request and confirmation entry points (rate limited per owner).
	mux.Handle("POST /v1/requests", ownerRL(http.HandlerFunc(h.handleAsk)))
	mux.Handle("POST /v1/confirmations", ownerRL(http.HandlerFunc(h.handleConfirm)))

	// Memory inspection.
	mux.Handle("GET /v1/memories", http.HandlerFunc(h.handleListMemories))
	mux.Handle("GET /v1/memories/summary", http.HandlerFunc(h.handleMemorySummary))
	mux.Handle("DELETE /v1/memories/{id}", ownerRL(http.HandlerFunc(h.handleDeleteMemory)))

	// Diagnostics (read-only).
	mux.Handle("GET /v1/diagnostics/events", http.HandlerFunc(h.handleDiagnosticsEvents))
	mux.Handle("GET /v1/diagnostics/stats", http.HandlerFunc(h.handleDiagnosticsStats))

	// MCP StreamableHTTP transport (auth required).
	if cfg.MCPServer != nil {
		mux.Handle("/mcp", mcpserver.NewStreamableHTTPServer(cfg.MCPServer))
	}

	// Health and spec (no auth, no rate limit).
	mux.HandleFunc("GET /health", h.handleHealth)
	if len(cfg.OpenAPISpec) > 0 {
		spec := cfg.OpenAPISpec
		mux.HandleFunc("GET /openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/yaml")
			_, _ = w.Write(spec)
		})
	}

	// Middleware chain (outermost executes first):
	// request ID → tracing → logging → auth → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = authMiddleware(cfg.JWTMgr, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler: handler,
		logger:  cfg.Logger,
	}
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ownerKeyFunc keys rate limiting by the authenticated owner.
func ownerKeyFunc(r *http.Request) string {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		return ""
	}
	return claims.OwnerID
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
