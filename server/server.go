// Package server exposes sessions, chat turns, undo, uploads and accounts
// over HTTP.
package server

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/meikuraledutech/chat/auth"
	"github.com/meikuraledutech/chat/history"
	"github.com/meikuraledutech/chat/orchestrator"
)

type Config struct {
	UploadsDir     string
	ImagesDir      string
	AllowedOrigins []string
	// MaxUploadBytes caps a single upload. Zero means 32 MiB.
	MaxUploadBytes int64
}

type Server struct {
	history *history.Manager
	orch    *orchestrator.Orchestrator
	auth    *auth.Service
	cfg     Config
	logger  *zap.Logger
}

func New(h *history.Manager, orch *orchestrator.Orchestrator, a *auth.Service, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 32 << 20
	}
	return &Server{history: h, orch: orch, auth: a, cfg: cfg, logger: logger}
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("POST /login", s.handleLogin)

	mux.HandleFunc("POST /sessions", s.handleCreateSession)
	mux.HandleFunc("GET /sessions", s.handleListSessions)
	mux.HandleFunc("DELETE /sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("GET /sessions/{id}/messages", s.handleListMessages)

	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /undo", s.handleUndo)
	mux.HandleFunc("POST /upload", s.handleUpload)

	mux.Handle("GET /images/", http.StripPrefix("/images/", http.FileServer(noListing{http.Dir(s.cfg.ImagesDir)})))

	return chainMiddlewares(mux,
		withRecover(s.logger),
		withCORS(s.cfg.AllowedOrigins),
		withRequestLogging(s.logger),
	)
}
