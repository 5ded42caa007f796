package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/blackmichael/metro/internal/metrics"
	"github.com/blackmichael/metro/internal/postcache"
)

// Status is the worker state reported by /health.
type Status struct {
	Authenticated  bool   `json:"authenticated"`
	DID            string `json:"did,omitempty"`
	Busy           bool   `json:"busy"`
	QueuedCommands int    `json:"queuedCommands"`
	CachedPosts    int    `json:"cachedPosts"`
}

// Sources supplies the state the debug server exposes.
type Sources struct {
	Status func() Status
	Cache  *postcache.Cache
}

// Server is the local debug HTTP server.
type Server struct {
	src        Sources
	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer creates a debug server listening on addr.
func NewServer(addr string, src Sources, logger *slog.Logger) *Server {
	s := &Server{
		src:    src,
		logger: logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /posts/{cid}", s.handleGetPost)
	mux.Handle("GET /metrics", metrics.Handler())

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      withLogging(logger, mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting debug server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	var status Status
	if s.src.Status != nil {
		status = s.src.Status()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"worker": status,
	})
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	cid := r.PathValue("cid")
	if s.src.Cache == nil {
		writeError(w, http.StatusServiceUnavailable, "Unavailable", "post cache not configured")
		return
	}

	post, ok := s.src.Cache.Get(cid)
	if !ok {
		writeError(w, http.StatusNotFound, "NotFound", "post not cached")
		return
	}
	writeJSON(w, http.StatusOK, post.View())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]string{
		"error":   errType,
		"message": message,
	})
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
