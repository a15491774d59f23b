// Package server provides the HTTP server for roadpilot: health, recorded
// sessions, the annotated MJPEG stream and the live car-state feed.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/ayusman/roadpilot/internal/logger"
	"github.com/ayusman/roadpilot/internal/server/api"
	"github.com/ayusman/roadpilot/internal/store"
)

// StreamInterval limits the MJPEG stream to about 15 FPS.
const StreamInterval = 66 * time.Millisecond

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	Frames    *FrameBuffer
	Hub       *StateHub
	Logger    *logger.Logger
}

// Server represents the HTTP server.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	log    *logger.Logger
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		log:    logger.Or(config.Logger),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Store != nil {
		sessions := api.NewSessionHandler(s.config.Store)
		s.mux.Handle("/api/sessions", sessions)
		s.mux.Handle("/api/sessions/", sessions)
	}

	if s.config.Frames != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Frames, StreamInterval))
	}

	if s.config.Hub != nil {
		s.mux.Handle("/api/state", s.config.Hub)
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.Hub != nil {
		response["clients"] = s.config.Hub.Clients()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		// Streaming handlers end when ctx does.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening on %s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	if s.config.Hub != nil {
		s.config.Hub.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
