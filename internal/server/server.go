// Package server provides the HTTP server for the mudra gesture service.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/server/api"
	"github.com/ayusman/mudra/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	App       *app.App
	Logger    *slog.Logger
}

// Server represents the HTTP server for the mudra application.
type Server struct {
	config Config
	log    *slog.Logger
	mux    *http.ServeMux
	start  time.Time

	mu   sync.Mutex
	http *http.Server
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Store == nil && config.App != nil {
		config.Store = config.App.Store()
	}
	s := &Server{
		config: config,
		log:    config.Logger,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	var trainer api.Trainer
	if s.config.App != nil {
		trainer = s.config.App
	}

	if s.config.Store != nil {
		strokeHandler := api.NewStrokeHandler(s.config.Store, trainer)
		samplesHandler := api.NewSamplesHandler(s.config.Store, trainer)

		// /api/strokes/{id}/samples goes to the samples handler
		strokeRouter := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(r.URL.Path, "/samples") {
				samplesHandler.ServeHTTP(w, r)
				return
			}
			strokeHandler.ServeHTTP(w, r)
		})
		s.mux.Handle("/api/strokes", strokeRouter)
		s.mux.Handle("/api/strokes/", strokeRouter)

		var resolver api.PluginResolver
		if s.config.App != nil {
			resolver = s.config.App.PluginManager()
		}
		actionHandler := api.NewActionHandler(s.config.Store, resolver)
		s.mux.Handle("/api/actions", actionHandler)
		s.mux.Handle("/api/actions/", actionHandler)

		s.mux.Handle("/api/events", api.NewEventHandler(s.config.Store))
	}

	if a := s.config.App; a != nil {
		s.mux.Handle("/api/config", api.NewConfigHandler(a))
		s.mux.Handle("/api/state", api.NewStateHandler(a))
		s.mux.Handle("/api/plugins", api.NewPluginHandler(a.PluginManager()))
		s.mux.Handle("/api/session", NewSessionHandler(a, s.log))
	}

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

	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if a := s.config.App; a != nil {
		response["running"] = a.Running()
		response["session_id"] = a.SessionID()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address. It returns
// http.ErrServerClosed after Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.http = srv
	s.mu.Unlock()

	s.log.Info("http server listening", "addr", addr)
	return srv.ListenAndServe()
}

// Shutdown gracefully stops a server started with ListenAndServe.
// Websocket sessions end when the app stops.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
