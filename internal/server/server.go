// Package server provides the HTTP API for the darpan broadcast service.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ayusman/darpan/internal/broadcast"
	"github.com/ayusman/darpan/internal/server/api"
	"github.com/ayusman/darpan/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	Broadcast *broadcast.Server
}

// Server represents the HTTP API server. It never drives the broadcaster
// itself; the broadcaster is started once at process startup and the API
// only observes and configures it.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	stats  *StatsHandler
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	// Register the settings API handler if Store is configured
	if s.config.Store != nil {
		settingsHandler := api.NewSettingsHandler(s.config.Store)
		s.mux.Handle("/api/settings", settingsHandler)
	}

	// Register broadcaster observation endpoints if Broadcast is configured
	if s.config.Broadcast != nil {
		s.mux.HandleFunc("/api/status", s.handleStatus)
		s.mux.Handle("/api/snapshot", NewSnapshotHandler(s.config.Broadcast))
		s.stats = NewStatsHandler(s.config.Broadcast)
		s.mux.Handle("/api/stats", s.stats)
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

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// handleStatus handles GET requests to /api/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.config.Broadcast.Stats()); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}

// Close releases the server's background resources, disconnecting any
// stats subscribers.
func (s *Server) Close() {
	if s.stats != nil {
		s.stats.Close()
	}
}
