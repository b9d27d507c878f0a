// Package app wires the darpan subsystems together: the settings store, the
// screen capture source, the MJPEG broadcaster and the HTTP API share one
// lifecycle here.
package app

import (
	"log"
	"net/http"
	"sync"

	"github.com/ayusman/darpan/internal/broadcast"
	"github.com/ayusman/darpan/internal/capture"
	"github.com/ayusman/darpan/internal/server"
	"github.com/ayusman/darpan/internal/store"
	"github.com/ayusman/darpan/internal/transform"
)

// Config holds configuration options for the application.
type Config struct {
	Store      *store.Store
	ScreenID   int
	StreamAddr string
	HTTPAddr   string
	StaticDir  string

	// Source overrides the default screen capture source; tests inject a
	// mock here.
	Source capture.Source
}

// App owns the broadcast pipeline and the HTTP API as one unit.
type App struct {
	config      Config
	source      capture.Source
	broadcaster *broadcast.Server
	httpSrv     *server.Server

	mu      sync.Mutex
	running bool
}

// New creates a new App instance with the given configuration.
func New(config Config) *App {
	source := config.Source
	if source == nil {
		source = capture.NewScreenSource(config.ScreenID)
	}

	var settings broadcast.SettingsSource
	if config.Store != nil {
		settings = config.Store.Settings()
	}

	broadcaster := broadcast.New(broadcast.Config{
		Source:      source,
		Transformer: transform.New(),
		Settings:    settings,
		ScreenID:    config.ScreenID,
	})

	httpSrv := server.New(server.Config{
		StaticDir: config.StaticDir,
		Store:     config.Store,
		Broadcast: broadcaster,
	})

	return &App{
		config:      config,
		source:      source,
		broadcaster: broadcaster,
		httpSrv:     httpSrv,
	}
}

// Start opens the capture source and brings up the broadcaster and, when an
// HTTP address is configured, the API server. Calling Start on a running app
// is a no-op.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return nil
	}

	if err := a.source.Open(); err != nil {
		return err
	}

	if err := a.broadcaster.Start(a.config.StreamAddr); err != nil {
		a.source.Close()
		return err
	}

	if a.config.HTTPAddr != "" {
		go func() {
			log.Printf("http api listening on %s", a.config.HTTPAddr)
			if err := a.httpSrv.ListenAndServe(a.config.HTTPAddr); err != nil {
				log.Printf("http server stopped: %v", err)
			}
		}()
	}

	a.running = true
	log.Println("broadcast pipeline started")
	return nil
}

// Stop shuts down the broadcaster and releases the capture source.
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return
	}

	a.broadcaster.Stop()
	a.httpSrv.Close()

	if err := a.source.Close(); err != nil {
		log.Printf("error closing capture source: %v", err)
	}

	a.running = false
	log.Println("broadcast pipeline stopped")
}

// SetEnabled pauses or resumes the stream without tearing down viewers.
func (a *App) SetEnabled(enabled bool) {
	a.broadcaster.SetEnabled(enabled)
}

// IsEnabled reports whether streaming is currently enabled.
func (a *App) IsEnabled() bool {
	return a.broadcaster.IsEnabled()
}

// Broadcaster returns the MJPEG broadcast server.
func (a *App) Broadcaster() *broadcast.Server {
	return a.broadcaster
}

// Stats returns a snapshot of the broadcaster's counters.
func (a *App) Stats() broadcast.Stats {
	return a.broadcaster.Stats()
}

// Handler exposes the HTTP API for embedding or testing.
func (a *App) Handler() http.Handler {
	return a.httpSrv
}
