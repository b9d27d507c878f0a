package main

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/ayusman/darpan/internal/app"
	"github.com/ayusman/darpan/internal/config"
	"github.com/ayusman/darpan/internal/store"
	"github.com/ayusman/darpan/internal/tray"
)

func main() {
	fmt.Println("Darpan - Live Screen Broadcast")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize the store
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath()
	}
	st, err := store.New(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	// Find web directory
	webDir := findWebDir()
	if webDir != "" {
		fmt.Printf("Serving static files from: %s\n", webDir)
	}

	a := app.New(app.Config{
		Store:      st,
		ScreenID:   cfg.ScreenID,
		StreamAddr: cfg.StreamAddr,
		HTTPAddr:   cfg.HTTPAddr,
		StaticDir:  webDir,
	})
	if err := a.Start(); err != nil {
		log.Fatalf("Failed to start broadcast pipeline: %v", err)
	}
	defer a.Stop()

	// The tray owns the main goroutine until quit
	tr := tray.New()
	tr.OnToggle(a.SetEnabled)
	tr.OnSettings(func() {
		url := "http://localhost" + cfg.HTTPAddr
		if err := exec.Command("open", url).Start(); err != nil {
			log.Printf("Failed to open settings page: %v", err)
		}
	})

	// Keep the viewer count in the tray menu current
	go func() {
		for range time.Tick(2 * time.Second) {
			tr.SetViewerCount(a.Stats().Clients)
		}
	}()

	tr.Run()
}

// defaultDBPath returns the settings database location under the user's
// home directory, creating the data directory when needed.
func defaultDBPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Fatalf("Failed to get home directory: %v", err)
	}

	dbDir := filepath.Join(homeDir, ".darpan")
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	return filepath.Join(dbDir, "darpan.db")
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.darpan/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	// Check relative paths from current working directory
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	// Check home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".darpan", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
