// Package api provides HTTP API handlers for the darpan broadcast service.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/darpan/internal/broadcast"
	"github.com/ayusman/darpan/internal/store"
)

// SettingsHandler handles HTTP requests for the stream settings resource.
type SettingsHandler struct {
	store *store.Store
}

// NewSettingsHandler creates a new SettingsHandler with the given store.
func NewSettingsHandler(s *store.Store) *SettingsHandler {
	return &SettingsHandler{store: s}
}

// ServeHTTP implements the http.Handler interface and routes requests to
// appropriate methods.
func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w, r)
	case http.MethodPut:
		h.update(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// settingsPayload is the wire form of the stream settings.
type settingsPayload struct {
	Framerate      int  `json:"framerate"`
	ScalePercent   int  `json:"scale_percent"`
	QualityPercent int  `json:"quality_percent"`
	FixOrientation bool `json:"fix_orientation"`
}

// get returns the current stream settings.
func (h *SettingsHandler) get(w http.ResponseWriter, r *http.Request) {
	settings := h.store.Settings().StreamSettings()

	response := settingsPayload{
		Framerate:      settings.Framerate,
		ScalePercent:   settings.ScalePercent,
		QualityPercent: settings.QualityPercent,
		FixOrientation: settings.FixOrientation,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// update replaces the stream settings. The broadcaster polls the store each
// tick, so changes take effect within one frame interval.
func (h *SettingsHandler) update(w http.ResponseWriter, r *http.Request) {
	var payload settingsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if payload.Framerate < 1 || payload.Framerate > broadcast.DefaultMaxFPS {
		http.Error(w, "framerate out of range", http.StatusBadRequest)
		return
	}
	if payload.ScalePercent < 1 || payload.ScalePercent > 100 {
		http.Error(w, "scale_percent out of range", http.StatusBadRequest)
		return
	}
	if payload.QualityPercent < 0 || payload.QualityPercent > 100 {
		http.Error(w, "quality_percent out of range", http.StatusBadRequest)
		return
	}

	settings := broadcast.Settings{
		Framerate:      payload.Framerate,
		ScalePercent:   payload.ScalePercent,
		QualityPercent: payload.QualityPercent,
		FixOrientation: payload.FixOrientation,
	}

	if err := h.store.Settings().SetStreamSettings(settings); err != nil {
		http.Error(w, "Failed to store settings", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
