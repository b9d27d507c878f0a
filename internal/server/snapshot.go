package server

import (
	"net/http"
	"strconv"

	"github.com/ayusman/darpan/internal/broadcast"
)

// SnapshotHandler serves the most recently broadcast frame as a single JPEG.
type SnapshotHandler struct {
	broadcast *broadcast.Server
}

// NewSnapshotHandler creates a SnapshotHandler over the given broadcaster.
func NewSnapshotHandler(b *broadcast.Server) *SnapshotHandler {
	return &SnapshotHandler{broadcast: b}
}

// ServeHTTP writes the latest frame, or 404 when nothing has been broadcast
// yet.
func (h *SnapshotHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	frame := h.broadcast.LatestFrame()
	if frame == nil {
		http.Error(w, "No frame available", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(frame)))
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(frame)
}
