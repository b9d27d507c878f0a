package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/darpan/internal/broadcast"
)

func dialStats(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/stats"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("websocket dial error = %v", err)
	}
	return conn
}

func TestStatsHandler_PushesStats(t *testing.T) {
	b := broadcast.New(broadcast.Config{})
	h := NewStatsHandler(b)
	defer h.Close()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeHTTP(w, r)
	}))
	defer ts.Close()

	conn := dialStats(t, ts)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(3 * statsInterval))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading stats message: %v", err)
	}

	var payload struct {
		Stats     broadcast.Stats `json:"stats"`
		Timestamp int64           `json:"timestamp"`
	}
	if err := json.Unmarshal(msg, &payload); err != nil {
		t.Fatalf("decoding stats message: %v", err)
	}
	if !payload.Stats.Enabled {
		t.Error("stats should report the broadcaster enabled")
	}
	if payload.Timestamp == 0 {
		t.Error("stats message should carry a timestamp")
	}
}

func TestStatsHandler_CloseDisconnectsSubscribers(t *testing.T) {
	b := broadcast.New(broadcast.Config{})
	h := NewStatsHandler(b)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeHTTP(w, r)
	}))
	defer ts.Close()

	conn := dialStats(t, ts)
	defer conn.Close()

	// Wait until the handler has registered the subscriber.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		h.mu.RLock()
		n := len(h.clients)
		h.mu.RUnlock()
		if n > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	h.Close()
	h.Close() // idempotent

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
