package app

import (
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/darpan/internal/broadcast"
	"github.com/ayusman/darpan/internal/capture"
	"github.com/ayusman/darpan/internal/store"
)

func newTestApp(t *testing.T, frames [][]byte) (*App, *capture.MockSource) {
	t.Helper()

	tmpDir := t.TempDir()
	s, err := store.New(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	source := capture.NewMockSource(frames, true)

	app := New(Config{
		Store:      s,
		StreamAddr: "127.0.0.1:0",
		Source:     source,
	})
	return app, source
}

func TestApp_StreamPipeline(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	app, source := newTestApp(t, [][]byte{
		[]byte("frame-one"),
		[]byte("frame-two"),
	})

	if err := app.Start(); err != nil {
		t.Fatalf("app.Start() error = %v", err)
	}
	defer app.Stop()

	if !source.IsOpen() {
		t.Fatal("capture source should be opened by Start")
	}

	// Connect a viewer and signal readiness; the paced loop takes over.
	conn, err := net.Dial("tcp", app.Broadcaster().Addr().String())
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("GET / HTTP/1.0\r\n\r\n")); err != nil {
		t.Fatalf("write error = %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var received bytes.Buffer
	buf := make([]byte, 4096)
	for received.Len() == 0 || !bytes.Contains(received.Bytes(), []byte("frame-one")) {
		n, err := conn.Read(buf)
		if n > 0 {
			received.Write(buf[:n])
		}
		if err != nil {
			break
		}
	}

	data := received.Bytes()
	if !bytes.Contains(data, []byte("multipart/x-mixed-replace")) {
		t.Error("stream should begin with the multipart header")
	}
	if !bytes.Contains(data, []byte("frame-one")) {
		t.Error("stream should carry the first captured frame")
	}
}

func TestApp_EnableToggle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	app, source := newTestApp(t, [][]byte{[]byte("frame")})

	if err := app.Start(); err != nil {
		t.Fatalf("app.Start() error = %v", err)
	}
	defer app.Stop()

	if !app.IsEnabled() {
		t.Error("streaming should be enabled by default")
	}

	app.SetEnabled(false)
	if app.IsEnabled() {
		t.Error("IsEnabled() after disable = true, want false")
	}

	// With no viewers and streaming disabled the source stays untouched.
	before := source.Captures()
	time.Sleep(250 * time.Millisecond)
	if got := source.Captures(); got != before {
		t.Errorf("captures while disabled grew from %d to %d", before, got)
	}

	app.SetEnabled(true)
	if !app.IsEnabled() {
		t.Error("IsEnabled() after re-enable = false, want true")
	}
}

func TestApp_HTTPObservesBroadcaster(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	app, _ := newTestApp(t, [][]byte{[]byte("frame")})

	if err := app.Start(); err != nil {
		t.Fatalf("app.Start() error = %v", err)
	}
	defer app.Stop()

	ts := httptest.NewServer(app.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/status status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var stats broadcast.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decoding status response: %v", err)
	}
	if !stats.Enabled {
		t.Error("status should report the stream as enabled")
	}
}

func TestApp_StartIsIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	app, _ := newTestApp(t, [][]byte{[]byte("frame")})

	if err := app.Start(); err != nil {
		t.Fatalf("first Start() error = %v", err)
	}
	defer app.Stop()

	if err := app.Start(); err != nil {
		t.Errorf("second Start() error = %v, want nil", err)
	}
}
