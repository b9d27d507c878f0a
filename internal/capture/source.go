// Package capture provides screen snapshot acquisition using GoCV (OpenCV).
package capture

import (
	"errors"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Default capture settings
const (
	DefaultWidth  = 640
	DefaultHeight = 480
)

// ErrCaptureTimeout is returned when a snapshot does not arrive within the deadline.
var ErrCaptureTimeout = errors.New("capture timed out")

// ErrCaptureFailed is returned when the capture device cannot produce a snapshot.
var ErrCaptureFailed = errors.New("capture failed")

// ErrSourceNotOpen is returned when capturing from a source that is not open.
var ErrSourceNotOpen = errors.New("capture source is not open")

// Source defines the interface for snapshot producers. Capture is called
// repeatedly from a single dedicated worker; implementations do not need to
// support concurrent captures.
type Source interface {
	Open() error
	Close() error
	Capture(screenID int, quality float64, timeout time.Duration) (*Frame, error)
	IsOpen() bool
}

// screenSource grabs snapshots from a capture device using GoCV.
type screenSource struct {
	deviceID int
	capture  *gocv.VideoCapture
	mu       sync.Mutex
	running  bool

	// grabMu serializes device grabs: a VideoCapture is not safe for
	// concurrent reads, so a grab that outlived its caller's timeout must
	// finish before the next one may touch the device.
	grabMu sync.Mutex

	// grab reads one encoded frame; tests replace it.
	grab func(quality float64) ([]byte, error)
}

// NewScreenSource creates a Source backed by the given capture device ID.
func NewScreenSource(deviceID int) Source {
	s := &screenSource{deviceID: deviceID}
	s.grab = s.deviceGrab
	return s
}

// Open opens the capture device.
// It sets the resolution to 640x480 for performance.
func (s *screenSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(s.deviceID)
	if err != nil {
		return err
	}

	capture.Set(gocv.VideoCaptureFrameWidth, DefaultWidth)
	capture.Set(gocv.VideoCaptureFrameHeight, DefaultHeight)

	s.capture = capture
	s.running = true

	return nil
}

// Close closes the capture device and releases resources.
func (s *screenSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.capture == nil {
		s.running = false
		return nil
	}

	err := s.capture.Close()
	s.capture = nil
	s.running = false

	return err
}

// IsOpen returns true if the capture device is currently open.
func (s *screenSource) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// Capture grabs a single snapshot and encodes it as JPEG at the given
// quality in [0,1]. The grab runs on its own goroutine so a stuck device
// cannot block the caller past the timeout; a late result is discarded,
// but the grab itself holds grabMu until the device call returns, so the
// next Capture waits instead of reading the device concurrently.
func (s *screenSource) Capture(screenID int, quality float64, timeout time.Duration) (*Frame, error) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil, ErrSourceNotOpen
	}
	s.mu.Unlock()

	type result struct {
		data []byte
		err  error
	}

	done := make(chan result, 1)
	go func() {
		s.grabMu.Lock()
		defer s.grabMu.Unlock()
		data, err := s.grab(quality)
		done <- result{data: data, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		return &Frame{
			Data:       res.data,
			CapturedAt: time.Now(),
			ScreenID:   screenID,
		}, nil
	case <-time.After(timeout):
		return nil, ErrCaptureTimeout
	}
}

// deviceGrab reads one frame from the device and JPEG-encodes it.
func (s *screenSource) deviceGrab(quality float64) ([]byte, error) {
	s.mu.Lock()
	capture := s.capture
	s.mu.Unlock()

	if capture == nil {
		return nil, ErrSourceNotOpen
	}

	mat := gocv.NewMat()
	defer mat.Close()

	if ok := capture.Read(&mat); !ok {
		return nil, ErrCaptureFailed
	}

	if mat.Empty() {
		return nil, ErrCaptureFailed
	}

	params := []int{gocv.IMWriteJpegQuality, jpegQualityParam(quality)}
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, params)
	if err != nil {
		return nil, ErrCaptureFailed
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	return data, nil
}

// jpegQualityParam converts a [0,1] quality to the 0-100 scale OpenCV expects.
func jpegQualityParam(quality float64) int {
	if quality < 0 {
		quality = 0
	}
	if quality > 1 {
		quality = 1
	}
	return int(quality * 100)
}
