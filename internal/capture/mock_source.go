package capture

import (
	"sync"
	"time"
)

// MockSource plays back pre-canned snapshots for testing.
type MockSource struct {
	frames  [][]byte
	errs    []error
	index   int
	loop    bool
	mu      sync.Mutex
	running bool

	// Orientation recorded on every produced frame.
	Orientation Orientation

	captures int
}

// NewMockSource creates a MockSource that returns the given encoded frames
// in order. When loop is true playback wraps around at the end.
func NewMockSource(frames [][]byte, loop bool) *MockSource {
	return &MockSource{
		frames: frames,
		loop:   loop,
	}
}

func (s *MockSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
	s.index = 0
	return nil
}

func (s *MockSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return nil
}

func (s *MockSource) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Capture returns the next canned frame, or the next scripted error if one
// was set with FailWith.
func (s *MockSource) Capture(screenID int, quality float64, timeout time.Duration) (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil, ErrSourceNotOpen
	}

	s.captures++

	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return nil, err
	}

	if len(s.frames) == 0 {
		return nil, ErrCaptureFailed
	}

	if s.index >= len(s.frames) {
		if s.loop {
			s.index = 0
		} else {
			return nil, ErrCaptureFailed
		}
	}

	data := s.frames[s.index]
	s.index++

	return &Frame{
		Data:        data,
		CapturedAt:  time.Now(),
		ScreenID:    screenID,
		Orientation: s.Orientation,
	}, nil
}

// FailWith queues errors to be returned by upcoming Capture calls, before
// any frame playback resumes.
func (s *MockSource) FailWith(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, errs...)
}

// SetFrames replaces the frame sequence.
func (s *MockSource) SetFrames(frames [][]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = frames
	s.index = 0
}

// Captures reports how many times Capture has been called.
func (s *MockSource) Captures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captures
}

// Reset restarts playback from the beginning.
func (s *MockSource) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = 0
}
