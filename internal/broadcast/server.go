package broadcast

import (
	"bytes"
	"log"
	"net"
	"sync"
	"time"

	"github.com/ayusman/darpan/internal/capture"
	"github.com/ayusman/darpan/internal/transform"
)

// Pacing defaults. All of them can be overridden through Config.
const (
	// DefaultFPS is the target framerate when the store has no setting.
	DefaultFPS = 10
	// DefaultMaxFPS caps the configured framerate.
	DefaultMaxFPS = 60
	// DefaultCaptureTimeout bounds a single snapshot call.
	DefaultCaptureTimeout = time.Second
	// DefaultDuplicateWindow is the minimum gap between sends of
	// byte-identical captures.
	DefaultDuplicateWindow = 500 * time.Millisecond
	// DefaultPrimingFrames is how many copies of the current frame a
	// freshly connected viewer receives so its decoder can render
	// immediately.
	DefaultPrimingFrames = 2
)

// captureFailureStreak is the run of consecutive capture failures after
// which the condition is logged as an operator-visible signal.
const captureFailureStreak = 10

// Settings are the stream parameters polled from the configuration store
// on every tick. Percent fields use the store's 0-100 scale.
type Settings struct {
	Framerate      int
	ScalePercent   int
	QualityPercent int
	FixOrientation bool
}

// SettingsSource supplies the current stream settings.
type SettingsSource interface {
	StreamSettings() Settings
}

// Stats is a point-in-time snapshot of the broadcaster.
type Stats struct {
	Clients         int       `json:"clients"`
	FramesSent      uint64    `json:"frames_sent"`
	FramesDropped   uint64    `json:"frames_dropped"`
	CaptureFailures uint64    `json:"capture_failures"`
	LastSentAt      time.Time `json:"last_sent_at"`
	Enabled         bool      `json:"enabled"`
}

// FrameTransformer converts a captured frame for delivery. It must not
// fail; transform.Transformer satisfies this.
type FrameTransformer interface {
	Transform(frame *capture.Frame, opts transform.Options) *capture.Frame
}

// Config configures a broadcast Server.
type Config struct {
	Source      capture.Source
	Transformer FrameTransformer
	Settings    SettingsSource
	ScreenID    int

	// Optional overrides; zero values take the defaults above.
	MaxFPS          int
	CaptureTimeout  time.Duration
	DuplicateWindow time.Duration
	PrimingFrames   int
}

// Server owns the capture/pace loop and the set of connected viewers.
// One goroutine paces captures, a second drains the coalescer through the
// transformer and fans frames out; the coalescer is the only handoff
// between them.
type Server struct {
	cfg       Config
	coalescer *Coalescer

	ln     net.Listener
	sessMu sync.Mutex
	sess   map[string]*session

	stateMu         sync.Mutex
	lastCaptured    []byte
	lastFrame       []byte
	lastSentAt      time.Time
	framesSent      uint64
	captureFailures uint64
	failureStreak   int
	enabled         bool

	frameReady chan struct{}
	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup

	now func() time.Time
}

// New creates a broadcast Server. Start must be called to begin serving.
func New(cfg Config) *Server {
	if cfg.MaxFPS <= 0 {
		cfg.MaxFPS = DefaultMaxFPS
	}
	if cfg.CaptureTimeout <= 0 {
		cfg.CaptureTimeout = DefaultCaptureTimeout
	}
	if cfg.DuplicateWindow <= 0 {
		cfg.DuplicateWindow = DefaultDuplicateWindow
	}
	if cfg.PrimingFrames <= 0 {
		cfg.PrimingFrames = DefaultPrimingFrames
	}

	return &Server{
		cfg:        cfg,
		coalescer:  NewCoalescer(),
		sess:       make(map[string]*session),
		enabled:    true,
		frameReady: make(chan struct{}, 1),
		stopCh:     make(chan struct{}),
		now:        time.Now,
	}
}

// Start listens on addr and launches the accept, pacing and transform
// goroutines.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.ln = ln

	log.Printf("mjpeg broadcast listening on %s", ln.Addr())

	s.wg.Add(3)
	go s.acceptLoop()
	go s.paceLoop()
	go s.drainLoop()

	return nil
}

// Addr returns the listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Stop closes the listener and every client connection, then waits for the
// background goroutines to finish. In-flight capture or transform work is
// allowed to complete; no new ticks are scheduled.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if s.ln != nil {
			s.ln.Close()
		}
	})

	s.sessMu.Lock()
	sessions := make([]*session, 0, len(s.sess))
	for _, sess := range s.sess {
		sessions = append(sessions, sess)
	}
	s.sessMu.Unlock()

	for _, sess := range sessions {
		sess.close()
	}

	s.wg.Wait()
}

// SetEnabled pauses or resumes broadcasting. While disabled the pacing loop
// idles without touching the capture source.
func (s *Server) SetEnabled(enabled bool) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.enabled = enabled
}

// IsEnabled reports whether broadcasting is enabled.
func (s *Server) IsEnabled() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.enabled
}

// Stats returns a snapshot of the broadcaster's counters.
func (s *Server) Stats() Stats {
	clients := s.activeCount()

	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return Stats{
		Clients:         clients,
		FramesSent:      s.framesSent,
		FramesDropped:   s.coalescer.Dropped(),
		CaptureFailures: s.captureFailures,
		LastSentAt:      s.lastSentAt,
		Enabled:         s.enabled,
	}
}

// LatestFrame returns the most recently broadcast JPEG, or nil when nothing
// has been sent yet.
func (s *Server) LatestFrame() []byte {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.lastFrame
}

// activeCount counts sessions that have signalled readiness.
func (s *Server) activeCount() int {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()

	n := 0
	for _, sess := range s.sess {
		if sess.isActive() {
			n++
		}
	}
	return n
}

// acceptLoop registers new connections as pending sessions. Nothing is sent
// until the client sends bytes of its own.
func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				return
			default:
			}
			log.Printf("accept error: %v", err)
			return
		}

		sess := newSession(conn, s.activateSession, s.removeSession)

		s.sessMu.Lock()
		s.sess[sess.id] = sess
		s.sessMu.Unlock()

		log.Printf("viewer %s connected from %s", sess.id, conn.RemoteAddr())
		sess.start()
	}
}

// activateSession runs when a pending session sends its first bytes: the
// stream header goes out once, followed by the priming frames when a frame
// already exists. With no frame yet, priming is deferred to the first
// broadcast, which is then written twice.
func (s *Server) activateSession(sess *session) {
	sess.enqueue([]byte(streamHeader))

	s.stateMu.Lock()
	last := s.lastFrame
	s.stateMu.Unlock()

	if last == nil {
		return
	}

	chunk := frameChunk(last)
	for i := 0; i < s.cfg.PrimingFrames; i++ {
		sess.enqueue(chunk)
	}
	sess.setPrimed()
}

// removeSession drops a session from the set after a disconnect or write
// failure.
func (s *Server) removeSession(sess *session) {
	s.sessMu.Lock()
	_, ok := s.sess[sess.id]
	delete(s.sess, sess.id)
	s.sessMu.Unlock()

	if ok {
		log.Printf("viewer %s disconnected", sess.id)
	}
}

// paceLoop schedules capture ticks against the configured framerate. Time
// already spent in a tick is subtracted from the wait; a tick that ran over
// budget starts the next one immediately.
func (s *Server) paceLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		start := s.now()
		interval := s.tick()

		elapsed := s.now().Sub(start)
		if remaining := interval - elapsed; remaining > 0 {
			select {
			case <-s.stopCh:
				return
			case <-time.After(remaining):
			}
		}
	}
}

// tick runs one pass of the pacing state machine and returns the target
// interval for this tick.
func (s *Server) tick() time.Duration {
	settings := s.settings()
	interval := time.Second / time.Duration(clampFPS(settings.Framerate, s.cfg.MaxFPS))

	// No viewers or paused: skip capture entirely.
	if !s.IsEnabled() || s.activeCount() == 0 {
		return interval
	}

	quality := float64(clampPercent(settings.QualityPercent)) / 100
	frame, err := s.cfg.Source.Capture(s.cfg.ScreenID, quality, s.cfg.CaptureTimeout)
	if err != nil {
		s.recordCaptureFailure(err)
		return interval
	}

	if !s.acceptCapture(frame.Data) {
		return interval
	}

	s.coalescer.Submit(frame)
	s.signalFrame()
	return interval
}

// recordCaptureFailure counts the failure and logs once per streak when the
// source looks dead.
func (s *Server) recordCaptureFailure(err error) {
	s.stateMu.Lock()
	s.captureFailures++
	s.failureStreak++
	streak := s.failureStreak
	s.stateMu.Unlock()

	if streak == captureFailureStreak {
		log.Printf("screen capture failing repeatedly (%d in a row): %v", streak, err)
	}
}

// acceptCapture records the raw capture and decides whether this tick may
// proceed to a send. A capture byte-identical to the previous one within
// the duplicate window is suppressed; the screen has not changed and the
// viewers already have this image.
func (s *Server) acceptCapture(data []byte) bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	s.failureStreak = 0

	duplicate := s.lastCaptured != nil && bytes.Equal(data, s.lastCaptured)
	s.lastCaptured = data

	if duplicate && s.now().Sub(s.lastSentAt) < s.cfg.DuplicateWindow {
		return false
	}
	return true
}

// signalFrame wakes the drain loop; a signal already pending is enough.
func (s *Server) signalFrame() {
	select {
	case s.frameReady <- struct{}{}:
	default:
	}
}

// drainLoop is the transform worker: it claims the freshest pending frame,
// scales it and fans it out, decoupled from the pacing loop so scaling
// latency never delays the next capture.
func (s *Server) drainLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			return
		case <-s.frameReady:
		}

		s.drainPending()
	}
}

// drainPending claims and processes frames until the coalescer is empty.
func (s *Server) drainPending() {
	for {
		frame, ok := s.coalescer.TakeAndClear()
		if !ok {
			return
		}
		s.processFrame(frame)
	}
}

// processFrame transforms one frame and broadcasts the result.
func (s *Server) processFrame(frame *capture.Frame) {
	settings := s.settings()
	out := s.cfg.Transformer.Transform(frame, transform.Options{
		ScaleFactor:    float64(clampPercent(settings.ScalePercent)) / 100,
		Quality:        float64(clampPercent(settings.QualityPercent)) / 100,
		FixOrientation: settings.FixOrientation,
	})
	s.broadcastFrame(out.Data)
}

// broadcastFrame writes one multipart chunk to every active session. An
// unprimed session receives the chunk PrimingFrames times so its decoder
// has a complete image immediately. Enqueueing never blocks; a full client
// queue just misses this frame.
func (s *Server) broadcastFrame(payload []byte) {
	chunk := frameChunk(payload)

	s.sessMu.Lock()
	targets := make([]*session, 0, len(s.sess))
	for _, sess := range s.sess {
		if sess.isActive() {
			targets = append(targets, sess)
		}
	}
	s.sessMu.Unlock()

	if len(targets) == 0 {
		return
	}

	for _, sess := range targets {
		if !sess.isPrimed() {
			for i := 0; i < s.cfg.PrimingFrames; i++ {
				sess.enqueue(chunk)
			}
			sess.setPrimed()
			continue
		}
		sess.enqueue(chunk)
	}

	s.stateMu.Lock()
	s.lastFrame = payload
	s.lastSentAt = s.now()
	s.framesSent++
	s.stateMu.Unlock()
}

// settings polls the configuration source, falling back to defaults when
// none is wired.
func (s *Server) settings() Settings {
	if s.cfg.Settings == nil {
		return Settings{
			Framerate:      DefaultFPS,
			ScalePercent:   100,
			QualityPercent: 80,
		}
	}
	return s.cfg.Settings.StreamSettings()
}

// clampFPS bounds the configured framerate to [1, maxFPS].
func clampFPS(fps, maxFPS int) int {
	if fps < 1 {
		return 1
	}
	if fps > maxFPS {
		return maxFPS
	}
	return fps
}

// clampPercent bounds a store percentage to [0, 100].
func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
