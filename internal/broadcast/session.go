package broadcast

import (
	"bytes"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

// streamBoundary separates frames in the multipart body. The leading dashes
// are baked into the boundary itself, matching what MJPEG viewers in the
// wild expect for this stream.
const streamBoundary = "--BoundaryString"

// streamHeader is sent once per client before the first frame.
const streamHeader = "HTTP/1.0 200 OK\r\n" +
	"Content-Type: multipart/x-mixed-replace; boundary=" + streamBoundary + "\r\n" +
	"Cache-Control: no-cache, no-store, must-revalidate\r\n" +
	"Pragma: no-cache\r\n" +
	"Expires: 0\r\n" +
	"Connection: close\r\n" +
	"Access-Control-Allow-Origin: *\r\n" +
	"\r\n"

// outboundDepth bounds the per-client write queue. A client that cannot
// drain it misses frames; it never delays the pacing loop or other clients.
const outboundDepth = 8

// frameChunk wraps a JPEG payload in one multipart chunk.
func frameChunk(payload []byte) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s\r\nContent-type: image/jpeg\r\nContent-Length: %d\r\n\r\n", streamBoundary, len(payload))
	buf.Write(payload)
	buf.WriteString("\r\n\r\n")
	return buf.Bytes()
}

// session is one connected viewer. A session starts pending; it becomes
// active once the client sends any bytes, which is the readiness signal to
// send the stream header and priming frames. Writes go through a dedicated
// goroutine fed by a bounded queue.
type session struct {
	id          string
	conn        net.Conn
	connectedAt time.Time

	mu        sync.Mutex
	activated bool
	active    bool
	primed    bool

	out  chan []byte
	done chan struct{}
	once sync.Once

	onActive func(*session)
	onClose  func(*session)
}

func newSession(conn net.Conn, onActive, onClose func(*session)) *session {
	return &session{
		id:          uuid.NewString(),
		conn:        conn,
		connectedAt: time.Now(),
		out:         make(chan []byte, outboundDepth),
		done:        make(chan struct{}),
		onActive:    onActive,
		onClose:     onClose,
	}
}

// start launches the session's read and write loops.
func (s *session) start() {
	go s.readLoop()
	go s.writeLoop()
}

// readLoop waits for the first client bytes to mark the session active,
// then keeps reading only to notice the client going away.
func (s *session) readLoop() {
	buf := make([]byte, 256)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			s.markActive()
		}
		if err != nil {
			s.close()
			return
		}
	}
}

// writeLoop drains the outbound queue onto the socket. Any write error
// tears the session down; delivery to other clients is unaffected.
func (s *session) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case b := <-s.out:
			if _, err := s.conn.Write(b); err != nil {
				s.close()
				return
			}
		}
	}
}

// markActive runs the activation callback and only then publishes the
// session as active. Broadcasts must not see the session until the stream
// header (and any priming) sits in the queue ahead of them.
func (s *session) markActive() {
	s.mu.Lock()
	if s.activated {
		s.mu.Unlock()
		return
	}
	s.activated = true
	s.mu.Unlock()

	if s.onActive != nil {
		s.onActive(s)
	}

	s.mu.Lock()
	s.active = true
	s.mu.Unlock()
}

func (s *session) isActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *session) isPrimed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.primed
}

func (s *session) setPrimed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.primed = true
}

// enqueue offers bytes to the write queue without blocking. It reports
// whether the bytes were accepted.
func (s *session) enqueue(b []byte) bool {
	select {
	case s.out <- b:
		return true
	default:
		return false
	}
}

// close shuts the session down exactly once and deregisters it.
func (s *session) close() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
		if s.onClose != nil {
			s.onClose(s)
		}
	})
}
