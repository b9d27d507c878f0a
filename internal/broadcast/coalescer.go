// Package broadcast implements the live frame broadcast service: a paced
// capture loop feeding an MJPEG multipart stream fanned out to every
// connected viewer over TCP.
package broadcast

import (
	"sync"

	"github.com/ayusman/darpan/internal/capture"
)

// Coalescer is a single-slot mailbox between the capture loop and the
// transform worker. It holds at most the most recently submitted frame;
// a submission always overwrites, never queues. When scaling takes longer
// than the capture interval, intermediate frames are dropped so the stream
// converges on the latest screen state instead of building a backlog.
type Coalescer struct {
	mu      sync.Mutex
	pending *capture.Frame
	dropped uint64
}

// NewCoalescer creates an empty Coalescer.
func NewCoalescer() *Coalescer {
	return &Coalescer{}
}

// Submit places the frame in the slot, replacing any unclaimed frame.
// Replaced frames count as dropped; dropping is absorbed backpressure, not
// an error.
func (c *Coalescer) Submit(frame *capture.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending != nil {
		c.dropped++
	}
	c.pending = frame
}

// TakeAndClear atomically removes and returns the pending frame. It never
// blocks; when the slot is empty it returns (nil, false).
func (c *Coalescer) TakeAndClear() (*capture.Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil {
		return nil, false
	}

	frame := c.pending
	c.pending = nil
	return frame, true
}

// Dropped reports how many submitted frames were discarded unclaimed.
func (c *Coalescer) Dropped() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}
