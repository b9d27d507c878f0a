package broadcast

import (
	"fmt"
	"sync"
	"testing"

	"github.com/ayusman/darpan/internal/capture"
)

func testFrame(tag string) *capture.Frame {
	return &capture.Frame{Data: []byte(tag)}
}

func TestCoalescer_EmptyTake(t *testing.T) {
	c := NewCoalescer()

	frame, ok := c.TakeAndClear()
	if ok {
		t.Errorf("TakeAndClear() on empty slot = (%v, true), want (nil, false)", frame)
	}
	if frame != nil {
		t.Errorf("TakeAndClear() frame = %v, want nil", frame)
	}
}

func TestCoalescer_LastSubmissionWins(t *testing.T) {
	tests := []struct {
		name        string
		submissions int
	}{
		{name: "single submission", submissions: 1},
		{name: "two submissions", submissions: 2},
		{name: "many submissions", submissions: 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCoalescer()

			var last *capture.Frame
			for i := 0; i < tt.submissions; i++ {
				last = testFrame(fmt.Sprintf("frame-%d", i))
				c.Submit(last)
			}

			got, ok := c.TakeAndClear()
			if !ok {
				t.Fatal("TakeAndClear() = (_, false), want the last submitted frame")
			}
			if got != last {
				t.Errorf("TakeAndClear() = %s, want %s", got.Data, last.Data)
			}

			// The slot must be empty after a take.
			if _, ok := c.TakeAndClear(); ok {
				t.Error("second TakeAndClear() returned a frame; each frame must be claimed at most once")
			}
		})
	}
}

func TestCoalescer_ResubmitSameFrame(t *testing.T) {
	c := NewCoalescer()
	frame := testFrame("same")

	// Submitting the same frame twice with no read in between behaves like
	// a single submission.
	c.Submit(frame)
	c.Submit(frame)

	got, ok := c.TakeAndClear()
	if !ok || got != frame {
		t.Fatalf("TakeAndClear() = (%v, %v), want the submitted frame", got, ok)
	}

	if _, ok := c.TakeAndClear(); ok {
		t.Error("slot should be empty after the single read")
	}
}

func TestCoalescer_DroppedCount(t *testing.T) {
	c := NewCoalescer()

	c.Submit(testFrame("a"))
	c.Submit(testFrame("b"))
	c.Submit(testFrame("c"))

	if got := c.Dropped(); got != 2 {
		t.Errorf("Dropped() = %d, want 2", got)
	}

	c.TakeAndClear()
	c.Submit(testFrame("d"))

	if got := c.Dropped(); got != 2 {
		t.Errorf("Dropped() after claimed take = %d, want 2", got)
	}
}

func TestCoalescer_ConcurrentProducerConsumer(t *testing.T) {
	c := NewCoalescer()

	const submissions = 1000
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < submissions; i++ {
			c.Submit(testFrame(fmt.Sprintf("frame-%d", i)))
		}
	}()

	taken := 0
	go func() {
		defer wg.Done()
		for i := 0; i < submissions; i++ {
			if _, ok := c.TakeAndClear(); ok {
				taken++
			}
		}
	}()

	wg.Wait()

	// Everything submitted was either taken once or counted as dropped;
	// at most one frame may still sit unclaimed in the slot.
	remaining := 0
	if _, ok := c.TakeAndClear(); ok {
		remaining = 1
	}
	total := taken + int(c.Dropped()) + remaining
	if total != submissions {
		t.Errorf("taken(%d) + dropped(%d) + remaining(%d) = %d, want %d",
			taken, c.Dropped(), remaining, total, submissions)
	}
}
