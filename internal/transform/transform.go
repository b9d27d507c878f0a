// Package transform re-encodes captured frames at a target scale, quality
// and orientation. Scaling prefers an OpenCV-accelerated path and falls back
// to a pure-Go path; a frame that cannot be processed at all is passed
// through unchanged so the pipeline never stalls on a transform error.
package transform

import (
	"github.com/ayusman/darpan/internal/capture"
)

// Scale factor and quality bounds.
const (
	MinScaleFactor = 0.01
	MaxScaleFactor = 1.0
	MinQuality     = 0.0
	MaxQuality     = 1.0
)

// Options control a single transform call.
type Options struct {
	// ScaleFactor is the output size relative to the input, in (0,1].
	ScaleFactor float64
	// Quality is the JPEG re-encode quality, in [0,1].
	Quality float64
	// FixOrientation rotates pixels according to the frame's recorded
	// orientation instead of copying them as captured.
	FixOrientation bool
}

// normalized returns a copy of the options with out-of-range values clamped.
func (o Options) normalized() Options {
	if o.ScaleFactor < MinScaleFactor {
		o.ScaleFactor = MinScaleFactor
	}
	if o.ScaleFactor > MaxScaleFactor {
		o.ScaleFactor = MaxScaleFactor
	}
	if o.Quality < MinQuality {
		o.Quality = MinQuality
	}
	if o.Quality > MaxQuality {
		o.Quality = MaxQuality
	}
	return o
}

// scaler is one scaling strategy. A scaler returns the re-encoded bytes or
// an error; errors are never surfaced past Transform.
type scaler interface {
	scale(frame *capture.Frame, opts Options) ([]byte, error)
}

// Transformer converts frames using the best available strategy.
type Transformer struct {
	accelerated scaler // nil when the probe failed
	software    scaler
}

// New creates a Transformer. Accelerated scaling is probed once here; when
// the probe fails every call goes straight to the software path.
func New() *Transformer {
	t := &Transformer{software: &softwareScaler{}}
	if a, ok := newAcceleratedScaler(); ok {
		t.accelerated = a
	}
	return t
}

// Transform re-encodes the frame per the given options. It never fails: if
// the accelerated path errors the software path runs, and if both fail the
// original frame is returned unchanged.
func (t *Transformer) Transform(frame *capture.Frame, opts Options) *capture.Frame {
	if frame == nil || len(frame.Data) == 0 {
		return frame
	}
	opts = opts.normalized()

	if t.accelerated != nil && opts.ScaleFactor < MaxScaleFactor {
		if data, err := t.accelerated.scale(frame, opts); err == nil && len(data) > 0 {
			return reframe(frame, data, opts)
		}
	}

	if data, err := t.software.scale(frame, opts); err == nil && len(data) > 0 {
		return reframe(frame, data, opts)
	}

	return frame
}

// reframe wraps transformed bytes in a new frame carrying over the capture
// metadata. A frame whose pixels were rotated upright is marked as such.
func reframe(frame *capture.Frame, data []byte, opts Options) *capture.Frame {
	orientation := frame.Orientation
	if opts.FixOrientation {
		orientation = capture.OrientationUp
	}
	return &capture.Frame{
		Data:        data,
		CapturedAt:  frame.CapturedAt,
		ScreenID:    frame.ScreenID,
		Orientation: orientation,
	}
}

// identity reports whether the options ask for no pixel changes at all.
func identity(frame *capture.Frame, opts Options) bool {
	if opts.ScaleFactor < MaxScaleFactor {
		return false
	}
	if opts.FixOrientation && frame.Orientation != capture.OrientationUp {
		return false
	}
	return true
}

// scaledDim converts a source dimension, never collapsing below one pixel.
func scaledDim(dim int, factor float64) int {
	out := int(float64(dim) * factor)
	if out < 1 {
		out = 1
	}
	return out
}
