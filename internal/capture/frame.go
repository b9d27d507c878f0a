package capture

import "time"

// Orientation describes the logical orientation recorded for a captured
// frame. Raw pixels are always captured upright; the orientation says how
// the screen was actually held when the snapshot was taken.
type Orientation int

const (
	// OrientationUp means the pixels already match the logical orientation.
	OrientationUp Orientation = iota
	// OrientationLeft means the screen was rotated 90 degrees counter-clockwise.
	OrientationLeft
	// OrientationRight means the screen was rotated 90 degrees clockwise.
	OrientationRight
	// OrientationDown means the screen was upside down.
	OrientationDown
)

// String returns a human-readable name for the orientation.
func (o Orientation) String() string {
	switch o {
	case OrientationUp:
		return "up"
	case OrientationLeft:
		return "left"
	case OrientationRight:
		return "right"
	case OrientationDown:
		return "down"
	default:
		return "unknown"
	}
}

// Frame is a single encoded screen snapshot with capture metadata.
// A Frame is immutable once created; ownership passes from producer to
// consumer at each handoff and the Data slice must not be mutated.
type Frame struct {
	Data        []byte
	CapturedAt  time.Time
	ScreenID    int
	Orientation Orientation
}
