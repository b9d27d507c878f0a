package transform

import (
	"errors"
	"image"

	"gocv.io/x/gocv"

	"github.com/ayusman/darpan/internal/capture"
)

var errEmptyOutput = errors.New("transform produced an empty image")

// acceleratedScaler scales frames through OpenCV.
type acceleratedScaler struct{}

// newAcceleratedScaler probes the OpenCV path with a tiny in-memory encode.
// A failed probe disables the path for the lifetime of the process.
func newAcceleratedScaler() (*acceleratedScaler, bool) {
	mat := gocv.NewMatWithSize(2, 2, gocv.MatTypeCV8UC3)
	defer mat.Close()

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, false
	}
	defer buf.Close()

	if buf.Len() == 0 {
		return nil, false
	}
	return &acceleratedScaler{}, true
}

func (a *acceleratedScaler) scale(frame *capture.Frame, opts Options) ([]byte, error) {
	mat, err := gocv.IMDecode(frame.Data, gocv.IMReadColor)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, errEmptyOutput
	}

	src := mat
	if opts.FixOrientation && frame.Orientation != capture.OrientationUp {
		rotated := gocv.NewMat()
		defer rotated.Close()
		gocv.Rotate(mat, &rotated, rotateCode(frame.Orientation))
		src = rotated
	}

	width := scaledDim(src.Cols(), opts.ScaleFactor)
	height := scaledDim(src.Rows(), opts.ScaleFactor)

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Resize(src, &dst, image.Pt(width, height), 0, 0, gocv.InterpolationArea)

	if dst.Empty() {
		return nil, errEmptyOutput
	}

	params := []int{gocv.IMWriteJpegQuality, int(opts.Quality * 100)}
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, dst, params)
	if err != nil {
		return nil, err
	}
	defer buf.Close()

	if buf.Len() == 0 {
		return nil, errEmptyOutput
	}

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	return data, nil
}

// rotateCode maps a recorded orientation to the OpenCV rotation that makes
// the pixels upright.
func rotateCode(o capture.Orientation) gocv.RotateFlag {
	switch o {
	case capture.OrientationLeft:
		return gocv.Rotate90Clockwise
	case capture.OrientationRight:
		return gocv.Rotate90CounterClockwise
	default:
		return gocv.Rotate180Clockwise
	}
}
