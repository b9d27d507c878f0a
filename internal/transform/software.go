package transform

import (
	"bytes"
	"image"
	"image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"

	"github.com/ayusman/darpan/internal/capture"
)

// softwareScaler is the pure-Go fallback path.
type softwareScaler struct{}

func (s *softwareScaler) scale(frame *capture.Frame, opts Options) ([]byte, error) {
	// Nothing to change: hand back the captured bytes as-is.
	if identity(frame, opts) {
		return frame.Data, nil
	}

	img, _, err := image.Decode(bytes.NewReader(frame.Data))
	if err != nil {
		return nil, err
	}

	if opts.ScaleFactor < MaxScaleFactor {
		img = scaleImage(img, opts.ScaleFactor)
	}

	// Rotate after scaling so the rotation copies fewer pixels.
	if opts.FixOrientation && frame.Orientation != capture.OrientationUp {
		img = rotateImage(img, frame.Orientation)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: int(opts.Quality * 100)}); err != nil {
		return nil, err
	}

	if buf.Len() == 0 {
		return nil, errEmptyOutput
	}
	return buf.Bytes(), nil
}

// scaleImage renders the image into a canvas at the scaled dimensions.
// ApproxBiLinear trades some quality for speed; this path only runs when
// the accelerated scaler is unavailable.
func scaleImage(img image.Image, factor float64) image.Image {
	bounds := img.Bounds()
	width := scaledDim(bounds.Dx(), factor)
	height := scaledDim(bounds.Dy(), factor)

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, xdraw.Src, nil)
	return dst
}

// rotateImage copies pixels so the result is upright for the given recorded
// orientation.
func rotateImage(img image.Image, o capture.Orientation) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	var dst *image.RGBA
	switch o {
	case capture.OrientationLeft, capture.OrientationRight:
		dst = image.NewRGBA(image.Rect(0, 0, h, w))
	default:
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := img.At(bounds.Min.X+x, bounds.Min.Y+y)
			switch o {
			case capture.OrientationLeft:
				// 90 degrees clockwise.
				dst.Set(h-1-y, x, c)
			case capture.OrientationRight:
				// 90 degrees counter-clockwise.
				dst.Set(y, w-1-x, c)
			case capture.OrientationDown:
				dst.Set(w-1-x, h-1-y, c)
			default:
				dst.Set(x, y, c)
			}
		}
	}
	return dst
}
