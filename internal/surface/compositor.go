package surface

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/genricoloni/vidcore/internal/domain"
	"github.com/genricoloni/vidcore/internal/geometry"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
)

const defaultBlurRadius = 15.0

// Compositor draws a frame onto a canvas through the canvas transform
type Compositor struct {
	logger       *zap.Logger
	blurBackdrop bool
	blurRadius   float64
}

// NewCompositor creates a compositor. With blurBackdrop the letterbox area is
// filled by a blurred, cropped copy of the frame instead of black.
func NewCompositor(logger *zap.Logger, blurBackdrop bool) *Compositor {
	return &Compositor{
		logger:       logger,
		blurBackdrop: blurBackdrop,
		blurRadius:   defaultBlurRadius,
	}
}

// Render returns the canvas contents after drawing frame with the current transform
func (c *Compositor) Render(frame image.Image, canvas *Canvas) (*image.NRGBA, error) {
	size := canvas.Size()
	if size.IsZero() {
		return nil, fmt.Errorf("invalid surface size: %s", size)
	}

	fb := frame.Bounds()
	if fb.Dx() == 0 || fb.Dy() == 0 {
		return nil, fmt.Errorf("invalid frame dimensions: %dx%d", fb.Dx(), fb.Dy())
	}

	var dst *image.NRGBA
	if c.blurBackdrop {
		c.logger.Debug("Creating blurred backdrop", zap.Stringer("size", size))
		dst = imaging.Fill(frame, size.Width, size.Height, imaging.Center, imaging.Lanczos)
		dst = imaging.Blur(dst, c.blurRadius)
	} else {
		dst = imaging.New(size.Width, size.Height, color.Black)
	}

	// The transform maps content pixels from the origin; frames may not start there
	origin := domain.Transform{1, 0, float64(-fb.Min.X), 0, 1, float64(-fb.Min.Y)}
	m := geometry.Concat(canvas.Transform(), origin)

	draw.BiLinear.Transform(dst, m, frame, fb, draw.Over, nil)
	return dst, nil
}
