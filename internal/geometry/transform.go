// Package geometry maps content onto a rendering surface.
//
// Every transform is center-anchored: content is scaled uniformly, optionally
// rotated a quarter turn, and translated so its center lands on the surface
// center. Fit keeps the whole frame visible; Fill covers the surface and may crop.
package geometry

import (
	"image"
	"math"

	"github.com/genricoloni/vidcore/internal/domain"
)

// ComputeTransform returns the mapping from content pixels to surface pixels.
// A zero dimension on either side yields the identity transform.
func ComputeTransform(surface, content domain.Size, spec domain.TransformSpec) domain.Transform {
	if surface.IsZero() || content.IsZero() {
		return domain.IdentityTransform
	}

	sw, sh := float64(surface.Width), float64(surface.Height)
	cw, ch := float64(content.Width), float64(content.Height)

	landscape := spec.Orientation == domain.Landscape

	// Footprint of the content on the surface once rotated
	fw, fh := cw, ch
	if landscape {
		fw, fh = ch, cw
	}

	sx, sy := sw/fw, sh/fh
	s := math.Min(sx, sy)
	if spec.Fill {
		s = math.Max(sx, sy)
	}

	// p' = R * s * (p - contentCenter) + surfaceCenter
	ccx, ccy := cw/2, ch/2
	scx, scy := sw/2, sh/2

	if landscape {
		// R rotates 90 degrees clockwise in screen coordinates: (x, y) -> (-y, x)
		return domain.Transform{
			0, -s, scx + s*ccy,
			s, 0, scy - s*ccx,
		}
	}

	return domain.Transform{
		s, 0, scx - s*ccx,
		0, s, scy - s*ccy,
	}
}

// Scale returns the uniform scale factor encoded in t
func Scale(t domain.Transform) float64 {
	return math.Hypot(t[0], t[3])
}

// Apply maps a single point through t
func Apply(t domain.Transform, x, y float64) (float64, float64) {
	return t[0]*x + t[1]*y + t[2], t[3]*x + t[4]*y + t[5]
}

// Concat returns the transform applying b first, then a
func Concat(a, b domain.Transform) domain.Transform {
	return domain.Transform{
		a[0]*b[0] + a[1]*b[3], a[0]*b[1] + a[1]*b[4], a[0]*b[2] + a[1]*b[5] + a[2],
		a[3]*b[0] + a[4]*b[3], a[3]*b[1] + a[4]*b[4], a[3]*b[2] + a[4]*b[5] + a[5],
	}
}

// Bounds returns the surface rectangle covered by content after t
func Bounds(t domain.Transform, content domain.Size) image.Rectangle {
	w, h := float64(content.Width), float64(content.Height)
	corners := [4][2]float64{{0, 0}, {w, 0}, {0, h}, {w, h}}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range corners {
		x, y := Apply(t, c[0], c[1])
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}

	return image.Rect(
		int(math.Round(minX)), int(math.Round(minY)),
		int(math.Round(maxX)), int(math.Round(maxY)),
	)
}
