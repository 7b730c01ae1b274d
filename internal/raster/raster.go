// Package raster draws boundary polygons onto overlay tiles.
package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/civicmaps/internal/tile"
	"github.com/MeKo-Tech/civicmaps/internal/types"
	"github.com/paulmach/orb"
	"golang.org/x/image/vector"
)

// LineStyle is the paint of a line layer.
type LineStyle struct {
	Color   color.NRGBA
	Width   float64 // CSS pixels
	Opacity float64
}

// FillStyle is the paint of a fill layer.
type FillStyle struct {
	Color   color.NRGBA
	Opacity float64
}

type Renderer struct {
	zoom    float64
	size    int // world tile size in pixels, includes the pixel scale
	scale   float64
	offsetX float64 // global pixel space
	offsetY float64 // global pixel space
	canvasW int
	canvasH int
}

// NewRenderer creates a renderer whose canvas covers exactly tile c at the
// given pixel scale (1 or 2).
func NewRenderer(c tile.Coords, scale int) *Renderer {
	if scale < 1 {
		scale = 1
	}
	size := tile.DefaultSize * scale
	ox, oy := c.Origin(size)
	return &Renderer{
		zoom:    float64(c.Z),
		size:    size,
		scale:   float64(scale),
		offsetX: ox,
		offsetY: oy,
		canvasW: size,
		canvasH: size,
	}
}

// Bounds returns the canvas rectangle.
func (r *Renderer) Bounds() image.Rectangle {
	return image.Rect(0, 0, r.canvasW, r.canvasH)
}

// RenderBoundaries strokes the outline of every boundary onto a new canvas.
func (r *Renderer) RenderBoundaries(boundaries []types.Boundary, style LineStyle) *image.NRGBA {
	dst := image.NewNRGBA(r.Bounds())
	r.StrokeBoundaries(dst, boundaries, style)
	return dst
}

// StrokeBoundaries strokes the rings of every boundary onto dst.
func (r *Renderer) StrokeBoundaries(dst *image.NRGBA, boundaries []types.Boundary, style LineStyle) {
	width := style.Width * r.scale
	if width <= 0 {
		width = r.scale
	}

	ras := vector.NewRasterizer(r.canvasW, r.canvasH)
	drawn := false
	for _, b := range boundaries {
		if !r.visible(b.Bound(), width) {
			continue
		}
		for _, poly := range b.Geometry {
			for _, ring := range poly {
				if r.strokeRing(ras, ring, width) {
					drawn = true
				}
			}
		}
	}
	if !drawn {
		return
	}
	ras.Draw(dst, dst.Bounds(), image.NewUniform(withOpacity(style.Color, style.Opacity)), image.Point{})
}

// FillBoundaries fills the interior of every boundary onto dst.
func (r *Renderer) FillBoundaries(dst *image.NRGBA, boundaries []types.Boundary, style FillStyle) {
	for _, b := range boundaries {
		if !r.visible(b.Bound(), 0) {
			continue
		}
		for _, poly := range b.Geometry {
			r.fillPolygon(dst, poly, withOpacity(style.Color, style.Opacity))
		}
	}
}

func (r *Renderer) fillPolygon(dst *image.NRGBA, poly orb.Polygon, c color.NRGBA) {
	if len(poly) == 0 {
		return
	}

	ras := vector.NewRasterizer(r.canvasW, r.canvasH)

	for _, ring := range poly {
		if len(ring) < 3 {
			continue
		}
		first := true
		for _, pt := range ring {
			x, y := r.toLocalPx(pt)
			if first {
				ras.MoveTo(float32(x), float32(y))
				first = false
			} else {
				ras.LineTo(float32(x), float32(y))
			}
		}
		ras.ClosePath()
	}

	ras.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{})
}

// strokeRing adds one quad per segment to ras. Each quad is extended by half
// the width at both ends so consecutive segments overlap at the joins. All
// quads share the same winding, so overlaps saturate instead of cancelling.
func (r *Renderer) strokeRing(ras *vector.Rasterizer, ring orb.Ring, width float64) bool {
	if len(ring) < 2 {
		return false
	}
	hw := width / 2
	added := false

	for i := 0; i < len(ring)-1; i++ {
		x0, y0 := r.toLocalPx(ring[i])
		x1, y1 := r.toLocalPx(ring[i+1])

		dx, dy := x1-x0, y1-y0
		l := math.Hypot(dx, dy)
		if l == 0 {
			continue
		}
		ux, uy := dx/l*hw, dy/l*hw // along the segment
		nx, ny := -uy, ux          // normal

		ax, ay := x0-ux, y0-uy
		bx, by := x1+ux, y1+uy

		ras.MoveTo(float32(ax+nx), float32(ay+ny))
		ras.LineTo(float32(bx+nx), float32(by+ny))
		ras.LineTo(float32(bx-nx), float32(by-ny))
		ras.LineTo(float32(ax-nx), float32(ay-ny))
		ras.ClosePath()
		added = true
	}
	return added
}

// visible reports whether a geographic bound, grown by margin pixels,
// touches the canvas.
func (r *Renderer) visible(b orb.Bound, margin float64) bool {
	x0, y1 := r.toLocalPx(b.Min)
	x1, y0 := r.toLocalPx(b.Max)
	return x1 >= -margin && y1 >= -margin &&
		x0 <= float64(r.canvasW)+margin && y0 <= float64(r.canvasH)+margin
}

// toLocalPx maps WGS84 lon/lat to pixel coordinates on the canvas.
func (r *Renderer) toLocalPx(p orb.Point) (float64, float64) {
	gx, gy := tile.LonLatToPixel(p, r.zoom, r.size)
	return gx - r.offsetX, gy - r.offsetY
}

func withOpacity(c color.NRGBA, opacity float64) color.NRGBA {
	if opacity <= 0 || opacity > 1 {
		return c
	}
	c.A = uint8(float64(c.A)*opacity + 0.5)
	return c
}

// ParseHexColor parses "#rgb", "#rrggbb" or "#rrggbbaa".
func ParseHexColor(s string) (color.NRGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) == 6 {
		h += "ff"
	}
	if len(h) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid hex colour %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex colour %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// IsTransparent reports whether every pixel of img has zero alpha.
func IsTransparent(img *image.NRGBA) bool {
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0 {
			return false
		}
	}
	return true
}

// EncodePNG encodes img as PNG with fast compression.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}
