package heatmap

import (
	"image"
	"math"

	"github.com/MeKo-Tech/civicmaps/internal/filter"
	"github.com/MeKo-Tech/civicmaps/internal/tile"
	"github.com/MeKo-Tech/civicmaps/internal/types"
	"github.com/disintegration/gift"
)

const (
	// headroom is the largest density kept through the 16-bit blur buffer.
	headroom = 4.0

	// discGain compensates for the Gaussian mass that a blurred disc of
	// radius r/2 loses at sigma r/3, so a lone point peaks at weight*intensity.
	discGain = 1.4805
)

// Renderer draws heatmap tiles for a set of point features.
type Renderer struct {
	Style Style
}

// NewRenderer creates a renderer for the given style.
func NewRenderer(style Style) *Renderer {
	return &Renderer{Style: style}
}

// RequiredPaddingPx returns the padding needed around a tile so that points
// just outside it still contribute to its edge pixels.
func (r *Renderer) RequiredPaddingPx(zoom float64, scale int) int {
	radius := r.Style.Radius.At(zoom) * float64(scale)
	return int(math.Ceil(radius)) + 2
}

// Render returns the tile c at the given pixel scale (1 or 2). Features
// failing pred are ignored; a nil pred keeps all of them. Tiles below the
// style's minimum zoom are fully transparent.
func (r *Renderer) Render(features []types.Feature, pred filter.Expr, c tile.Coords, scale int) *image.NRGBA {
	if scale < 1 {
		scale = 1
	}
	size := tile.DefaultSize * scale
	dst := image.NewNRGBA(image.Rect(0, 0, size, size))

	zoom := float64(c.Z)
	if zoom < r.Style.MinZoom {
		return dst
	}

	radius := r.Style.Radius.At(zoom) * float64(scale)
	value := r.Style.Weight.At(zoom) * r.Style.Intensity.At(zoom) * discGain
	opacity := r.Style.Opacity.At(zoom)

	pad := r.RequiredPaddingPx(zoom, scale)
	w := size + 2*pad
	ox, oy := c.Origin(size)
	ox -= float64(pad)
	oy -= float64(pad)

	density := make([]float64, w*w)
	core := radius / 2
	splats := 0
	for _, f := range features {
		if pred != nil && !pred.Eval(f.Properties) {
			continue
		}
		px, py := tile.LonLatToPixel(f.Point, zoom, size)
		lx, ly := px-ox, py-oy
		if lx < -core || ly < -core || lx > float64(w)+core || ly > float64(w)+core {
			continue
		}
		splatDisc(density, w, lx, ly, core, value)
		splats++
	}
	if splats == 0 {
		return dst
	}

	buf := image.NewGray16(image.Rect(0, 0, w, w))
	for i, v := range density {
		q := uint16(clamp01(v/headroom)*65535 + 0.5)
		buf.Pix[2*i] = uint8(q >> 8)
		buf.Pix[2*i+1] = uint8(q)
	}

	g := gift.New(gift.GaussianBlur(float32(radius / 3)))
	blurred := image.NewGray16(g.Bounds(buf.Bounds()))
	g.Draw(blurred, buf)

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			d := float64(blurred.Gray16At(x+pad, y+pad).Y) / 65535 * headroom
			if d <= 0 {
				continue
			}
			col := r.Style.Color.At(clamp01(d))
			col.A = uint8(float64(col.A)*opacity + 0.5)
			if col.A == 0 {
				continue
			}
			dst.SetNRGBA(x, y, col)
		}
	}
	return dst
}

// splatDisc adds v to every cell of a w*w grid whose centre lies within
// radius of (cx, cy).
func splatDisc(grid []float64, w int, cx, cy, radius, v float64) {
	if radius < 0.5 {
		radius = 0.5
	}
	minX := max(int(math.Floor(cx-radius)), 0)
	maxX := min(int(math.Ceil(cx+radius)), w-1)
	minY := max(int(math.Floor(cy-radius)), 0)
	maxY := min(int(math.Ceil(cy+radius)), w-1)

	r2 := radius * radius
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			dx := (float64(x) + 0.5) - cx
			dy := (float64(y) + 0.5) - cy
			if dx*dx+dy*dy <= r2 {
				grid[y*w+x] += v
			}
		}
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
