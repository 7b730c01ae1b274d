// Package heatmap renders the citation heatmap overlay as raster tiles.
package heatmap

import (
	"encoding/json"
	"image/color"
	"sort"
)

// Stop is one (zoom, value) pair of a zoom-interpolated property.
type Stop struct {
	Zoom  float64
	Value float64
}

// Stops is a linear zoom interpolation. Stops must be sorted by zoom.
type Stops []Stop

// At interpolates the value at zoom z, clamping outside the stop range.
func (s Stops) At(z float64) float64 {
	if len(s) == 0 {
		return 0
	}
	if z <= s[0].Zoom {
		return s[0].Value
	}
	last := s[len(s)-1]
	if z >= last.Zoom {
		return last.Value
	}

	i := sort.Search(len(s), func(i int) bool { return s[i].Zoom >= z })
	lo, hi := s[i-1], s[i]
	t := (z - lo.Zoom) / (hi.Zoom - lo.Zoom)
	return lo.Value + t*(hi.Value-lo.Value)
}

// MarshalJSON encodes the stops as a rendering-engine interpolate expression.
func (s Stops) MarshalJSON() ([]byte, error) {
	expr := []any{"interpolate", []any{"linear"}, []any{"zoom"}}
	for _, st := range s {
		expr = append(expr, st.Zoom, st.Value)
	}
	return json.Marshal(expr)
}

// ColorStop maps a heatmap density to a colour.
type ColorStop struct {
	Density float64
	CSS     string // as sent to the browser
	Color   color.NRGBA
}

// Ramp is the density colour ramp, sorted by density.
type Ramp []ColorStop

// At returns the colour for density d in [0,1].
func (r Ramp) At(d float64) color.NRGBA {
	if len(r) == 0 {
		return color.NRGBA{}
	}
	if d <= r[0].Density {
		return r[0].Color
	}
	last := r[len(r)-1]
	if d >= last.Density {
		return last.Color
	}

	i := sort.Search(len(r), func(i int) bool { return r[i].Density >= d })
	lo, hi := r[i-1], r[i]
	t := (d - lo.Density) / (hi.Density - lo.Density)
	return color.NRGBA{
		R: lerp8(lo.Color.R, hi.Color.R, t),
		G: lerp8(lo.Color.G, hi.Color.G, t),
		B: lerp8(lo.Color.B, hi.Color.B, t),
		A: lerp8(lo.Color.A, hi.Color.A, t),
	}
}

// MarshalJSON encodes the ramp as a heatmap-density interpolate expression.
func (r Ramp) MarshalJSON() ([]byte, error) {
	expr := []any{"interpolate", []any{"linear"}, []any{"heatmap-density"}}
	for _, st := range r {
		expr = append(expr, st.Density, st.CSS)
	}
	return json.Marshal(expr)
}

func lerp8(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + t*(float64(b)-float64(a)) + 0.5)
}

// Style is the paint of a heatmap layer.
type Style struct {
	Radius    Stops   `json:"heatmap-radius"`
	Weight    Stops   `json:"heatmap-weight"`
	Intensity Stops   `json:"heatmap-intensity"`
	Opacity   Stops   `json:"heatmap-opacity"`
	Color     Ramp    `json:"heatmap-color"`
	MinZoom   float64 `json:"-"`
}

// CitationStyle is the paint of the parking citation layer.
func CitationStyle() Style {
	return Style{
		MinZoom: 5,
		Radius: Stops{
			{0, 3}, {10, 8}, {11.59, 11}, {13.7, 20}, {16.02, 35}, {16.76, 58}, {22, 100},
		},
		Weight: Stops{
			{0, 0.1}, {7, 0.3}, {10.07, 0.5}, {12.75, 0.7}, {16, 0.9}, {22, 1.3},
		},
		Intensity: Stops{
			{0, 0.5}, {7.74, 0.2}, {9.17, 0.2}, {11.55, 0.5}, {12.75, 0.8}, {16.19, 1}, {22, 1},
		},
		Opacity: Stops{
			{0, 0.6}, {12.11, 0.7}, {15, 0.8}, {22, 1},
		},
		Color: Ramp{
			{0, "rgba(0, 0, 255, 0)", color.NRGBA{R: 0, G: 0, B: 255, A: 0}},
			{0.1, "royalblue", color.NRGBA{R: 65, G: 105, B: 225, A: 255}},
			{0.3, "cyan", color.NRGBA{R: 0, G: 255, B: 255, A: 255}},
			{0.67, "hsl(60, 100%, 50%)", color.NRGBA{R: 255, G: 255, B: 0, A: 255}},
			{1, "rgb(255, 0, 0)", color.NRGBA{R: 255, G: 0, B: 0, A: 255}},
		},
	}
}
