package engine

import (
	"encoding/json"
	"fmt"

	"github.com/MeKo-Tech/civicmaps/internal/filter"
	"github.com/MeKo-Tech/civicmaps/internal/heatmap"
	"github.com/MeKo-Tech/civicmaps/internal/types"
)

// LayerType is the rendering type of a layer.
type LayerType string

const (
	LayerCircle  LayerType = "circle"
	LayerLine    LayerType = "line"
	LayerFill    LayerType = "fill"
	LayerHeatmap LayerType = "heatmap"
)

// Source is a named feature collection. A source holds either point
// features or boundary polygons.
type Source struct {
	ID         string
	Points     []types.Feature
	Boundaries []types.Boundary
}

// CirclePaint styles a circle layer.
type CirclePaint struct {
	Radius      float64 `json:"circle-radius"`
	Color       string  `json:"circle-color"`
	StrokeWidth float64 `json:"circle-stroke-width,omitempty"`
	StrokeColor string  `json:"circle-stroke-color,omitempty"`
	Opacity     float64 `json:"circle-opacity,omitempty"`
}

// LinePaint styles a line layer.
type LinePaint struct {
	Color   string  `json:"line-color"`
	Width   float64 `json:"line-width"`
	Opacity float64 `json:"line-opacity,omitempty"`
}

// FillPaint styles a fill layer.
type FillPaint struct {
	Color   string  `json:"fill-color"`
	Opacity float64 `json:"fill-opacity,omitempty"`
}

// Layer is a styled view of a source. Exactly one paint matching Type is set.
type Layer struct {
	ID      string
	Type    LayerType
	Source  string
	MinZoom float64
	MaxZoom float64 // 0 means unbounded

	Circle  *CirclePaint
	Line    *LinePaint
	Fill    *FillPaint
	Heatmap *heatmap.Style

	// Filter is the membership predicate; nil shows every feature.
	Filter filter.Expr
}

func (l Layer) validate() error {
	if l.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidLayer)
	}
	ok := false
	switch l.Type {
	case LayerCircle:
		ok = l.Circle != nil
	case LayerLine:
		ok = l.Line != nil
	case LayerFill:
		ok = l.Fill != nil
	case LayerHeatmap:
		ok = l.Heatmap != nil
	default:
		return fmt.Errorf("%w: %s: unknown type %q", ErrInvalidLayer, l.ID, l.Type)
	}
	if !ok {
		return fmt.Errorf("%w: %s: missing %s paint", ErrInvalidLayer, l.ID, l.Type)
	}
	return nil
}

// Visible reports whether the layer is drawn at zoom.
func (l Layer) Visible(zoom float64) bool {
	if zoom < l.MinZoom {
		return false
	}
	return l.MaxZoom == 0 || zoom < l.MaxZoom
}

// Tolerance is the hit-test radius in pixels at zoom.
func (l Layer) Tolerance(zoom float64) float64 {
	switch l.Type {
	case LayerCircle:
		return l.Circle.Radius + l.Circle.StrokeWidth
	case LayerHeatmap:
		return l.Heatmap.Radius.At(zoom)
	}
	return 0
}

// Queryable reports whether hover hit-testing applies to the layer.
func (l Layer) Queryable() bool {
	return l.Type == LayerCircle || l.Type == LayerHeatmap
}

// MarshalJSON encodes the layer in the browser engine's layer syntax.
func (l Layer) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"id":     l.ID,
		"type":   l.Type,
		"source": l.Source,
	}
	if l.MinZoom > 0 {
		out["minzoom"] = l.MinZoom
	}
	if l.MaxZoom > 0 {
		out["maxzoom"] = l.MaxZoom
	}
	switch l.Type {
	case LayerCircle:
		out["paint"] = l.Circle
	case LayerLine:
		out["paint"] = l.Line
	case LayerFill:
		out["paint"] = l.Fill
	case LayerHeatmap:
		out["paint"] = l.Heatmap
	}
	if l.Filter != nil {
		out["filter"] = l.Filter
	}
	return json.Marshal(out)
}
