package types

import (
	"fmt"
	"strconv"

	"github.com/paulmach/orb"
)

// Feature is a single point feature loaded from a static dataset.
// Features are built once at load time and never mutated afterwards.
type Feature struct {
	ID         string         // Stable identifier within its source (e.g. "interim-housing/42")
	Point      orb.Point      // [lon, lat] in WGS84 degrees
	Properties map[string]any // Scalar properties (strings and numbers)
}

// NewFeature creates a feature with a copy of the given properties.
func NewFeature(id string, pt orb.Point, props map[string]any) Feature {
	cp := make(map[string]any, len(props))
	for k, v := range props {
		cp[k] = v
	}
	return Feature{ID: id, Point: pt, Properties: cp}
}

// Get returns the raw property value for key, or nil.
func (f Feature) Get(key string) any {
	if f.Properties == nil {
		return nil
	}
	return f.Properties[key]
}

// Text returns the property formatted for display. Missing values become "".
func (f Feature) Text(key string) string {
	return FormatValue(f.Get(key))
}

// FormatValue formats a scalar property value for display.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// Boundary is a polygonal administrative area (council district, city limit).
type Boundary struct {
	ID         string
	Name       string
	Geometry   orb.MultiPolygon
	Properties map[string]any
}

// Bound returns the bounding box of the boundary geometry.
func (b Boundary) Bound() orb.Bound {
	return b.Geometry.Bound()
}
