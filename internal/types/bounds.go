package types

import (
	"fmt"

	"github.com/paulmach/orb"
)

// BoundingBox represents a geographic bounding box in WGS84 (EPSG:4326)
type BoundingBox struct {
	MinLon float64 // Western edge (degrees)
	MinLat float64 // Southern edge (degrees)
	MaxLon float64 // Eastern edge (degrees)
	MaxLat float64 // Northern edge (degrees)
}

// FromBound converts an orb.Bound.
func FromBound(b orb.Bound) BoundingBox {
	return BoundingBox{MinLon: b.Min.Lon(), MinLat: b.Min.Lat(), MaxLon: b.Max.Lon(), MaxLat: b.Max.Lat()}
}

// Bound converts back to an orb.Bound.
func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.MinLon, b.MinLat}, Max: orb.Point{b.MaxLon, b.MaxLat}}
}

// Array returns [minLon, minLat, maxLon, maxLat].
func (b BoundingBox) Array() [4]float64 {
	return [4]float64{b.MinLon, b.MinLat, b.MaxLon, b.MaxLat}
}

// Contains reports whether p lies inside the box (edges included).
func (b BoundingBox) Contains(p orb.Point) bool {
	return p.Lon() >= b.MinLon && p.Lon() <= b.MaxLon && p.Lat() >= b.MinLat && p.Lat() <= b.MaxLat
}

// ExpandByFraction grows the box on every side by a fraction of its size.
func (b BoundingBox) ExpandByFraction(f float64) BoundingBox {
	if f == 0 {
		return b
	}
	dx := b.Width() * f
	dy := b.Height() * f
	return BoundingBox{MinLon: b.MinLon - dx, MinLat: b.MinLat - dy, MaxLon: b.MaxLon + dx, MaxLat: b.MaxLat + dy}
}

// String returns a human-readable representation of the bounding box
func (b BoundingBox) String() string {
	return fmt.Sprintf("bbox(%.6f,%.6f,%.6f,%.6f)", b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
}

// Center returns the center point of the bounding box
func (b BoundingBox) Center() orb.Point {
	return orb.Point{(b.MinLon + b.MaxLon) / 2, (b.MinLat + b.MaxLat) / 2}
}

// Width returns the width of the bounding box in degrees
func (b BoundingBox) Width() float64 {
	return b.MaxLon - b.MinLon
}

// Height returns the height of the bounding box in degrees
func (b BoundingBox) Height() float64 {
	return b.MaxLat - b.MinLat
}
