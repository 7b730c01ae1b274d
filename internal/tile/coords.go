package tile

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// DefaultSize is the edge length of a base tile in pixels.
const DefaultSize = 256

// MaxZoom bounds the zoom levels accepted from requests.
const MaxZoom = 22

// Coords represents a tile coordinate in the Web Mercator tile system (z/x/y)
type Coords struct {
	Z uint32 // Zoom level (0-22)
	X uint32 // X coordinate (column)
	Y uint32 // Y coordinate (row)
}

// NewCoords creates a new Coords from zoom, x, y values
func NewCoords(z, x, y uint32) Coords {
	return Coords{Z: z, X: x, Y: y}
}

// String returns the tile coordinate as a string in format "z{zoom}_x{x}_y{y}"
func (c Coords) String() string {
	return fmt.Sprintf("z%d_x%d_y%d", c.Z, c.X, c.Y)
}

// Valid reports whether x and y are inside the grid at zoom z.
func (c Coords) Valid() bool {
	if c.Z > MaxZoom {
		return false
	}
	n := uint32(1) << c.Z
	return c.X < n && c.Y < n
}

// Tile returns the maptile.Tile for this coordinate
func (c Coords) Tile() maptile.Tile {
	return maptile.New(c.X, c.Y, maptile.Zoom(c.Z))
}

// Bound returns the geographic bounds of the tile in WGS84.
func (c Coords) Bound() orb.Bound {
	return c.Tile().Bound()
}

// Origin returns the global pixel position of the tile's top-left corner.
func (c Coords) Origin(size int) (float64, float64) {
	return float64(c.X) * float64(size), float64(c.Y) * float64(size)
}

// ParseCoords parses a tile string like "z13_x4297_y2754" into Coords
func ParseCoords(s string) (Coords, error) {
	var c Coords
	_, err := fmt.Sscanf(s, "z%d_x%d_y%d", &c.Z, &c.X, &c.Y)
	if err != nil {
		return c, fmt.Errorf("invalid tile coordinate format: %s", s)
	}
	return c, nil
}

// LonLatToPixel projects a WGS84 point into global Web Mercator pixel space
// at a (possibly fractional) zoom level.
func LonLatToPixel(p orb.Point, zoom float64, size int) (float64, float64) {
	scale := float64(size) * math.Pow(2, zoom)

	x := (p.Lon() + 180.0) / 360.0 * scale

	lat := clampLat(p.Lat())
	latRad := lat * math.Pi / 180.0
	mercY := math.Log(math.Tan(math.Pi/4.0 + latRad/2.0))
	y := (1.0 - mercY/math.Pi) / 2.0 * scale

	return x, y
}

// PixelToLonLat is the inverse of LonLatToPixel.
func PixelToLonLat(x, y, zoom float64, size int) orb.Point {
	scale := float64(size) * math.Pow(2, zoom)
	lon := x/scale*360.0 - 180.0
	n := math.Pi * (1 - 2*y/scale)
	lat := 180.0 / math.Pi * math.Atan(math.Sinh(n))
	return orb.Point{lon, lat}
}

// PixelDistance returns the on-screen distance in pixels between two points
// at the given zoom.
func PixelDistance(a, b orb.Point, zoom float64, size int) float64 {
	ax, ay := LonLatToPixel(a, zoom, size)
	bx, by := LonLatToPixel(b, zoom, size)
	return math.Hypot(ax-bx, ay-by)
}

// clampLat keeps latitudes inside the Web Mercator domain.
func clampLat(lat float64) float64 {
	const maxLat = 85.05112878
	if lat > maxLat {
		return maxLat
	}
	if lat < -maxLat {
		return -maxLat
	}
	return lat
}

// TilesInBBox returns all tile coordinates within a bounding box across a zoom range.
// bbox: [minLon, minLat, maxLon, maxLat] in WGS84
// Calculates correct tile coordinates at each zoom level independently.
func TilesInBBox(bbox [4]float64, zoomMin, zoomMax int) []Coords {
	tiles := make([]Coords, 0, TileCount(bbox, zoomMin, zoomMax))
	for z := zoomMin; z <= zoomMax; z++ {
		minX, minY, maxX, maxY := tileSpan(bbox, z)
		for x := minX; x <= maxX; x++ {
			for y := minY; y <= maxY; y++ {
				tiles = append(tiles, NewCoords(uint32(z), x, y))
			}
		}
	}
	return tiles
}

// TileCount returns the number of tiles in a bounding box across a zoom range.
// This is useful for progress estimation without allocating the full tile list.
func TileCount(bbox [4]float64, zoomMin, zoomMax int) int {
	count := 0
	for z := zoomMin; z <= zoomMax; z++ {
		minX, minY, maxX, maxY := tileSpan(bbox, z)
		count += int(maxX-minX+1) * int(maxY-minY+1)
	}
	return count
}

func tileSpan(bbox [4]float64, z int) (minX, minY, maxX, maxY uint32) {
	zoom := maptile.Zoom(z)
	a := maptile.At(orb.Point{bbox[0], bbox[1]}, zoom)
	b := maptile.At(orb.Point{bbox[2], bbox[3]}, zoom)

	// Y is inverted relative to latitude
	minX, maxX = a.X, b.X
	if minX > maxX {
		minX, maxX = maxX, minX
	}
	minY, maxY = a.Y, b.Y
	if minY > maxY {
		minY, maxY = maxY, minY
	}
	return minX, minY, maxX, maxY
}
