package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"path/filepath"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/civicmaps/internal/dashboard"
	"github.com/MeKo-Tech/civicmaps/internal/dataset"
	"github.com/MeKo-Tech/civicmaps/internal/engine"
	"github.com/MeKo-Tech/civicmaps/internal/filter"
	"github.com/MeKo-Tech/civicmaps/internal/tile"
	"github.com/MeKo-Tech/civicmaps/internal/tilestore"
	"github.com/MeKo-Tech/civicmaps/internal/types"
)

var hotspot = orb.Point{-118.40, 34.05}

func testConfigs(t *testing.T) []*dashboard.Config {
	t.Helper()
	issued := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	citations := []types.Citation{
		{Point: hotspot, FineAmount: 73, IssueDate: issued, Year: 2024},
		{Point: hotspot, FineAmount: 63, IssueDate: issued, Year: 2024},
		{Point: orb.Point{-118.41, 34.06}, FineAmount: 93, Year: 2023},
	}
	housing := []types.HousingSite{{Point: hotspot, ProjectName: "Site A", CouncilDistrict: "1"}}
	square := orb.MultiPolygon{{{{-118.5, 34}, {-118.3, 34}, {-118.3, 34.2}, {-118.5, 34.2}, {-118.5, 34}}}}
	districts := []types.Boundary{{ID: "cd-boundaries/0", Name: "1", Geometry: square}}

	configs, err := dashboard.Builtin(dataset.NewCatalog(housing, citations, districts, districts))
	require.NoError(t, err)
	out := make([]*dashboard.Config, len(configs))
	for i := range configs {
		out[i] = &configs[i]
	}
	return out
}

func tileAt(p orb.Point, z uint32) tile.Coords {
	t := maptile.At(p, maptile.Zoom(z))
	return tile.NewCoords(z, t.X, t.Y)
}

func decode(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func opaquePixels(img image.Image) int {
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a > 0 {
				n++
			}
		}
	}
	return n
}

func TestRender_Heatmap(t *testing.T) {
	g := NewGenerator(testConfigs(t), Options{}, nil)

	req := Request{
		Dashboard: dashboard.IDParkingCitations,
		Layer:     dashboard.LayerParkingCitations,
		Coords:    tileAt(hotspot, 12),
	}
	data, err := g.Render(req)
	require.NoError(t, err)
	img := decode(t, data)
	assert.Equal(t, 256, img.Bounds().Dx())
	assert.Positive(t, opaquePixels(img))

	// A filter that matches nothing yields an empty tile.
	req.Filter = filter.Const(false)
	req.Variant = "sel-none"
	data, err = g.Render(req)
	require.NoError(t, err)
	assert.Zero(t, opaquePixels(decode(t, data)))
}

func TestRender_HiDPI(t *testing.T) {
	g := NewGenerator(testConfigs(t), Options{}, nil)

	data, err := g.Render(Request{
		Dashboard: dashboard.IDInterimHousing,
		Layer:     dashboard.LayerCouncilDistricts,
		Coords:    tileAt(orb.Point{-118.5, 34.1}, 11),
		Scale:     2,
	})
	require.NoError(t, err)
	img := decode(t, data)
	assert.Equal(t, 512, img.Bounds().Dx())
	assert.Positive(t, opaquePixels(img))
}

func TestRender_BelowMinZoom(t *testing.T) {
	g := NewGenerator(testConfigs(t), Options{}, nil)

	data, err := g.Render(Request{
		Dashboard: dashboard.IDParkingCitations,
		Layer:     dashboard.LayerParkingCitations,
		Coords:    tileAt(hotspot, 3),
	})
	require.NoError(t, err)
	assert.Zero(t, opaquePixels(decode(t, data)))
}

func TestRender_Errors(t *testing.T) {
	g := NewGenerator(testConfigs(t), Options{}, nil)
	c := tileAt(hotspot, 10)

	_, err := g.Render(Request{Dashboard: "nope", Layer: dashboard.LayerParkingCitations, Coords: c})
	assert.ErrorIs(t, err, dashboard.ErrUnknownDashboard)

	_, err = g.Render(Request{Dashboard: dashboard.IDParkingCitations, Layer: "nope", Coords: c})
	assert.ErrorIs(t, err, engine.ErrUnknownLayer)

	// Markers are drawn by the client.
	_, err = g.Render(Request{Dashboard: dashboard.IDInterimHousing, Layer: dashboard.LayerInterimHousing, Coords: c})
	assert.ErrorIs(t, err, ErrUnsupportedLayer)

	_, err = g.Generate(context.Background(), Request{
		Dashboard: dashboard.IDParkingCitations,
		Layer:     dashboard.LayerParkingCitations,
		Coords:    tile.NewCoords(2, 9, 0),
	}, false)
	assert.ErrorIs(t, err, ErrInvalidTile)
}

func TestGenerate_Caches(t *testing.T) {
	cache, err := tilestore.Open(filepath.Join(t.TempDir(), "tiles.db"), tilestore.Metadata{Format: "png"})
	require.NoError(t, err)
	defer cache.Close()

	g := NewGenerator(testConfigs(t), Options{Cache: cache, MaxConcurrent: 2}, nil)
	ctx := context.Background()
	req := Request{
		Dashboard: dashboard.IDParkingCitations,
		Layer:     dashboard.LayerParkingCitations,
		Coords:    tileAt(hotspot, 12),
	}

	first, err := g.Generate(ctx, req, false)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := g.Generate(ctx, req, false)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Data, second.Data)

	stored, err := cache.Get(ctx, tilestore.Key{
		Layer:   "parking-citations/parkingcitation2024",
		Variant: VariantAll,
		Coords:  req.Coords,
	})
	require.NoError(t, err)
	assert.Equal(t, first.Data, stored)

	// A different filter variant is a separate cache entry.
	req.Filter = filter.Const(false)
	req.Variant = "sel-none"
	third, err := g.Generate(ctx, req, false)
	require.NoError(t, err)
	assert.False(t, third.Cached)

	forced, err := g.Generate(ctx, req, true)
	require.NoError(t, err)
	assert.False(t, forced.Cached)

	n, err := cache.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRequestKey(t *testing.T) {
	req := Request{Dashboard: "d", Layer: "l", Coords: tile.NewCoords(1, 0, 1)}
	assert.Equal(t, tilestore.Key{Layer: "d/l", Variant: "all", Coords: req.Coords}, req.Key())

	req.Variant = "sel-1"
	req.Scale = 2
	assert.Equal(t, "sel-1@2x", req.Key().Variant)
}

func TestLayers(t *testing.T) {
	g := NewGenerator(testConfigs(t), Options{}, nil)

	ids, err := g.Layers(dashboard.IDParkingCitations)
	require.NoError(t, err)
	assert.Equal(t, []string{dashboard.LayerCouncilDistricts, dashboard.LayerParkingCitations}, ids)

	ids, err = g.Layers(dashboard.IDInterimHousing)
	require.NoError(t, err)
	assert.Equal(t, []string{dashboard.LayerCouncilDistricts}, ids)
}

func TestGenerate_Batched(t *testing.T) {
	cache, err := tilestore.Open(filepath.Join(t.TempDir(), "tiles.db"), tilestore.Metadata{})
	require.NoError(t, err)
	defer cache.Close()

	g := NewGenerator(testConfigs(t), Options{Cache: cache, Batched: true}, nil)
	ctx := context.Background()

	_, err = g.Generate(ctx, Request{
		Dashboard: dashboard.IDParkingCitations,
		Layer:     dashboard.LayerCouncilDistricts,
		Coords:    tileAt(hotspot, 10),
	}, false)
	require.NoError(t, err)

	n, err := cache.Count(ctx, "")
	require.NoError(t, err)
	assert.Zero(t, n, "tile stays queued until Flush")

	require.NoError(t, g.Flush())
	n, err = cache.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
