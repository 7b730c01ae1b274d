package heatmap

import (
	"encoding/json"
	"image"
	"image/color"
	"testing"

	"github.com/MeKo-Tech/civicmaps/internal/filter"
	"github.com/MeKo-Tech/civicmaps/internal/tile"
	"github.com/MeKo-Tech/civicmaps/internal/types"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStopsAt(t *testing.T) {
	s := CitationStyle().Radius

	assert.Equal(t, 3.0, s.At(-1), "clamped below first stop")
	assert.Equal(t, 3.0, s.At(0))
	assert.InDelta(t, 5.5, s.At(5), 1e-9, "halfway between 3@0 and 8@10")
	assert.Equal(t, 8.0, s.At(10))
	assert.Equal(t, 100.0, s.At(22))
	assert.Equal(t, 100.0, s.At(24), "clamped above last stop")

	assert.Equal(t, 0.0, Stops(nil).At(3))
}

func TestStopsMarshalJSON(t *testing.T) {
	data, err := json.Marshal(Stops{{0, 0.6}, {22, 1}})
	require.NoError(t, err)
	assert.JSONEq(t, `["interpolate",["linear"],["zoom"],0,0.6,22,1]`, string(data))
}

func TestRampAt(t *testing.T) {
	r := CitationStyle().Color

	assert.Equal(t, color.NRGBA{B: 255}, r.At(0), "zero density is transparent")
	assert.Equal(t, color.NRGBA{R: 0, G: 255, B: 255, A: 255}, r.At(0.3))
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, r.At(1))
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, r.At(3))

	mid := r.At(0.05)
	assert.InDelta(t, 128, int(mid.A), 1, "alpha ramps between the first two stops")
}

func TestRampMarshalJSON(t *testing.T) {
	data, err := json.Marshal(CitationStyle().Color)
	require.NoError(t, err)

	var expr []any
	require.NoError(t, json.Unmarshal(data, &expr))
	assert.Equal(t, "interpolate", expr[0])
	assert.Equal(t, []any{"heatmap-density"}, expr[2])
	assert.Equal(t, "royalblue", expr[6])
}

// centerPoint returns the lon/lat of the centre pixel of c.
func centerPoint(c tile.Coords) orb.Point {
	ox, oy := c.Origin(tile.DefaultSize)
	return tile.PixelToLonLat(ox+128, oy+128, float64(c.Z), tile.DefaultSize)
}

func TestRenderSinglePoint(t *testing.T) {
	c := tile.NewCoords(12, 701, 1635)
	features := []types.Feature{
		types.NewFeature("a", centerPoint(c), map[string]any{"year": 2024.0}),
	}

	img := NewRenderer(CitationStyle()).Render(features, nil, c, 1)
	require.Equal(t, image.Rect(0, 0, 256, 256), img.Bounds())

	assert.NotZero(t, img.NRGBAAt(128, 128).A, "centre should be painted")
	assert.Zero(t, img.NRGBAAt(0, 0).A, "far corner should stay transparent")
}

func TestRenderHiDPI(t *testing.T) {
	c := tile.NewCoords(12, 701, 1635)
	features := []types.Feature{types.NewFeature("a", centerPoint(c), nil)}

	img := NewRenderer(CitationStyle()).Render(features, nil, c, 2)
	require.Equal(t, image.Rect(0, 0, 512, 512), img.Bounds())
	assert.NotZero(t, img.NRGBAAt(256, 256).A)
}

func TestRenderHonoursFilter(t *testing.T) {
	c := tile.NewCoords(12, 701, 1635)
	features := []types.Feature{
		types.NewFeature("a", centerPoint(c), map[string]any{"year": 2024.0}),
	}

	r := NewRenderer(CitationStyle())

	img := r.Render(features, filter.In{Property: "year", Values: []any{2019.0}}, c, 1)
	assert.Zero(t, img.NRGBAAt(128, 128).A)

	img = r.Render(features, filter.Const(false), c, 1)
	assert.Zero(t, img.NRGBAAt(128, 128).A)
}

func TestRenderBelowMinZoom(t *testing.T) {
	c := tile.NewCoords(4, 2, 6)
	features := []types.Feature{types.NewFeature("a", centerPoint(c), nil)}

	img := NewRenderer(CitationStyle()).Render(features, nil, c, 1)
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0 {
			t.Fatalf("pixel %d painted below min zoom", i/4)
		}
	}
}

func TestRenderDenserIsHotter(t *testing.T) {
	c := tile.NewCoords(13, 1402, 3271)
	pt := centerPoint(c)

	r := NewRenderer(CitationStyle())
	one := r.Render([]types.Feature{types.NewFeature("a", pt, nil)}, nil, c, 1)

	many := make([]types.Feature, 8)
	for i := range many {
		many[i] = types.NewFeature("p", pt, nil)
	}
	hot := r.Render(many, nil, c, 1)

	// More citations push the ramp towards red.
	assert.Greater(t, hot.NRGBAAt(128, 128).R, one.NRGBAAt(128, 128).R)
}

func TestRequiredPaddingPx(t *testing.T) {
	r := NewRenderer(CitationStyle())
	assert.Equal(t, 10, r.RequiredPaddingPx(10, 1))
	assert.Equal(t, 18, r.RequiredPaddingPx(10, 2))
}
