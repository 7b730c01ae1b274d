package resolver

import (
	"math"
	"testing"

	"github.com/MeKo-Tech/civicmaps/internal/types"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feat(id string, lon, lat float64, props map[string]any) types.Feature {
	return types.NewFeature(id, orb.Point{lon, lat}, props)
}

func TestClosest(t *testing.T) {
	tests := []struct {
		name       string
		pointer    orb.Point
		candidates []types.Feature
		want       orb.Point
	}{
		{
			name:       "single candidate",
			pointer:    orb.Point{0, 0},
			candidates: []types.Feature{feat("a", 10, 10, nil)},
			want:       orb.Point{10, 10},
		},
		{
			name:    "strictly closest wins",
			pointer: orb.Point{-118.401, 34.051},
			candidates: []types.Feature{
				feat("a", -118.41, 34.06, nil),
				feat("b", -118.40, 34.05, nil),
				feat("c", -118.30, 34.00, nil),
			},
			want: orb.Point{-118.40, 34.05},
		},
		{
			name:    "tie keeps earliest",
			pointer: orb.Point{0, 0},
			candidates: []types.Feature{
				feat("a", 1, 0, nil),
				feat("b", -1, 0, nil),
				feat("c", 0, 1, nil),
			},
			want: orb.Point{1, 0},
		},
		{
			name:    "distance is not geodesic",
			pointer: orb.Point{179.9, 0},
			candidates: []types.Feature{
				feat("a", -179.9, 0, nil),
				feat("b", 170, 0, nil),
			},
			want: orb.Point{170, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Closest(tt.pointer, tt.candidates)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClosestEmpty(t *testing.T) {
	_, ok := Closest(orb.Point{1, 2}, nil)
	assert.False(t, ok)

	_, ok = Resolve(Event{Pointer: orb.Point{1, 2}})
	assert.False(t, ok)
}

func TestClosestReturnsCandidatePoint(t *testing.T) {
	pointer := orb.Point{-118.35, 34.02}
	var candidates []types.Feature
	for i := 0; i < 25; i++ {
		lon := -118.5 + float64(i%5)*0.05
		lat := 33.9 + float64(i/5)*0.05
		candidates = append(candidates, feat("f", lon, lat, nil))
	}

	got, ok := Closest(pointer, candidates)
	require.True(t, ok)

	found := false
	minD := math.Inf(1)
	for _, c := range candidates {
		if c.Point == got {
			found = true
		}
		minD = math.Min(minD, math.Hypot(c.Point.Lon()-pointer.Lon(), c.Point.Lat()-pointer.Lat()))
	}
	assert.True(t, found, "resolved point must come from the candidate list")
	assert.InDelta(t, minD, math.Hypot(got.Lon()-pointer.Lon(), got.Lat()-pointer.Lat()), 1e-12)
}

func TestAnchor(t *testing.T) {
	tests := []struct {
		name    string
		pointer orb.Point
		pt      orb.Point
		wantLon float64
	}{
		{"no wrap", orb.Point{-118.4, 34}, orb.Point{-118.41, 34}, -118.41},
		{"east of date line", orb.Point{179.9, 0}, orb.Point{-179.9, 0}, 180.1},
		{"west of date line", orb.Point{-179.9, 0}, orb.Point{179.9, 0}, -180.1},
		{"several turns", orb.Point{10, 0}, orb.Point{730, 0}, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Anchor(tt.pointer, tt.pt)
			assert.InDelta(t, tt.wantLon, got.Lon(), 1e-9)
			assert.Equal(t, tt.pt.Lat(), got.Lat())
		})
	}
}

func TestResolveAggregatesCoincidentCandidates(t *testing.T) {
	candidates := []types.Feature{
		feat("first", -118.40, 34.05, map[string]any{"location": "A"}),
		feat("second", -118.40, 34.05, map[string]any{"location": "B"}),
		feat("third", -118.41, 34.06, map[string]any{"location": "C"}),
	}
	before := append([]types.Feature(nil), candidates...)

	hit, ok := Resolve(Event{Pointer: orb.Point{-118.401, 34.051}, Candidates: candidates})
	require.True(t, ok)

	assert.Equal(t, orb.Point{-118.40, 34.05}, hit.Point)
	assert.Equal(t, hit.Point, hit.Anchor)
	require.Len(t, hit.Features, 2)
	assert.Equal(t, "first", hit.Features[0].ID)
	assert.Equal(t, "second", hit.Features[1].ID)
	assert.Equal(t, before, candidates, "inputs must not be mutated")
}

func TestCoincidentExactEquality(t *testing.T) {
	candidates := []types.Feature{
		feat("a", 1, 1, nil),
		feat("b", 1.0000001, 1, nil),
	}
	got := Coincident(candidates, orb.Point{1, 1})
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}
