package types

import (
	"testing"

	"github.com/paulmach/orb"
)

func TestBoundingBoxExpandByFraction(t *testing.T) {
	b := BoundingBox{MinLon: 10, MinLat: 20, MaxLon: 30, MaxLat: 40}

	expanded := b.ExpandByFraction(0.1)
	// width=20, height=20 => delta=2 on each side
	if expanded.MinLon != 8 || expanded.MaxLon != 32 || expanded.MinLat != 18 || expanded.MaxLat != 42 {
		t.Fatalf("unexpected expanded bbox: %+v", expanded)
	}

	unchanged := b.ExpandByFraction(0)
	if unchanged != b {
		t.Fatalf("expected unchanged bbox, got %+v", unchanged)
	}
}

func TestBoundingBoxContains(t *testing.T) {
	b := BoundingBox{MinLon: -118.7, MinLat: 33.7, MaxLon: -118.1, MaxLat: 34.4}

	tests := []struct {
		name string
		p    orb.Point
		want bool
	}{
		{"inside", orb.Point{-118.41, 34.0}, true},
		{"on edge", orb.Point{-118.7, 34.0}, true},
		{"west", orb.Point{-119.0, 34.0}, false},
		{"north", orb.Point{-118.41, 34.5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.Contains(tt.p); got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", tt.p, got, tt.want)
			}
		})
	}
}

func TestBoundingBoxRoundTrip(t *testing.T) {
	b := BoundingBox{MinLon: -118.7, MinLat: 33.7, MaxLon: -118.1, MaxLat: 34.4}
	if got := FromBound(b.Bound()); got != b {
		t.Fatalf("round trip mismatch: %+v != %+v", got, b)
	}
	c := b.Center()
	if c.Lon() != -118.4 || c.Lat() != 34.05 {
		t.Errorf("unexpected center %v", c)
	}
}
