// Package resolver picks the feature group under the pointer when several
// stacked markers fall inside the rendering engine's hit-test radius.
package resolver

import (
	"github.com/MeKo-Tech/civicmaps/internal/types"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Event is a pointer event as reported by the rendering engine: the cursor's
// geographic location and the candidates within hit-test tolerance, in the
// engine's order.
type Event struct {
	Pointer    orb.Point
	Candidates []types.Feature
}

// Hit is the resolved tooltip target.
type Hit struct {
	Point    orb.Point       // Closest candidate coordinate
	Anchor   orb.Point       // Point shifted onto the pointer's side of the antimeridian
	Features []types.Feature // Candidates located exactly at Point, in candidate order
}

// Closest returns the candidate coordinate nearest to the pointer using
// planar distance in coordinate space. Ties keep the earliest candidate.
// It reports false for an empty candidate list.
func Closest(pointer orb.Point, candidates []types.Feature) (orb.Point, bool) {
	if len(candidates) == 0 {
		return orb.Point{}, false
	}

	best := candidates[0].Point
	if len(candidates) == 1 {
		return best, true
	}

	bestD := planar.DistanceSquared(pointer, best)
	for _, c := range candidates[1:] {
		if d := planar.DistanceSquared(pointer, c.Point); d < bestD {
			best, bestD = c.Point, d
		}
	}
	return best, true
}

// Anchor returns pt with its longitude moved by whole turns until it is
// within 180 degrees of the pointer, so a popup near the date line opens on
// the copy of the world the user is looking at.
func Anchor(pointer, pt orb.Point) orb.Point {
	lon := pt.Lon()
	for abs(pointer.Lon()-lon) > 180 {
		if pointer.Lon() > lon {
			lon += 360
		} else {
			lon -= 360
		}
	}
	return orb.Point{lon, pt.Lat()}
}

// Coincident returns the candidates whose coordinates equal pt exactly.
func Coincident(candidates []types.Feature, pt orb.Point) []types.Feature {
	var out []types.Feature
	for _, c := range candidates {
		if c.Point.Equal(pt) {
			out = append(out, c)
		}
	}
	return out
}

// Resolve finds the closest coordinate, its display anchor and every
// candidate stacked on it. It reports false when there are no candidates.
func Resolve(ev Event) (Hit, bool) {
	pt, ok := Closest(ev.Pointer, ev.Candidates)
	if !ok {
		return Hit{}, false
	}
	return Hit{
		Point:    pt,
		Anchor:   Anchor(ev.Pointer, pt),
		Features: Coincident(ev.Candidates, pt),
	}, true
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
