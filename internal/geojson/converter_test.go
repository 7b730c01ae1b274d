package geojson

import (
	"encoding/json"
	"testing"

	"github.com/MeKo-Tech/civicmaps/internal/filter"
	"github.com/MeKo-Tech/civicmaps/internal/types"
	"github.com/paulmach/orb"
)

func sampleFeatures() []types.Feature {
	return []types.Feature{
		types.NewFeature("interimhousing/0", orb.Point{-118.25, 34.05}, map[string]any{
			"CD":           "14",
			"Project Name": "Site A",
		}),
		types.NewFeature("interimhousing/1", orb.Point{-118.40, 34.02}, map[string]any{
			"CD":           "5",
			"Project Name": "Site B",
		}),
	}
}

func TestToGeoJSON(t *testing.T) {
	fc := ToGeoJSON(sampleFeatures(), nil)

	if len(fc.Features) != 2 {
		t.Fatalf("Expected 2 GeoJSON features, got %d", len(fc.Features))
	}

	first := fc.Features[0]
	if first.Geometry.GeoJSONType() != "Point" {
		t.Errorf("Expected Point, got %s", first.Geometry.GeoJSONType())
	}
	if first.Properties["CD"] != "14" {
		t.Errorf("Expected CD=14 property")
	}
	if first.Properties["id"] != "interimhousing/0" {
		t.Errorf("Expected id=interimhousing/0, got %v", first.Properties["id"])
	}
	if first.ID != "interimhousing/0" {
		t.Errorf("Expected feature id to be set, got %v", first.ID)
	}
}

func TestToGeoJSONAppliesFilter(t *testing.T) {
	pred := filter.In{Property: "CD", Values: []any{"5"}}

	fc := ToGeoJSON(sampleFeatures(), pred)
	if len(fc.Features) != 1 {
		t.Fatalf("Expected 1 feature after filtering, got %d", len(fc.Features))
	}
	if fc.Features[0].Properties["Project Name"] != "Site B" {
		t.Errorf("Expected Site B, got %v", fc.Features[0].Properties["Project Name"])
	}

	if n := len(ToGeoJSON(sampleFeatures(), filter.Const(false)).Features); n != 0 {
		t.Errorf("Const(false) should drop every feature, kept %d", n)
	}
}

func TestToGeoJSONDoesNotMutateFeatures(t *testing.T) {
	features := sampleFeatures()
	_ = ToGeoJSON(features, nil)

	if _, ok := features[0].Properties["id"]; ok {
		t.Error("ToGeoJSON must not write into the source feature properties")
	}
}

func TestBoundariesToGeoJSON(t *testing.T) {
	square := orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}
	boundaries := []types.Boundary{
		{ID: "cd-boundaries/0", Name: "Council District 1", Geometry: orb.MultiPolygon{square}},
		{ID: "cd-boundaries/1", Geometry: orb.MultiPolygon{square, square}},
		{ID: "empty"},
	}

	fc := BoundariesToGeoJSON(boundaries)
	if len(fc.Features) != 2 {
		t.Fatalf("Expected 2 features, got %d", len(fc.Features))
	}
	if got := fc.Features[0].Geometry.GeoJSONType(); got != "Polygon" {
		t.Errorf("Expected Polygon, got %s", got)
	}
	if got := fc.Features[1].Geometry.GeoJSONType(); got != "MultiPolygon" {
		t.Errorf("Expected MultiPolygon, got %s", got)
	}
	if fc.Features[0].Properties["name"] != "Council District 1" {
		t.Errorf("Expected name property")
	}
}

func TestToGeoJSONBytes(t *testing.T) {
	data, err := ToGeoJSONBytes(sampleFeatures(), nil)
	if err != nil {
		t.Fatalf("ToGeoJSONBytes failed: %v", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if result["type"] != "FeatureCollection" {
		t.Errorf("Expected FeatureCollection type")
	}
	if features, ok := result["features"].([]interface{}); !ok || len(features) != 2 {
		t.Errorf("Expected 2 encoded features, got %v", result["features"])
	}
}
