package geojson

import (
	"encoding/json"
	"fmt"

	"github.com/MeKo-Tech/civicmaps/internal/filter"
	"github.com/MeKo-Tech/civicmaps/internal/types"
	"github.com/paulmach/orb/geojson"
)

// idProperty carries the stable feature id through to the client, so hover
// requests can refer back to loaded features.
const idProperty = "id"

// ToGeoJSON converts point features to a GeoJSON FeatureCollection.
// A nil predicate keeps every feature.
func ToGeoJSON(features []types.Feature, pred filter.Expr) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, f := range features {
		if pred != nil && !pred.Eval(f.Properties) {
			continue
		}

		gf := geojson.NewFeature(f.Point)
		gf.ID = f.ID
		for key, value := range f.Properties {
			gf.Properties[key] = value
		}
		gf.Properties[idProperty] = f.ID

		fc.Append(gf)
	}

	return fc
}

// BoundariesToGeoJSON converts boundary polygons to a FeatureCollection.
func BoundariesToGeoJSON(boundaries []types.Boundary) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, b := range boundaries {
		if len(b.Geometry) == 0 {
			continue
		}

		// Single polygons go out as Polygon, the way they were read
		var gf *geojson.Feature
		if len(b.Geometry) == 1 {
			gf = geojson.NewFeature(b.Geometry[0])
		} else {
			gf = geojson.NewFeature(b.Geometry)
		}
		gf.ID = b.ID
		for key, value := range b.Properties {
			gf.Properties[key] = value
		}
		gf.Properties[idProperty] = b.ID
		if b.Name != "" {
			gf.Properties["name"] = b.Name
		}

		fc.Append(gf)
	}

	return fc
}

// Marshal encodes a FeatureCollection, indented when requested.
func Marshal(fc *geojson.FeatureCollection, indent bool) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if indent {
		data, err = json.MarshalIndent(fc, "", "  ")
	} else {
		data, err = json.Marshal(fc)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GeoJSON: %w", err)
	}
	return data, nil
}

// ToGeoJSONBytes converts features to compact GeoJSON bytes.
func ToGeoJSONBytes(features []types.Feature, pred filter.Expr) ([]byte, error) {
	return Marshal(ToGeoJSON(features, pred), false)
}
