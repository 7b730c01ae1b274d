package dataset

import (
	"fmt"
	"strconv"

	"github.com/MeKo-Tech/civicmaps/internal/types"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// nameKeys are tried in order to label a boundary.
var nameKeys = []string{"name", "NAME", "district_name", "DISTRICT", "district", types.PropCouncilDistrict}

// DecodeBoundaries validates a FeatureCollection of polygons. Polygons are
// promoted to single-member MultiPolygons.
func DecodeBoundaries(data []byte, dataset, source string) ([]types.Boundary, LoadReport, error) {
	report := LoadReport{Dataset: dataset, Source: source}
	var out []types.Boundary

	err := decodeCollection(data, &report, func(i int, f *geojson.Feature) error {
		var mp orb.MultiPolygon
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			mp = orb.MultiPolygon{g}
		case orb.MultiPolygon:
			mp = g
		default:
			return fmt.Errorf("%w: %s", errNotPolygon, f.Geometry.GeoJSONType())
		}

		props := make(map[string]any, len(f.Properties))
		for k, v := range f.Properties {
			props[k] = v
		}

		b := types.Boundary{
			ID:         dataset + "/" + strconv.Itoa(i),
			Geometry:   mp,
			Properties: props,
		}
		for _, key := range nameKeys {
			if s := propString(f.Properties, key); s != "" {
				b.Name = s
				break
			}
		}
		out = append(out, b)
		return nil
	})
	if err != nil {
		return nil, report, err
	}
	return out, report, nil
}
