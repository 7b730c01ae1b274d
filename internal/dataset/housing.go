package dataset

import (
	"fmt"

	"github.com/MeKo-Tech/civicmaps/internal/types"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// DecodeHousing validates an interim housing FeatureCollection.
func DecodeHousing(data []byte, source string) ([]types.HousingSite, LoadReport, error) {
	report := LoadReport{Dataset: NameInterimHousing, Source: source}
	var sites []types.HousingSite

	err := decodeCollection(data, &report, func(_ int, f *geojson.Feature) error {
		site, err := housingFromFeature(f)
		if err != nil {
			return err
		}
		sites = append(sites, site)
		return nil
	})
	if err != nil {
		return nil, report, err
	}
	return sites, report, nil
}

func housingFromFeature(f *geojson.Feature) (types.HousingSite, error) {
	pt, ok := f.Geometry.(orb.Point)
	if !ok {
		return types.HousingSite{}, fmt.Errorf("%w: %s", errNotPoint, f.Geometry.GeoJSONType())
	}

	beds, _, err := propNumber(f.Properties, types.PropTotalBeds)
	if err != nil {
		return types.HousingSite{}, err
	}

	return types.HousingSite{
		Point:            pt,
		Organization:     propString(f.Properties, types.PropOrganization),
		ProjectName:      propString(f.Properties, types.PropProjectName),
		HUDClass:         propString(f.Properties, types.PropHUDClass),
		PopulationServed: propString(f.Properties, types.PropPopulationServed),
		ProjectType:      propString(f.Properties, types.PropProjectType),
		CouncilDistrict:  normalizeDistrict(propString(f.Properties, types.PropCouncilDistrict)),
		TotalBeds:        int(beds),
	}, nil
}
