package dataset

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/civicmaps/internal/types"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var errNoYear = errors.New("neither year nor issue_date present")

// DecodeCitations validates a parking citation FeatureCollection.
// The year is taken from the "year" property and derived from issue_date
// when absent; a citation with neither cannot be filtered and is skipped.
func DecodeCitations(data []byte, source string) ([]types.Citation, LoadReport, error) {
	report := LoadReport{Dataset: NameParkingCitations, Source: source}
	var citations []types.Citation

	err := decodeCollection(data, &report, func(_ int, f *geojson.Feature) error {
		c, err := citationFromFeature(f)
		if err != nil {
			return err
		}
		citations = append(citations, c)
		return nil
	})
	if err != nil {
		return nil, report, err
	}
	return citations, report, nil
}

func citationFromFeature(f *geojson.Feature) (types.Citation, error) {
	pt, ok := f.Geometry.(orb.Point)
	if !ok {
		return types.Citation{}, fmt.Errorf("%w: %s", errNotPoint, f.Geometry.GeoJSONType())
	}

	c := types.Citation{
		Point:                pt,
		Location:             propString(f.Properties, types.PropLocation),
		ViolationCode:        propString(f.Properties, types.PropViolationCode),
		ViolationDescription: propString(f.Properties, types.PropViolationDescription),
		Agency:               propString(f.Properties, types.PropAgency),
		BodyStyle:            propString(f.Properties, types.PropBodyStyle),
	}

	fine, _, err := propNumber(f.Properties, types.PropFineAmount)
	if err != nil {
		return types.Citation{}, err
	}
	c.FineAmount = fine

	if s := propString(f.Properties, types.PropIssueDate); s != "" {
		t, err := parseDate(s)
		if err != nil {
			return types.Citation{}, err
		}
		c.IssueDate = t
	}

	year, ok, err := propNumber(f.Properties, types.PropYear)
	if err != nil {
		return types.Citation{}, err
	}
	switch {
	case ok:
		c.Year = int(year)
	case !c.IssueDate.IsZero():
		c.Year = c.IssueDate.Year()
	default:
		return types.Citation{}, errNoYear
	}
	return c, nil
}
