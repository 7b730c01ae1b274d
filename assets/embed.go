// Package assets embeds the sample datasets and the modal texts shipped with
// the binary. Paths configured under data.* override the embedded datasets.
package assets

import "embed"

// FS holds data/*.geojson and content/*.html.
//
//go:embed data/*.geojson content/*.html
var FS embed.FS

// Embedded dataset paths inside FS.
const (
	InterimHousing   = "data/interim_housing.geojson"
	ParkingCitations = "data/parking_citations.geojson"
	CouncilDistricts = "data/council_districts.geojson"
	CityBounds       = "data/city_bounds.geojson"
)
