// Package dataset loads and validates the static GeoJSON datasets behind the
// dashboards.
package dataset

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"

	"github.com/MeKo-Tech/civicmaps/assets"
	"github.com/MeKo-Tech/civicmaps/internal/types"
)

// Dataset names, also used as source ids.
const (
	NameInterimHousing   = "interimhousing"
	NameParkingCitations = "parkingcitation2024"
	NameCouncilDistricts = "cd-boundaries"
	NameCityBounds       = "city-bounds"
)

// Paths locates the dataset files. An empty path selects the embedded sample.
type Paths struct {
	InterimHousing   string
	ParkingCitations string
	CouncilDistricts string
	CityBounds       string
}

// Catalog holds every dataset, loaded once at startup.
type Catalog struct {
	Housing          []types.HousingSite
	Citations        []types.Citation
	CouncilDistricts []types.Boundary
	CityBounds       []types.Boundary

	HousingFeatures  []types.Feature
	CitationFeatures []types.Feature

	Reports []LoadReport
}

// NewCatalog assembles a catalog from already validated records.
func NewCatalog(housing []types.HousingSite, citations []types.Citation, districts, city []types.Boundary) *Catalog {
	c := &Catalog{
		Housing:          housing,
		Citations:        citations,
		CouncilDistricts: districts,
		CityBounds:       city,
	}
	c.buildFeatures()
	return c
}

// Load reads all datasets. Individual invalid features are skipped and
// counted; an unreadable or unparsable file is an error.
func Load(paths Paths, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Catalog{}

	data, src, err := read(paths.InterimHousing, assets.InterimHousing)
	if err != nil {
		return nil, err
	}
	housing, rep, err := DecodeHousing(data, src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src, err)
	}
	c.Housing = housing
	c.addReport(rep, logger)

	data, src, err = read(paths.ParkingCitations, assets.ParkingCitations)
	if err != nil {
		return nil, err
	}
	citations, rep, err := DecodeCitations(data, src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src, err)
	}
	c.Citations = citations
	c.addReport(rep, logger)

	data, src, err = read(paths.CouncilDistricts, assets.CouncilDistricts)
	if err != nil {
		return nil, err
	}
	districts, rep, err := DecodeBoundaries(data, NameCouncilDistricts, src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src, err)
	}
	c.CouncilDistricts = districts
	c.addReport(rep, logger)

	data, src, err = read(paths.CityBounds, assets.CityBounds)
	if err != nil {
		return nil, err
	}
	city, rep, err := DecodeBoundaries(data, NameCityBounds, src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src, err)
	}
	c.CityBounds = city
	c.addReport(rep, logger)

	c.buildFeatures()
	return c, nil
}

func (c *Catalog) addReport(r LoadReport, logger *slog.Logger) {
	r.Log(logger)
	c.Reports = append(c.Reports, r)
}

func (c *Catalog) buildFeatures() {
	c.HousingFeatures = make([]types.Feature, len(c.Housing))
	for i, h := range c.Housing {
		c.HousingFeatures[i] = h.Feature(NameInterimHousing + "/" + strconv.Itoa(i))
	}
	c.CitationFeatures = make([]types.Feature, len(c.Citations))
	for i, ct := range c.Citations {
		c.CitationFeatures[i] = ct.Feature(NameParkingCitations + "/" + strconv.Itoa(i))
	}
}

// Points returns the point features of a named dataset.
func (c *Catalog) Points(name string) ([]types.Feature, bool) {
	switch name {
	case NameInterimHousing:
		return c.HousingFeatures, true
	case NameParkingCitations:
		return c.CitationFeatures, true
	}
	return nil, false
}

// Boundaries returns the polygon features of a named dataset.
func (c *Catalog) Boundaries(name string) ([]types.Boundary, bool) {
	switch name {
	case NameCouncilDistricts:
		return c.CouncilDistricts, true
	case NameCityBounds:
		return c.CityBounds, true
	}
	return nil, false
}

// read returns the file at path, or the embedded fallback when path is empty.
func read(path, embedded string) ([]byte, string, error) {
	if path == "" {
		data, err := fs.ReadFile(assets.FS, embedded)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read embedded %s: %w", embedded, err)
		}
		return data, "embedded:" + embedded, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read dataset %s: %w", path, err)
	}
	return data, path, nil
}
