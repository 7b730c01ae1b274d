package dashboard

import (
	"fmt"

	"github.com/MeKo-Tech/civicmaps/internal/dataset"
	"github.com/MeKo-Tech/civicmaps/internal/engine"
	"github.com/MeKo-Tech/civicmaps/internal/filter"
	"github.com/MeKo-Tech/civicmaps/internal/heatmap"
	"github.com/MeKo-Tech/civicmaps/internal/types"
	"github.com/paulmach/orb"
)

// Dashboard ids.
const (
	IDInterimHousing   = "interim-housing"
	IDParkingCitations = "parking-citations"
)

// Source and layer ids shared by both dashboards.
const (
	SourceCouncilDistricts = "cd-boundaries-source"
	SourceCityBounds       = "city-boundaries-source"
	SourceInterimHousing   = "interim-housing-source"
	SourceParkingCitations = "parking-citation"

	LayerCouncilDistricts = "cd-boundaries"
	LayerInterimHousing   = "interimhousing"
	LayerParkingCitations = "parkingcitation2024"
)

// Modal ids.
const (
	ModalIntro        = "intro"
	ModalMapTerms     = "map-terms"
	ModalShelterTypes = "shelter-types"
)

var defaultView = View{
	Center: orb.Point{-118.41, 34},
	Zoom:   10,
	Style:  "mapbox://styles/mapbox/dark-v11",
}

// Filter categories of the interim housing dashboard.
var (
	CategoryCouncilDistrict = filter.Category{
		Key:      "cd",
		Label:    "CD #",
		Property: types.PropCouncilDistrict,
		Kind:     filter.KindString,
		Options:  filter.Options("1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12", "13", "14", "15"),
	}
	CategoryHUDClass = filter.Category{
		Key:      "projType",
		Label:    "HUD Classification",
		Property: types.PropHUDClass,
		Kind:     filter.KindString,
		Options: []filter.Option{
			{Value: "ES", Label: "Emergency Shelter"},
			{Value: "TH", Label: "Transitional Housing"},
			{Value: "SH", Label: "Safe Haven"},
		},
	}
	CategoryPopulationServed = filter.Category{
		Key:      "population_served",
		Label:    "Population Served",
		Property: types.PropPopulationServed,
		Kind:     filter.KindString,
		Options: filter.Options(
			"Family", "Re-entry", "General Population", "Winter Shelter", "Recovery", "DHS",
			"DMH", "Veteran", "Youth", "Senior", "Recuperative Care", "Women",
		),
	}
	CategoryProjectType = filter.Category{
		Key:      "project_type",
		Label:    "Project Type",
		Property: types.PropProjectType,
		Kind:     filter.KindString,
		Options: filter.Options(
			"Tiny Home Village", "Transitional Housing", "Crisis Housing", "Interim Housing",
			"Inside Safe", "A Bridge Home (ABH)", "Bridge Housing",
		),
	}
)

// CategoryYear is the only filter of the parking citation dashboard. Years
// compare numerically.
var CategoryYear = filter.Category{
	Key:      "year",
	Label:    "Year",
	Property: types.PropYear,
	Kind:     filter.KindNumber,
	Options:  filter.Options("2019", "2020", "2021", "2022", "2023", "2024"),
}

func districtSource(cat *dataset.Catalog) engine.Source {
	return engine.Source{ID: SourceCouncilDistricts, Boundaries: cat.CouncilDistricts}
}

func districtLayer(width float64) engine.Layer {
	return engine.Layer{
		ID:     LayerCouncilDistricts,
		Type:   engine.LayerLine,
		Source: SourceCouncilDistricts,
		Line:   &engine.LinePaint{Color: "#ffffff", Width: width},
	}
}

// InterimHousing builds the interim housing facility locator.
func InterimHousing(cat *dataset.Catalog) (Config, error) {
	intro, err := modalContent("intro.html")
	if err != nil {
		return Config{}, err
	}
	terms, err := modalContent("map_terms.html")
	if err != nil {
		return Config{}, err
	}
	shelters, err := modalContent("shelter_types.html")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		ID:    IDInterimHousing,
		Title: "Interim Housing",
		View:  defaultView,
		Sources: []engine.Source{
			{ID: SourceInterimHousing, Points: cat.HousingFeatures},
			districtSource(cat),
		},
		Layers: []engine.Layer{
			districtLayer(2),
			{
				ID:     LayerInterimHousing,
				Type:   engine.LayerCircle,
				Source: SourceInterimHousing,
				Circle: &engine.CirclePaint{
					Radius:      5,
					Color:       "#41ffca",
					StrokeColor: "#41ffca",
					StrokeWidth: 1,
					Opacity:     0.8,
				},
			},
		},
		Categories: []filter.Category{
			CategoryCouncilDistrict,
			CategoryHUDClass,
			CategoryPopulationServed,
			CategoryProjectType,
		},
		FilterLayer: LayerInterimHousing,
		HoverLayer:  LayerInterimHousing,
		HoverMode:   HoverAll,
		Tooltip: Tooltip{
			BoldLabels: true,
			Fields: []Field{
				{Label: "Organization", Property: types.PropOrganization},
				{Label: "Project Name", Property: types.PropProjectName},
				{Label: "HUD Classification", Property: types.PropHUDClass},
				{Label: "Population Served", Property: types.PropPopulationServed},
				{Label: "Total Beds", Property: types.PropTotalBeds},
			},
		},
		Modals: []Modal{
			{ID: ModalIntro, Title: "Welcome to the Interim Housing Map", Content: intro, OpenOnLoad: true},
			{ID: ModalMapTerms, Title: "Map Terms", Content: terms},
			{ID: ModalShelterTypes, Title: "Shelter Types", Content: shelters},
		},
		Links: []Link{
			{
				Label: "LAHSA 2024 Housing Inventory Count (HIC)",
				URL:   "https://www.lahsa.org/documents?id=8162-2024-housing-inventory-count.xlsx",
			},
		},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ParkingCitations builds the parking citation heatmap.
func ParkingCitations(cat *dataset.Catalog) (Config, error) {
	intro, err := modalContent("citations_intro.html")
	if err != nil {
		return Config{}, err
	}

	style := heatmap.CitationStyle()
	cfg := Config{
		ID:    IDParkingCitations,
		Title: "Parking Citation 2024",
		View:  defaultView,
		Sources: []engine.Source{
			{ID: SourceParkingCitations, Points: cat.CitationFeatures},
			{ID: SourceCityBounds, Boundaries: cat.CityBounds},
			districtSource(cat),
		},
		Layers: []engine.Layer{
			districtLayer(1),
			{
				ID:      LayerParkingCitations,
				Type:    engine.LayerHeatmap,
				Source:  SourceParkingCitations,
				MinZoom: style.MinZoom,
				Heatmap: &style,
			},
		},
		Categories:  []filter.Category{CategoryYear},
		FilterLayer: LayerParkingCitations,
		HoverLayer:  LayerParkingCitations,
		HoverMode:   HoverClosest,
		Tooltip: Tooltip{
			Fields: []Field{
				{Label: "Address", Property: types.PropLocation},
				{Label: "Fine Amount", Property: types.PropFineAmount, Format: formatAmount},
				{Label: "Issue Date", Property: types.PropIssueDate, Format: formatDate},
				{Label: "Body Style Description", Property: types.PropBodyStyle},
			},
		},
		Modals: []Modal{
			{ID: ModalIntro, Title: "Parking Citations", Content: intro},
		},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Builtin returns every dashboard backed by cat.
func Builtin(cat *dataset.Catalog) ([]Config, error) {
	housing, err := InterimHousing(cat)
	if err != nil {
		return nil, fmt.Errorf("interim housing: %w", err)
	}
	citations, err := ParkingCitations(cat)
	if err != nil {
		return nil, fmt.Errorf("parking citations: %w", err)
	}
	return []Config{housing, citations}, nil
}
