package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/MeKo-Tech/civicmaps/internal/dashboard"
	"github.com/MeKo-Tech/civicmaps/internal/dataset"
	"github.com/MeKo-Tech/civicmaps/internal/filter"
)

func datasetPaths() dataset.Paths {
	return dataset.Paths{
		InterimHousing:   viper.GetString("data.interim_housing"),
		ParkingCitations: viper.GetString("data.parking_citations"),
		CouncilDistricts: viper.GetString("data.council_districts"),
		CityBounds:       viper.GetString("data.city_bounds"),
	}
}

// loadDashboards loads the datasets and builds the built-in dashboards.
func loadDashboards() (*dataset.Catalog, []dashboard.Config, error) {
	cat, err := dataset.Load(datasetPaths(), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load datasets: %w", err)
	}
	configs, err := dashboard.Builtin(cat)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build dashboards: %w", err)
	}
	return cat, configs, nil
}

func findDashboard(configs []dashboard.Config, id string) (*dashboard.Config, error) {
	for i := range configs {
		if configs[i].ID == id {
			return &configs[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", dashboard.ErrUnknownDashboard, id)
}

// parseAction parses the command-line form of a filter action:
//
//	select_all:cd
//	unselect_all:year
//	set:cd=1,4,15
//	set:projType=       (empty selection)
func parseAction(s string) (filter.Action, error) {
	kind, rest, ok := strings.Cut(s, ":")
	if !ok || rest == "" {
		return filter.Action{}, fmt.Errorf("invalid action %q: expected kind:category", s)
	}

	switch filter.ActionKind(kind) {
	case filter.ActionSelectAll:
		return filter.SelectAll(rest), nil
	case filter.ActionUnselectAll:
		return filter.UnselectAll(rest), nil
	case filter.ActionSet:
		category, values, ok := strings.Cut(rest, "=")
		if !ok {
			return filter.Action{}, fmt.Errorf("invalid action %q: expected set:category=v1,v2", s)
		}
		var vals []string
		for _, v := range strings.Split(values, ",") {
			if v = strings.TrimSpace(v); v != "" {
				vals = append(vals, v)
			}
		}
		return filter.Set(category, vals...), nil
	}
	return filter.Action{}, fmt.Errorf("%w: %q", filter.ErrUnknownAction, kind)
}
