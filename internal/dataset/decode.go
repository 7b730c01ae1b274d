package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
)

var (
	errNotPoint   = errors.New("geometry is not a point")
	errNotPolygon = errors.New("geometry is not a polygon")
	errNoGeometry = errors.New("missing geometry")
)

// rawCollection keeps features undecoded so one bad feature does not fail
// the whole file.
type rawCollection struct {
	Type     string            `json:"type"`
	Features []json.RawMessage `json:"features"`
}

// decodeCollection decodes a FeatureCollection feature by feature. visit is
// called for every feature that orb can decode; decode failures are reported
// on the LoadReport instead.
func decodeCollection(data []byte, report *LoadReport, visit func(i int, f *geojson.Feature) error) error {
	var raw rawCollection
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse feature collection: %w", err)
	}
	if raw.Type != "" && raw.Type != "FeatureCollection" {
		return fmt.Errorf("unexpected GeoJSON type %q", raw.Type)
	}

	for i, msg := range raw.Features {
		report.Total++

		f, err := geojson.UnmarshalFeature(msg)
		if err != nil {
			report.skip(i, fmt.Errorf("decode: %w", err))
			continue
		}
		if f.Geometry == nil {
			report.skip(i, errNoGeometry)
			continue
		}
		if err := visit(i, f); err != nil {
			report.skip(i, err)
			continue
		}
		report.Loaded++
	}
	return nil
}

func propString(props geojson.Properties, key string) string {
	switch v := props[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// propNumber returns the numeric value of key. Numeric strings are accepted;
// a missing or empty value yields ok=false without an error.
func propNumber(props geojson.Properties, key string) (float64, bool, error) {
	switch v := props[key].(type) {
	case nil:
		return 0, false, nil
	case float64:
		return v, true, nil
	case string:
		s := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(v), "$"))
		if s == "" {
			return 0, false, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false, fmt.Errorf("property %q: %q is not a number", key, v)
		}
		return f, true, nil
	default:
		return 0, false, fmt.Errorf("property %q: unsupported type %T", key, v)
	}
}

// normalizeDistrict turns "CD 4", "04", 4 or 4.0 into "4".
func normalizeDistrict(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && strings.EqualFold(s[:2], "CD") {
		s = strings.TrimSpace(s[2:])
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) {
		return strconv.Itoa(int(f))
	}
	return s
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}
