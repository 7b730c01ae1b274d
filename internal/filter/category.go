// Package filter holds the dashboard filter categories, the per-category
// checkbox selections and the membership expressions handed to the map.
package filter

import (
	"fmt"
	"strconv"
)

// Kind controls how option values are compared against feature properties.
type Kind int

const (
	// KindString compares values as strings.
	KindString Kind = iota
	// KindNumber parses option values as numbers before comparing.
	KindNumber
)

// String returns the kind name used in JSON payloads.
func (k Kind) String() string {
	if k == KindNumber {
		return "number"
	}
	return "string"
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "string", "":
		*k = KindString
	case "number":
		*k = KindNumber
	default:
		return fmt.Errorf("unknown category kind %q", text)
	}
	return nil
}

// Option is one checkbox of a filter category.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Category is a filter tab: a feature property and its enumerated options.
type Category struct {
	Key      string   `json:"key"`      // Tab identifier ("cd", "projType", "year")
	Label    string   `json:"label"`    // Tab title
	Property string   `json:"property"` // Feature property the filter matches on
	Kind     Kind     `json:"kind"`
	Options  []Option `json:"options"`
}

// Values returns every option value in display order.
func (c Category) Values() []string {
	out := make([]string, len(c.Options))
	for i, o := range c.Options {
		out[i] = o.Value
	}
	return out
}

// Has reports whether v is one of the category's options.
func (c Category) Has(v string) bool {
	for _, o := range c.Options {
		if o.Value == v {
			return true
		}
	}
	return false
}

// literals converts option values into the typed literals used in
// expressions. Values that fail to parse as numbers are skipped.
func (c Category) literals(values []string) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		if c.Kind == KindNumber {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				continue
			}
			out = append(out, f)
			continue
		}
		out = append(out, v)
	}
	return out
}

// Options builds an option list whose labels equal their values.
func Options(values ...string) []Option {
	out := make([]Option, len(values))
	for i, v := range values {
		out[i] = Option{Value: v, Label: v}
	}
	return out
}
