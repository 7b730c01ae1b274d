// Package dashboard wires datasets, filter categories, map layers and UI
// state into the interactive dashboards, and manages their sessions.
package dashboard

import (
	"errors"
	"fmt"
	"html/template"
	"io/fs"

	"github.com/MeKo-Tech/civicmaps/assets"
	"github.com/MeKo-Tech/civicmaps/internal/engine"
	"github.com/MeKo-Tech/civicmaps/internal/filter"
	"github.com/paulmach/orb"
)

var (
	ErrUnknownDashboard = errors.New("dashboard: unknown dashboard")
	ErrUnknownSession   = errors.New("dashboard: unknown session")
	ErrUnknownModal     = errors.New("dashboard: unknown modal")
	ErrUnknownTab       = errors.New("dashboard: unknown filter tab")
)

// HoverMode selects how hovered candidates become a tooltip.
type HoverMode string

const (
	// HoverClosest anchors at the candidate closest to the pointer and
	// lists every candidate sharing its coordinates.
	HoverClosest HoverMode = "closest"
	// HoverAll lists every candidate, anchored at the first one.
	HoverAll HoverMode = "all"
)

// View is the initial camera of a dashboard.
type View struct {
	Center orb.Point `json:"center"`
	Zoom   float64   `json:"zoom"`
	Style  string    `json:"style"`
}

// Modal is an informational dialog.
type Modal struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Content    template.HTML `json:"content"`
	OpenOnLoad bool          `json:"openOnLoad,omitempty"`
}

// Link is an external resource button.
type Link struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Config describes one dashboard. Configs are immutable once built.
type Config struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	View  View   `json:"view"`

	Sources []engine.Source `json:"-"`
	Layers  []engine.Layer  `json:"layers"`

	Categories  []filter.Category `json:"categories"`
	FilterLayer string            `json:"filterLayer"`
	HoverLayer  string            `json:"hoverLayer"`
	HoverMode   HoverMode         `json:"hoverMode"`
	Tooltip     Tooltip           `json:"-"`

	Modals []Modal `json:"modals,omitempty"`
	Links  []Link  `json:"links,omitempty"`
}

// SourceIDs lists the ids of the config's sources.
func (c Config) SourceIDs() []string {
	out := make([]string, len(c.Sources))
	for i, s := range c.Sources {
		out[i] = s.ID
	}
	return out
}

// Source returns the source with the given id.
func (c Config) Source(id string) (engine.Source, bool) {
	for _, s := range c.Sources {
		if s.ID == id {
			return s, true
		}
	}
	return engine.Source{}, false
}

// Layer returns the layer with the given id.
func (c Config) Layer(id string) (engine.Layer, bool) {
	for _, l := range c.Layers {
		if l.ID == id {
			return l, true
		}
	}
	return engine.Layer{}, false
}

// Modal returns the modal with the given id.
func (c Config) Modal(id string) (Modal, bool) {
	for _, m := range c.Modals {
		if m.ID == id {
			return m, true
		}
	}
	return Modal{}, false
}

// Validate checks that every layer references a known source and that the
// filter and hover layers exist.
func (c Config) Validate() error {
	for _, l := range c.Layers {
		if _, ok := c.Source(l.Source); !ok {
			return fmt.Errorf("dashboard %s: layer %s: %w: %s", c.ID, l.ID, engine.ErrUnknownSource, l.Source)
		}
	}
	for _, id := range []string{c.FilterLayer, c.HoverLayer} {
		if _, ok := c.Layer(id); !ok {
			return fmt.Errorf("dashboard %s: %w: %s", c.ID, engine.ErrUnknownLayer, id)
		}
	}
	if c.HoverMode != HoverClosest && c.HoverMode != HoverAll {
		return fmt.Errorf("dashboard %s: invalid hover mode %q", c.ID, c.HoverMode)
	}
	return nil
}

// setup returns the load callback that adds the config's sources and layers
// to an engine, in declaration order.
func (c Config) setup() func(engine.Engine) error {
	return func(e engine.Engine) error {
		for _, s := range c.Sources {
			if err := e.AddSource(s); err != nil {
				return fmt.Errorf("failed to add source %s: %w", s.ID, err)
			}
		}
		for _, l := range c.Layers {
			if err := e.AddLayer(l); err != nil {
				return fmt.Errorf("failed to add layer %s: %w", l.ID, err)
			}
		}
		return nil
	}
}

func modalContent(name string) (template.HTML, error) {
	data, err := fs.ReadFile(assets.FS, "content/"+name)
	if err != nil {
		return "", fmt.Errorf("failed to read modal content %s: %w", name, err)
	}
	// Shipped with the binary, trusted.
	return template.HTML(data), nil
}
