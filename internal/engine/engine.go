// Package engine defines the rendering-engine capabilities the dashboards
// rely on, and an in-memory implementation of them.
package engine

import (
	"errors"

	"github.com/MeKo-Tech/civicmaps/internal/filter"
	"github.com/MeKo-Tech/civicmaps/internal/types"
	"github.com/paulmach/orb"
)

var (
	ErrNotLoaded     = errors.New("engine: map not loaded")
	ErrClosed        = errors.New("engine: map closed")
	ErrUnknownSource = errors.New("engine: unknown source")
	ErrUnknownLayer  = errors.New("engine: unknown layer")
	ErrDuplicate     = errors.New("engine: duplicate id")
	ErrInvalidLayer  = errors.New("engine: invalid layer")
)

// Popup is a tooltip anchored at a map position.
type Popup struct {
	Anchor orb.Point `json:"anchor"`
	HTML   string    `json:"html"`
}

// Engine is the capability set of a map rendering engine.
type Engine interface {
	// OnLoad registers fn for the load signal. Callbacks registered after
	// the map has loaded run immediately.
	OnLoad(fn func(Engine) error) error

	AddSource(src Source) error
	AddLayer(layer Layer) error
	SetFilter(layerID string, expr filter.Expr) error
	Layer(layerID string) (Layer, error)

	// QueryFeatures returns the features of a layer rendered under pointer
	// at zoom, in source order.
	QueryFeatures(layerID string, pointer orb.Point, zoom float64) ([]types.Feature, error)

	ShowPopup(p Popup) error
	HidePopup() error
	Popup() (Popup, bool)

	Close() error
}
