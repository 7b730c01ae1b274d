package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MeKo-Tech/civicmaps/internal/filter"
	"github.com/MeKo-Tech/civicmaps/internal/tile"
	"github.com/MeKo-Tech/civicmaps/internal/types"
	"github.com/paulmach/orb"
)

// Map is an in-memory Engine. It keeps sources, layers and the popup, and
// hit-tests point layers in Web Mercator pixel space.
type Map struct {
	logger *slog.Logger

	mu      sync.RWMutex
	loaded  bool
	closed  bool
	pending []func(Engine) error

	sources     map[string]Source
	layers      map[string]Layer
	layerOrder  []string
	popup       Popup
	popupActive bool
}

var _ Engine = (*Map)(nil)

// NewMap creates an unloaded map.
func NewMap(logger *slog.Logger) *Map {
	return &Map{
		logger:  logger,
		sources: make(map[string]Source),
		layers:  make(map[string]Layer),
	}
}

func (m *Map) log() *slog.Logger {
	if m.logger != nil {
		return m.logger
	}
	return slog.Default()
}

// OnLoad implements Engine.
func (m *Map) OnLoad(fn func(Engine) error) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if !m.loaded {
		m.pending = append(m.pending, fn)
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()
	return fn(m)
}

// Load fires the load signal and runs the registered callbacks in
// registration order. A failing callback does not stop the others.
func (m *Map) Load() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.loaded {
		m.mu.Unlock()
		return nil
	}
	m.loaded = true
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()

	var errs []error
	for _, fn := range pending {
		if err := fn(m); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		m.log().Warn("Map load callbacks failed", "error", err)
		return err
	}
	return nil
}

// Loaded reports whether the load signal has fired.
func (m *Map) Loaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}

// ready must be called with m.mu held.
func (m *Map) ready() error {
	if m.closed {
		return ErrClosed
	}
	if !m.loaded {
		return ErrNotLoaded
	}
	return nil
}

// AddSource implements Engine.
func (m *Map) AddSource(src Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ready(); err != nil {
		return err
	}
	if _, ok := m.sources[src.ID]; ok {
		return fmt.Errorf("%w: source %s", ErrDuplicate, src.ID)
	}
	m.sources[src.ID] = src
	return nil
}

// AddLayer implements Engine.
func (m *Map) AddLayer(layer Layer) error {
	if err := layer.validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ready(); err != nil {
		return err
	}
	if _, ok := m.layers[layer.ID]; ok {
		return fmt.Errorf("%w: layer %s", ErrDuplicate, layer.ID)
	}
	if _, ok := m.sources[layer.Source]; !ok {
		return fmt.Errorf("%w: %s (layer %s)", ErrUnknownSource, layer.Source, layer.ID)
	}
	m.layers[layer.ID] = layer
	m.layerOrder = append(m.layerOrder, layer.ID)
	return nil
}

// SetFilter implements Engine.
func (m *Map) SetFilter(layerID string, expr filter.Expr) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ready(); err != nil {
		return err
	}
	l, ok := m.layers[layerID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLayer, layerID)
	}
	l.Filter = expr
	m.layers[layerID] = l
	return nil
}

// Layer implements Engine.
func (m *Map) Layer(layerID string) (Layer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.ready(); err != nil {
		return Layer{}, err
	}
	l, ok := m.layers[layerID]
	if !ok {
		return Layer{}, fmt.Errorf("%w: %s", ErrUnknownLayer, layerID)
	}
	return l, nil
}

// Layers returns every layer in the order it was added.
func (m *Map) Layers() []Layer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Layer, 0, len(m.layerOrder))
	for _, id := range m.layerOrder {
		out = append(out, m.layers[id])
	}
	return out
}

// QueryFeatures implements Engine. Hidden layers and layers without point
// features yield no candidates.
func (m *Map) QueryFeatures(layerID string, pointer orb.Point, zoom float64) ([]types.Feature, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.ready(); err != nil {
		return nil, err
	}
	l, ok := m.layers[layerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLayer, layerID)
	}
	if !l.Queryable() || !l.Visible(zoom) {
		return nil, nil
	}

	tol := l.Tolerance(zoom)
	var hits []types.Feature
	for _, f := range m.sources[l.Source].Points {
		if l.Filter != nil && !l.Filter.Eval(f.Properties) {
			continue
		}
		if tile.PixelDistance(pointer, f.Point, zoom, tile.DefaultSize) <= tol {
			hits = append(hits, f)
		}
	}
	return hits, nil
}

// ShowPopup implements Engine. An open popup is replaced.
func (m *Map) ShowPopup(p Popup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ready(); err != nil {
		return err
	}
	m.popup = p
	m.popupActive = true
	return nil
}

// HidePopup implements Engine.
func (m *Map) HidePopup() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ready(); err != nil {
		return err
	}
	m.popup = Popup{}
	m.popupActive = false
	return nil
}

// Popup implements Engine.
func (m *Map) Popup() (Popup, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.popup, m.popupActive
}

// Close releases the map. It is safe to call more than once.
func (m *Map) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.pending = nil
	m.sources = nil
	m.layers = nil
	m.layerOrder = nil
	m.popup = Popup{}
	m.popupActive = false
	return nil
}
