package dashboard

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MeKo-Tech/civicmaps/internal/engine"
	"github.com/MeKo-Tech/civicmaps/internal/filter"
	"github.com/MeKo-Tech/civicmaps/internal/metrics"
	"github.com/MeKo-Tech/civicmaps/internal/resolver"
	"github.com/MeKo-Tech/civicmaps/internal/store"
	"github.com/MeKo-Tech/civicmaps/internal/types"
	"github.com/paulmach/orb"
)

// HoverResult is the tooltip produced by a pointer move.
type HoverResult struct {
	Point    orb.Point `json:"point"`
	Anchor   orb.Point `json:"anchor"`
	HTML     string    `json:"html"`
	Features []string  `json:"features"`
}

// SessionView is a snapshot of a session for clients.
type SessionView struct {
	ID         string              `json:"id"`
	Dashboard  string              `json:"dashboard"`
	Selections map[string][]string `json:"selections"`
	// Filter is the predicate installed on the filtered layer; nil until the
	// first filter action.
	Filter  filter.Expr   `json:"filter"`
	Variant string        `json:"variant"`
	Panel   Panel         `json:"panel"`
	Popup   *engine.Popup `json:"popup,omitempty"`
}

// Session is one mounted dashboard view. It owns the filter state, the
// panel state and an engine handle for its whole lifetime. All operations
// are serialised.
type Session struct {
	id      string
	cfg     *Config
	logger  *slog.Logger
	persist func(store.Record)

	mu       sync.Mutex
	state    filter.State
	filtered bool
	panel    Panel
	engine   engine.Engine
	closed   bool
	touched  time.Time
}

// mount creates the session's engine and replays its sources, layers and
// (when set) filter from the load callback.
func mount(id string, cfg *Config, state filter.State, filtered bool, panel Panel, logger *slog.Logger) (*Session, error) {
	m := engine.NewMap(logger)
	s := &Session{
		id:       id,
		cfg:      cfg,
		logger:   logger,
		state:    state,
		filtered: filtered,
		panel:    panel,
		engine:   m,
		touched:  time.Now(),
	}

	if err := m.OnLoad(cfg.setup()); err != nil {
		return nil, err
	}
	if filtered {
		expr := state.Expr()
		if err := m.OnLoad(func(e engine.Engine) error {
			return e.SetFilter(cfg.FilterLayer, expr)
		}); err != nil {
			return nil, err
		}
	}
	if err := m.Load(); err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("failed to mount %s: %w", cfg.ID, err)
	}
	return s, nil
}

func (s *Session) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Config returns the dashboard the session shows.
func (s *Session) Config() *Config { return s.cfg }

// lock acquires the session and fails once it is closed.
func (s *Session) lock() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return engine.ErrClosed
	}
	s.touched = time.Now()
	return nil
}

// Apply runs a filter action through the reducer and hands the rebuilt
// predicate to the engine.
func (s *Session) Apply(a filter.Action) (SessionView, error) {
	if err := s.lock(); err != nil {
		return SessionView{}, err
	}
	defer s.mu.Unlock()

	next, err := s.state.Apply(a)
	if err != nil {
		return SessionView{}, err
	}
	expr := next.Expr()
	if err := s.engine.SetFilter(s.cfg.FilterLayer, expr); err != nil {
		return SessionView{}, fmt.Errorf("failed to set filter: %w", err)
	}
	s.state = next
	s.filtered = true

	metrics.FilterActionsTotal.WithLabelValues(s.cfg.ID, string(a.Kind)).Inc()
	s.log().Debug("Filter applied", "session", s.id, "action", a.Kind, "category", a.Category, "selected", next.Snapshot()[a.Category])
	s.save()
	return s.viewLocked(), nil
}

// Hover hit-tests the hover layer under pointer at zoom and shows the
// resulting tooltip. A nil result means nothing is under the pointer.
func (s *Session) Hover(pointer orb.Point, zoom float64) (*HoverResult, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	candidates, err := s.engine.QueryFeatures(s.cfg.HoverLayer, pointer, zoom)
	if err != nil {
		return nil, err
	}
	return s.hoverLocked(resolver.Event{Pointer: pointer, Candidates: candidates})
}

// HoverCandidates shows the tooltip for candidates the client hit-tested
// itself.
func (s *Session) HoverCandidates(ev resolver.Event) (*HoverResult, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.hoverLocked(ev)
}

func (s *Session) hoverLocked(ev resolver.Event) (*HoverResult, error) {
	var (
		features []types.Feature
		pt       orb.Point
		anchor   orb.Point
	)

	switch s.cfg.HoverMode {
	case HoverClosest:
		hit, ok := resolver.Resolve(ev)
		if !ok {
			return nil, s.missLocked()
		}
		features, pt, anchor = hit.Features, hit.Point, hit.Anchor
	default:
		if len(ev.Candidates) == 0 {
			return nil, s.missLocked()
		}
		features = ev.Candidates
		pt = features[0].Point
		anchor = resolver.Anchor(ev.Pointer, pt)
	}

	html, err := s.cfg.Tooltip.Render(features)
	if err != nil {
		return nil, err
	}
	if err := s.engine.ShowPopup(engine.Popup{Anchor: anchor, HTML: html}); err != nil {
		return nil, err
	}

	ids := make([]string, len(features))
	for i, f := range features {
		ids[i] = f.ID
	}
	metrics.HoversTotal.WithLabelValues(s.cfg.ID, "hit").Inc()
	metrics.TooltipFeatures.WithLabelValues(s.cfg.ID).Observe(float64(len(features)))

	return &HoverResult{Point: pt, Anchor: anchor, HTML: html, Features: ids}, nil
}

func (s *Session) missLocked() error {
	metrics.HoversTotal.WithLabelValues(s.cfg.ID, "miss").Inc()
	return s.engine.HidePopup()
}

// Leave removes the tooltip when the pointer leaves the layer.
func (s *Session) Leave() error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	return s.engine.HidePopup()
}

// SelectTab switches the visible filter tab.
func (s *Session) SelectTab(key string) error {
	return s.UpdatePanel(PanelChange{Tab: &key})
}

// TogglePanel opens or closes the filter panel.
func (s *Session) TogglePanel() error {
	return s.UpdatePanel(PanelChange{TogglePanel: true})
}

// OpenModal shows a modal.
func (s *Session) OpenModal(id string) error {
	return s.UpdatePanel(PanelChange{OpenModal: id})
}

// CloseModal hides a modal.
func (s *Session) CloseModal(id string) error {
	return s.UpdatePanel(PanelChange{CloseModal: id})
}

// UpdatePanel applies a batch of panel changes. Nothing changes when any
// part of the batch is invalid.
func (s *Session) UpdatePanel(ch PanelChange) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	p := s.panel
	if ch.Tab != nil {
		if !s.hasCategory(*ch.Tab) {
			return fmt.Errorf("%w: %s", ErrUnknownTab, *ch.Tab)
		}
		p.Tab = *ch.Tab
	}
	if ch.Open != nil {
		p.Open = *ch.Open
	}
	if ch.TogglePanel {
		p.Open = !p.Open
	}
	for _, m := range []struct {
		id      string
		visible func(bool) bool
	}{
		{ch.OpenModal, func(bool) bool { return true }},
		{ch.CloseModal, func(bool) bool { return false }},
		{ch.ToggleModal, func(v bool) bool { return !v }},
	} {
		if m.id == "" {
			continue
		}
		if _, ok := s.cfg.Modal(m.id); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownModal, m.id)
		}
		p = p.withModal(m.id, m.visible(p.Modals[m.id]))
	}

	s.panel = p
	s.save()
	return nil
}

func (s *Session) hasCategory(key string) bool {
	for _, c := range s.cfg.Categories {
		if c.Key == key {
			return true
		}
	}
	return false
}

// Filter returns the predicate installed on the filtered layer and the
// variant key identifying it; nil and "all" before the first action.
func (s *Session) Filter() (filter.Expr, string, error) {
	if err := s.lock(); err != nil {
		return nil, "", err
	}
	defer s.mu.Unlock()
	expr, variant := s.filterLocked()
	return expr, variant, nil
}

func (s *Session) filterLocked() (filter.Expr, string) {
	if !s.filtered {
		return nil, "all"
	}
	return s.state.Expr(), "sel-" + s.state.Key()
}

// View returns a snapshot of the session.
func (s *Session) View() (SessionView, error) {
	if err := s.lock(); err != nil {
		return SessionView{}, err
	}
	defer s.mu.Unlock()
	return s.viewLocked(), nil
}

func (s *Session) viewLocked() SessionView {
	expr, variant := s.filterLocked()
	v := SessionView{
		ID:         s.id,
		Dashboard:  s.cfg.ID,
		Selections: s.state.Snapshot(),
		Filter:     expr,
		Variant:    variant,
		Panel:      s.panel,
	}
	if p, ok := s.engine.Popup(); ok {
		v.Popup = &p
	}
	return v
}

// record must be called with s.mu held.
func (s *Session) record() store.Record {
	return store.Record{
		ID:         s.id,
		Dashboard:  s.cfg.ID,
		Selections: s.state.Snapshot(),
		Filtered:   s.filtered,
		Tab:        s.panel.Tab,
		PanelOpen:  s.panel.Open,
		Modals:     s.panel.Modals,
		UpdatedAt:  time.Now(),
	}
}

func (s *Session) save() {
	if s.persist != nil {
		s.persist(s.record())
	}
}

// LastActive returns when the session was last used.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}

// Close releases the engine. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.engine.Close()
}
