package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MeKo-Tech/civicmaps/internal/filter"
	"github.com/MeKo-Tech/civicmaps/internal/metrics"
	"github.com/MeKo-Tech/civicmaps/internal/store"
	"github.com/MeKo-Tech/civicmaps/internal/types"
	"github.com/google/uuid"
)

// storeTimeout bounds a single persistence call made on behalf of a session.
const storeTimeout = 2 * time.Second

// Manager owns the dashboards and their mounted sessions.
type Manager struct {
	logger *slog.Logger
	store  store.Store // optional

	configs map[string]*Config
	order   []string
	// hover features by dashboard, then feature id
	index map[string]map[string]types.Feature

	mu       sync.Mutex
	sessions map[string]*Session
	newID    func() string
}

// NewManager registers configs. st may be nil, in which case sessions live
// only in memory.
func NewManager(configs []Config, st store.Store, logger *slog.Logger) (*Manager, error) {
	m := &Manager{
		logger:   logger,
		store:    st,
		configs:  make(map[string]*Config, len(configs)),
		index:    make(map[string]map[string]types.Feature, len(configs)),
		sessions: make(map[string]*Session),
		newID:    uuid.NewString,
	}
	for i := range configs {
		cfg := configs[i]
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if _, dup := m.configs[cfg.ID]; dup {
			return nil, fmt.Errorf("duplicate dashboard %s", cfg.ID)
		}
		m.configs[cfg.ID] = &cfg
		m.order = append(m.order, cfg.ID)
		m.index[cfg.ID] = hoverIndex(&cfg)
	}
	return m, nil
}

func hoverIndex(cfg *Config) map[string]types.Feature {
	idx := make(map[string]types.Feature)
	layer, _ := cfg.Layer(cfg.HoverLayer)
	src, _ := cfg.Source(layer.Source)
	for _, f := range src.Points {
		idx[f.ID] = f
	}
	return idx
}

func (m *Manager) log() *slog.Logger {
	if m.logger != nil {
		return m.logger
	}
	return slog.Default()
}

// Dashboards returns every registered dashboard in registration order.
func (m *Manager) Dashboards() []*Config {
	out := make([]*Config, len(m.order))
	for i, id := range m.order {
		out[i] = m.configs[id]
	}
	return out
}

// Dashboard returns one dashboard.
func (m *Manager) Dashboard(id string) (*Config, error) {
	cfg, ok := m.configs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDashboard, id)
	}
	return cfg, nil
}

// Features looks up hover candidates of a dashboard by id, keeping the
// given order. Unknown ids are skipped.
func (m *Manager) Features(dashboardID string, ids []string) ([]types.Feature, error) {
	idx, ok := m.index[dashboardID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDashboard, dashboardID)
	}
	out := make([]types.Feature, 0, len(ids))
	for _, id := range ids {
		if f, ok := idx[id]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// Open mounts a new session of a dashboard with every filter option
// selected.
func (m *Manager) Open(ctx context.Context, dashboardID string) (*Session, error) {
	cfg, err := m.Dashboard(dashboardID)
	if err != nil {
		return nil, err
	}

	s, err := mount(m.newID(), cfg, filter.NewState(cfg.Categories), false, NewPanel(cfg), m.logger)
	if err != nil {
		return nil, err
	}
	m.register(s)
	m.persist(ctx, s)
	m.log().Info("Session mounted", "session", s.id, "dashboard", cfg.ID)
	return s, nil
}

// Get returns a mounted session. Sessions unknown in memory are remounted
// from the store when one is configured.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if ok {
		return s, nil
	}
	if m.store == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}

	rec, err := m.store.Load(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	if err != nil {
		return nil, err
	}
	return m.restore(rec)
}

func (m *Manager) restore(rec store.Record) (*Session, error) {
	cfg, err := m.Dashboard(rec.Dashboard)
	if err != nil {
		return nil, err
	}

	panel := NewPanel(cfg)
	for _, c := range cfg.Categories {
		if c.Key == rec.Tab {
			panel.Tab = rec.Tab
		}
	}
	panel.Open = rec.PanelOpen
	for id, visible := range rec.Modals {
		if _, ok := panel.Modals[id]; ok {
			panel.Modals[id] = visible
		}
	}

	state := filter.Restore(cfg.Categories, rec.Selections)
	s, err := mount(rec.ID, cfg, state, rec.Filtered, panel, m.logger)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if existing, ok := m.sessions[rec.ID]; ok {
		// Lost a race with a concurrent restore.
		m.mu.Unlock()
		_ = s.Close()
		return existing, nil
	}
	m.mu.Unlock()

	m.register(s)
	m.log().Info("Session restored", "session", s.id, "dashboard", cfg.ID)
	return s, nil
}

func (m *Manager) register(s *Session) {
	if m.store != nil {
		s.persist = func(rec store.Record) {
			ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
			defer cancel()
			if err := m.store.Save(ctx, rec); err != nil {
				m.log().Warn("Failed to persist session", "session", rec.ID, "error", err)
			}
		}
	}

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()
	metrics.ActiveSessions.WithLabelValues(s.cfg.ID).Inc()
}

func (m *Manager) persist(ctx context.Context, s *Session) {
	if m.store == nil {
		return
	}
	s.mu.Lock()
	rec := s.record()
	s.mu.Unlock()
	if err := m.store.Save(ctx, rec); err != nil {
		m.log().Warn("Failed to persist session", "session", rec.ID, "error", err)
	}
}

// Close unmounts a session and forgets its stored state.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.Delete(ctx, id); err != nil {
			m.log().Warn("Failed to delete stored session", "session", id, "error", err)
		}
	}
	if !ok {
		if m.store == nil {
			return fmt.Errorf("%w: %s", ErrUnknownSession, id)
		}
		return nil
	}

	metrics.ActiveSessions.WithLabelValues(s.cfg.ID).Dec()
	m.log().Info("Session unmounted", "session", id, "dashboard", s.cfg.ID)
	return s.Close()
}

// Expire unmounts sessions idle for longer than maxIdle. Their stored state
// is kept, so they can be restored later. It returns the number unmounted.
func (m *Manager) Expire(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		metrics.ActiveSessions.WithLabelValues(s.cfg.ID).Dec()
		_ = s.Close()
	}
	if len(idle) > 0 {
		m.log().Debug("Expired idle sessions", "count", len(idle))
	}
	return len(idle)
}

// Len returns the number of mounted sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown unmounts every session. Stored state is kept.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		metrics.ActiveSessions.WithLabelValues(s.cfg.ID).Dec()
		_ = s.Close()
	}
}
