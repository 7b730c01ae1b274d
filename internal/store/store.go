// Package store persists dashboard session state so sessions survive a
// restart of the service.
package store

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned when no state is stored for a session.
var ErrNotFound = errors.New("store: session not found")

// Record is the persisted part of a session.
type Record struct {
	ID         string              `json:"id"`
	Dashboard  string              `json:"dashboard"`
	Selections map[string][]string `json:"selections"`
	Filtered   bool                `json:"filtered"`
	Tab        string              `json:"tab"`
	PanelOpen  bool                `json:"panelOpen"`
	Modals     map[string]bool     `json:"modals,omitempty"`
	UpdatedAt  time.Time           `json:"updatedAt"`
}

// Store saves and loads session records.
type Store interface {
	Save(ctx context.Context, rec Record) error
	Load(ctx context.Context, id string) (Record, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// Memory is an in-process Store. Records expire after the TTL; a zero TTL
// keeps them forever.
type Memory struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	records map[string]Record
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-process store.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, now: time.Now, records: make(map[string]Record)}
}

// Save implements Store.
func (m *Memory) Save(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = m.now()
	}
	m.records[rec.ID] = clone(rec)
	return nil
}

// Load implements Store.
func (m *Memory) Load(_ context.Context, id string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	if m.ttl > 0 && m.now().Sub(rec.UpdatedAt) > m.ttl {
		delete(m.records, id)
		return Record{}, ErrNotFound
	}
	return clone(rec), nil
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

// Close implements Store.
func (m *Memory) Close() error { return nil }

func clone(rec Record) Record {
	sel := make(map[string][]string, len(rec.Selections))
	for k, v := range rec.Selections {
		sel[k] = append([]string(nil), v...)
	}
	rec.Selections = sel
	if rec.Modals != nil {
		modals := make(map[string]bool, len(rec.Modals))
		for k, v := range rec.Modals {
			modals[k] = v
		}
		rec.Modals = modals
	}
	return rec
}
