package contextstore

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/llehouerou/scrobbled/internal/controller"
	"github.com/llehouerou/scrobbled/internal/state"
)

// Memory is an in-process backend.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{}
}

// Load implements Backend.
func (m *Memory) Load(context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.entries), nil
}

// Save implements Backend.
func (m *Memory) Save(_ context.Context, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = slices.Clone(entries)
	return nil
}

// Records is the persistence surface of the state manager used by
// StateBackend.
type Records interface {
	LoadContexts() ([]state.ContextRecord, error)
	SaveContexts(records []state.ContextRecord)
}

// StateBackend stores entries in the state database so clients see the last
// known state while the daemon runs.
type StateBackend struct {
	records Records
}

// NewStateBackend creates a backend over the state manager.
func NewStateBackend(records Records) *StateBackend {
	return &StateBackend{records: records}
}

// Load implements Backend.
func (b *StateBackend) Load(context.Context) ([]Entry, error) {
	records, err := b.records.LoadContexts()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(records))
	for _, r := range records {
		mode, err := controller.ParseMode(r.Mode)
		if err != nil {
			return nil, fmt.Errorf("context %s: %w", r.ContextID, err)
		}
		entries = append(entries, Entry{
			ContextID:   r.ContextID,
			Mode:        mode,
			ConnectorID: r.ConnectorID,
			URL:         r.URL,
			Song:        r.Song,
			UpdatedAt:   r.UpdatedAt,
		})
	}
	return entries, nil
}

// Save implements Backend.
func (b *StateBackend) Save(_ context.Context, entries []Entry) error {
	records := make([]state.ContextRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, state.ContextRecord{
			ContextID:   e.ContextID,
			Mode:        e.Mode.String(),
			ConnectorID: e.ConnectorID,
			URL:         e.URL,
			Song:        e.Song,
			UpdatedAt:   e.UpdatedAt,
		})
	}
	b.records.SaveContexts(records)
	return nil
}
