// Package contextstore holds the mode and song of every tracked context.
// All writes go through a single lock held for the whole read-modify-write
// cycle, including the backend round trip.
package contextstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/llehouerou/scrobbled/internal/controller"
	"github.com/llehouerou/scrobbled/internal/song"
)

// Entry is the state of one context as shown to clients.
type Entry struct {
	ContextID   string          `json:"contextId"`
	Mode        controller.Mode `json:"mode"`
	ConnectorID string          `json:"connectorId,omitempty"`
	URL         string          `json:"url,omitempty"`
	Song        *song.Info      `json:"song,omitempty"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Backend loads and saves the full entry list.
type Backend interface {
	Load(ctx context.Context) ([]Entry, error)
	Save(ctx context.Context, entries []Entry) error
}

// Liveness reports whether a context still exists and still shows a
// supported page.
type Liveness interface {
	IsActive(ctx context.Context, contextID string) bool
}

// Store is the authoritative contextID -> Entry mapping.
type Store struct {
	// sem is the store lock; a channel so waiting honours ctx.
	sem      chan struct{}
	backend  Backend
	liveness Liveness
	logger   *zap.Logger
}

// New creates a store. A nil liveness disables pruning.
func New(backend Backend, liveness Liveness, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		sem:      make(chan struct{}, 1),
		backend:  backend,
		liveness: liveness,
		logger:   logger.Named("contextstore"),
	}
}

func (s *Store) lock(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) unlock() {
	<-s.sem
}

// Get returns every live entry ordered by context ID.
func (s *Store) Get(ctx context.Context) ([]Entry, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()

	entries, err := s.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Lookup returns the entry of one context.
func (s *Store) Lookup(ctx context.Context, contextID string) (Entry, bool, error) {
	entries, err := s.Get(ctx)
	if err != nil {
		return Entry{}, false, err
	}
	i := slices.IndexFunc(entries, func(e Entry) bool { return e.ContextID == contextID })
	if i < 0 {
		return Entry{}, false, nil
	}
	return entries[i], true, nil
}

// Set replaces every entry.
func (s *Store) Set(ctx context.Context, entries []Entry) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()

	return s.saveLocked(ctx, slices.Clone(entries))
}

// Update applies fn to the entry of contextID and writes the result back.
// An absent entry is synthesized in Base mode. Nothing is written when fn
// fails.
func (s *Store) Update(ctx context.Context, contextID string, fn func(Entry) (Entry, error)) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()

	entries, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}

	i := slices.IndexFunc(entries, func(e Entry) bool { return e.ContextID == contextID })
	current := Entry{ContextID: contextID, Mode: controller.ModeBase}
	if i >= 0 {
		current = entries[i]
	}

	updated, err := fn(current)
	if err != nil {
		return fmt.Errorf("update context %s: %w", contextID, err)
	}
	updated.ContextID = contextID
	updated.UpdatedAt = time.Now()

	if i >= 0 {
		entries[i] = updated
	} else {
		entries = append(entries, updated)
	}
	return s.saveLocked(ctx, entries)
}

// Remove deletes the entry of contextID.
func (s *Store) Remove(ctx context.Context, contextID string) error {
	if err := s.lock(ctx); err != nil {
		return err
	}
	defer s.unlock()

	entries, err := s.loadLocked(ctx)
	if err != nil {
		return err
	}
	kept := slices.DeleteFunc(entries, func(e Entry) bool { return e.ContextID == contextID })
	return s.saveLocked(ctx, kept)
}

// loadLocked reads the backend and drops inactive entries, writing the
// pruned list back when something was dropped.
func (s *Store) loadLocked(ctx context.Context) ([]Entry, error) {
	entries, err := s.backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load contexts: %w", err)
	}
	live := s.prune(ctx, entries)
	if len(live) == len(entries) {
		return live, nil
	}
	if err := s.backend.Save(ctx, live); err != nil {
		return nil, fmt.Errorf("save contexts: %w", err)
	}
	return live, nil
}

func (s *Store) saveLocked(ctx context.Context, entries []Entry) error {
	entries = s.prune(ctx, entries)
	slices.SortFunc(entries, func(a, b Entry) int { return cmp.Compare(a.ContextID, b.ContextID) })
	if err := s.backend.Save(ctx, entries); err != nil {
		return fmt.Errorf("save contexts: %w", err)
	}
	return nil
}

func (s *Store) prune(ctx context.Context, entries []Entry) []Entry {
	if s.liveness == nil {
		return entries
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if !s.liveness.IsActive(ctx, e.ContextID) {
			s.logger.Debug("pruned inactive context", zap.String("context", e.ContextID))
			continue
		}
		out = append(out, e)
	}
	return out
}
