package pipeline

import (
	"context"
	"fmt"

	"github.com/llehouerou/scrobbled/internal/song"
)

// EditStore reads user edits saved for a song fingerprint.
type EditStore interface {
	GetSavedEdit(fingerprint string) (*song.Edit, error)
}

// Overrides attaches the user edit saved for the song, if any. It reads
// storage only; saving edits is the controller's job.
type Overrides struct {
	Store EditStore
}

// Name implements Stage.
func (Overrides) Name() string { return "overrides" }

// Process implements Stage.
func (o Overrides) Process(_ context.Context, s *song.Song) error {
	if s.UserOverrides != nil {
		s.Flags.IsCorrectedByUser = true
		return nil
	}
	if o.Store == nil {
		return nil
	}

	edit, err := o.Store.GetSavedEdit(s.Fingerprint())
	if err != nil {
		return fmt.Errorf("load saved edit: %w", err)
	}
	if edit == nil || edit.IsZero() {
		return nil
	}

	e := *edit
	s.UserOverrides = &e
	s.Flags.IsCorrectedByUser = true
	return nil
}
