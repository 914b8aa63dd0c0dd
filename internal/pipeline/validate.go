package pipeline

import (
	"context"

	"github.com/llehouerou/scrobbled/internal/song"
)

// Validate decides whether the song can be scrobbled.
type Validate struct {
	// ForceRecognize accepts songs that carry a unique ID and a track title
	// but no artist.
	ForceRecognize bool
}

// Name implements Stage.
func (Validate) Name() string { return "validate" }

// Process implements Stage.
func (v Validate) Process(_ context.Context, s *song.Song) error {
	s.Flags.IsValid = IsValid(s, v.ForceRecognize)
	return nil
}

// IsValid reports whether s has enough information to be scrobbled.
func IsValid(s *song.Song, forceRecognize bool) bool {
	if s.Artist() != "" && s.Track() != "" {
		return true
	}
	return forceRecognize && s.Parsed.UniqueID != "" && s.Track() != ""
}
