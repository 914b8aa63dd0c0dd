package song

import (
	"crypto/sha1" //nolint:gosec // fingerprint only, not a security boundary
	"encoding/hex"
	"errors"
	"time"
)

// ErrAlreadyScrobbled is returned when editing a song that was already
// submitted.
var ErrAlreadyScrobbled = errors.New("song already scrobbled")

// Fields are the identifying fields produced by the pipeline.
type Fields struct {
	Artist      string
	Track       string
	Album       string
	AlbumArtist string
	Duration    time.Duration
}

// Edit is a user correction applied on top of processed fields.
type Edit struct {
	Artist      string `json:"artist,omitempty"`
	Track       string `json:"track,omitempty"`
	Album       string `json:"album,omitempty"`
	AlbumArtist string `json:"albumArtist,omitempty"`
}

// IsZero reports whether the edit overrides nothing.
func (e Edit) IsZero() bool {
	return e == Edit{}
}

// Metadata holds data attached by enrichment.
type Metadata struct {
	TrackArtURL   string
	TrackURL      string
	RecordingMBID string
	AlbumMBID     string
	UserPlayCount int
	Enriched      bool
}

// Flags tracks the lifecycle of a song.
type Flags struct {
	IsReplaying        bool
	IsSkipped          bool
	IsScrobbled        bool
	IsMarkedAsPlaying  bool
	IsCorrectedByUser  bool
	IsLovedInService   *bool
	IsValid            bool
	FinishedProcessing bool
}

// Song is the record owned by a single controller for the song currently
// playing in its context.
type Song struct {
	Parsed         Snapshot
	Processed      Fields
	Metadata       Metadata
	UserOverrides  *Edit
	Flags          Flags
	ConnectorID    string
	ConnectorLabel string
	StartTimestamp time.Time
}

// New creates a song from the snapshot that revealed it.
func New(s Snapshot, connectorID, connectorLabel string) *Song {
	return &Song{
		Parsed:         s,
		ConnectorID:    connectorID,
		ConnectorLabel: connectorLabel,
		StartTimestamp: time.Now(),
	}
}

// Fingerprint returns the key used to store user edits for this song.
func (s *Song) Fingerprint() string {
	if s.Parsed.UniqueID != "" {
		return s.Parsed.UniqueID
	}
	return Fingerprint(s.Parsed.Artist, s.Parsed.Track, s.Parsed.Album)
}

// Fingerprint derives a stable key from raw artist, track and album values.
func Fingerprint(artist, track, album string) string {
	h := sha1.New() //nolint:gosec // see import
	h.Write([]byte(artist))
	h.Write([]byte{0})
	h.Write([]byte(track))
	h.Write([]byte{0})
	h.Write([]byte(album))
	return hex.EncodeToString(h.Sum(nil))
}

// Artist returns the best known artist.
func (s *Song) Artist() string {
	return pick(s.override().Artist, s.Processed.Artist, s.Parsed.Artist)
}

// Track returns the best known track title.
func (s *Song) Track() string {
	return pick(s.override().Track, s.Processed.Track, s.Parsed.Track)
}

// Album returns the best known album.
func (s *Song) Album() string {
	return pick(s.override().Album, s.Processed.Album, s.Parsed.Album)
}

// AlbumArtist returns the best known album artist.
func (s *Song) AlbumArtist() string {
	return pick(s.override().AlbumArtist, s.Processed.AlbumArtist, s.Parsed.AlbumArtist)
}

// Duration returns the processed duration, falling back to the reported one.
func (s *Song) Duration() time.Duration {
	if s.Processed.Duration > 0 {
		return s.Processed.Duration
	}
	return s.Parsed.DurationValue()
}

// TrackArt returns the artwork reported by the page or found by enrichment.
func (s *Song) TrackArt() string {
	return pick(s.Parsed.TrackArt, s.Metadata.TrackArtURL)
}

// IsValid reports whether the pipeline accepted the song.
func (s *Song) IsValid() bool {
	return s.Flags.IsValid
}

// SetUserOverrides stores a user edit. Edits are rejected once the song has
// been scrobbled.
func (s *Song) SetUserOverrides(e Edit) error {
	if s.Flags.IsScrobbled {
		return ErrAlreadyScrobbled
	}
	if e.IsZero() {
		s.UserOverrides = nil
		return nil
	}
	s.UserOverrides = &e
	return nil
}

// SetLoveStatus records the loved state known by the services.
func (s *Song) SetLoveStatus(loved bool) {
	s.Flags.IsLovedInService = &loved
}

// ResetData clears everything the pipeline derived so the song can be
// processed again. User overrides are kept.
func (s *Song) ResetData() {
	s.Processed = Fields{}
	s.Metadata = Metadata{}
	s.Flags.IsValid = false
	s.Flags.FinishedProcessing = false
	s.Flags.IsMarkedAsPlaying = false
}

// ResetInfo clears derived data and user overrides.
func (s *Song) ResetInfo() {
	s.ResetData()
	s.UserOverrides = nil
	s.Flags.IsCorrectedByUser = false
}

// Clone returns a deep copy.
func (s *Song) Clone() *Song {
	c := *s
	if s.UserOverrides != nil {
		e := *s.UserOverrides
		c.UserOverrides = &e
	}
	if s.Flags.IsLovedInService != nil {
		v := *s.Flags.IsLovedInService
		c.Flags.IsLovedInService = &v
	}
	return &c
}

// MergeProcessed copies the pipeline-owned parts of a processed clone into
// s. Parsed fields and lifecycle flags of s are left untouched.
func (s *Song) MergeProcessed(from *Song) {
	s.Processed = from.Processed
	s.Metadata = from.Metadata
	s.UserOverrides = nil
	if from.UserOverrides != nil {
		e := *from.UserOverrides
		s.UserOverrides = &e
	}
	s.Flags.IsValid = from.Flags.IsValid
	s.Flags.FinishedProcessing = from.Flags.FinishedProcessing
	s.Flags.IsCorrectedByUser = from.Flags.IsCorrectedByUser
	if from.Flags.IsLovedInService != nil {
		s.SetLoveStatus(*from.Flags.IsLovedInService)
	}
}

func (s *Song) override() Edit {
	if s.UserOverrides == nil {
		return Edit{}
	}
	return *s.UserOverrides
}

func pick(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
