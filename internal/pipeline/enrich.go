package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/llehouerou/scrobbled/internal/song"
	"github.com/llehouerou/scrobbled/internal/state"
)

const (
	// DefaultCacheSize is the number of lookups kept in memory.
	DefaultCacheSize = 512
	// DefaultCacheTTL is how long persisted lookups stay fresh.
	DefaultCacheTTL = 30 * 24 * time.Hour
)

// Query identifies the song to look up.
type Query struct {
	Artist string
	Track  string
	Album  string
}

func (q Query) key() string {
	return strings.ToLower(q.Artist) + "\x00" + strings.ToLower(q.Track) + "\x00" + strings.ToLower(q.Album)
}

// TrackInfo is what an enricher knows about a song. Empty fields are
// unknown.
type TrackInfo struct {
	Album         string
	AlbumArtist   string
	TrackArtURL   string
	TrackURL      string
	RecordingMBID string
	AlbumMBID     string
	Duration      time.Duration
	UserPlayCount int
	Loved         *bool
}

// merge fills the empty fields of i from other.
func (i *TrackInfo) merge(other *TrackInfo) {
	if other == nil {
		return
	}
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&i.Album, other.Album)
	fill(&i.AlbumArtist, other.AlbumArtist)
	fill(&i.TrackArtURL, other.TrackArtURL)
	fill(&i.TrackURL, other.TrackURL)
	fill(&i.RecordingMBID, other.RecordingMBID)
	fill(&i.AlbumMBID, other.AlbumMBID)
	if i.Duration == 0 {
		i.Duration = other.Duration
	}
	if i.UserPlayCount == 0 {
		i.UserPlayCount = other.UserPlayCount
	}
	if i.Loved == nil && other.Loved != nil {
		loved := *other.Loved
		i.Loved = &loved
	}
}

// ErrNotFound is returned by enrichers that know nothing about a song.
var ErrNotFound = errors.New("track not found")

// Enricher looks up additional information about a song.
type Enricher interface {
	Lookup(ctx context.Context, q Query) (*TrackInfo, error)
}

// Chain asks every enricher in order and merges their answers, earlier
// enrichers taking precedence. It fails only when every enricher failed.
type Chain struct {
	Enrichers []Enricher
	Logger    *zap.Logger
}

// Lookup implements Enricher.
func (c Chain) Lookup(ctx context.Context, q Query) (*TrackInfo, error) {
	var (
		out   *TrackInfo
		errs  []error
		found bool
	)
	for _, e := range c.Enrichers {
		if ctx.Err() != nil {
			break
		}
		info, err := e.Lookup(ctx, q)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				errs = append(errs, err)
			}
			continue
		}
		if out == nil {
			out = &TrackInfo{}
		}
		out.merge(info)
		found = true

		// Later enrichers exist to fill gaps; stop once nothing is missing.
		if out.TrackArtURL != "" && out.Album != "" && out.RecordingMBID != "" {
			break
		}
	}
	if found {
		return out, nil
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return nil, ErrNotFound
}

// TrackCache persists lookups between runs.
type TrackCache interface {
	GetTrackInfo(fingerprint string, ttl time.Duration) (*state.TrackInfo, error)
	SetTrackInfo(fingerprint string, info state.TrackInfo) error
}

// Cached puts an in-memory LRU and an optional persistent cache in front
// of an enricher. Only the static fields are persisted; per-user fields
// such as play count live in memory.
type Cached struct {
	next   Enricher
	mem    *lru.Cache[string, TrackInfo]
	store  TrackCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCached wraps next with caches. store may be nil.
func NewCached(next Enricher, size int, store TrackCache, logger *zap.Logger) (*Cached, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	mem, err := lru.New[string, TrackInfo](size)
	if err != nil {
		return nil, fmt.Errorf("create lookup cache: %w", err)
	}
	return &Cached{next: next, mem: mem, store: store, ttl: DefaultCacheTTL, logger: logger}, nil
}

// Lookup implements Enricher.
func (c *Cached) Lookup(ctx context.Context, q Query) (*TrackInfo, error) {
	key := q.key()
	if info, ok := c.mem.Get(key); ok {
		return &info, nil
	}

	fp := song.Fingerprint(strings.ToLower(q.Artist), strings.ToLower(q.Track), strings.ToLower(q.Album))
	if c.store != nil {
		cached, err := c.store.GetTrackInfo(fp, c.ttl)
		if err != nil {
			c.logger.Debug("read lookup cache", zap.Error(err))
		} else if cached != nil {
			info := fromState(cached)
			c.mem.Add(key, info)
			return &info, nil
		}
	}

	info, err := c.next.Lookup(ctx, q)
	if err != nil {
		return nil, err
	}
	c.mem.Add(key, *info)
	if c.store != nil {
		if err := c.store.SetTrackInfo(fp, toState(q, info)); err != nil {
			c.logger.Debug("write lookup cache", zap.Error(err))
		}
	}
	return info, nil
}

func fromState(s *state.TrackInfo) TrackInfo {
	return TrackInfo{
		Album:         s.Album,
		AlbumArtist:   s.AlbumArtist,
		TrackArtURL:   s.TrackArtURL,
		TrackURL:      s.TrackURL,
		RecordingMBID: s.RecordingMBID,
		AlbumMBID:     s.AlbumMBID,
		Duration:      time.Duration(s.DurationSecs) * time.Second,
	}
}

func toState(q Query, i *TrackInfo) state.TrackInfo {
	return state.TrackInfo{
		Artist:        q.Artist,
		Track:         q.Track,
		Album:         i.Album,
		AlbumArtist:   i.AlbumArtist,
		TrackArtURL:   i.TrackArtURL,
		TrackURL:      i.TrackURL,
		RecordingMBID: i.RecordingMBID,
		AlbumMBID:     i.AlbumMBID,
		DurationSecs:  int(i.Duration / time.Second),
	}
}

// Enrich attaches enricher data to the song.
type Enrich struct {
	Enricher Enricher
}

// Name implements Stage.
func (Enrich) Name() string { return "enrich" }

// Process implements Stage.
func (e Enrich) Process(ctx context.Context, s *song.Song) error {
	if e.Enricher == nil {
		return nil
	}
	q := Query{Artist: s.Artist(), Track: s.Track(), Album: s.Album()}
	if q.Artist == "" || q.Track == "" {
		return nil
	}

	info, err := e.Enricher.Lookup(ctx, q)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup %s - %s: %w", q.Artist, q.Track, err)
	}

	if s.Processed.Album == "" {
		s.Processed.Album = info.Album
	}
	if s.Processed.AlbumArtist == "" {
		s.Processed.AlbumArtist = info.AlbumArtist
	}
	if s.Processed.Duration == 0 {
		s.Processed.Duration = info.Duration
	}
	s.Metadata = song.Metadata{
		TrackArtURL:   info.TrackArtURL,
		TrackURL:      info.TrackURL,
		RecordingMBID: info.RecordingMBID,
		AlbumMBID:     info.AlbumMBID,
		UserPlayCount: info.UserPlayCount,
		Enriched:      true,
	}
	if info.Loved != nil {
		s.SetLoveStatus(*info.Loved)
	}
	return nil
}
