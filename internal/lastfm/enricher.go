package lastfm

import (
	"context"
	"errors"
	"time"

	"github.com/llehouerou/scrobbled/internal/pipeline"
)

// Enricher looks songs up with track.getInfo.
type Enricher struct {
	client *Client
	// user returns the account whose play count and loved status are
	// requested; empty means anonymous lookups.
	user func() string
}

var _ pipeline.Enricher = (*Enricher)(nil)

// NewEnricher creates an enricher. svc may be nil for anonymous lookups.
func NewEnricher(client *Client, svc *Service) *Enricher {
	e := &Enricher{client: client, user: func() string { return "" }}
	if svc != nil {
		e.user = svc.Username
	}
	return e
}

// Lookup implements pipeline.Enricher.
func (e *Enricher) Lookup(ctx context.Context, q pipeline.Query) (*pipeline.TrackInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	details, err := e.client.TrackInfo(q.Artist, q.Track, e.user())
	if errors.Is(err, ErrTrackNotFound) {
		return nil, pipeline.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &pipeline.TrackInfo{
		Album:         details.Album,
		AlbumArtist:   details.AlbumArtist,
		TrackArtURL:   details.ImageURL,
		TrackURL:      details.URL,
		RecordingMBID: details.RecordingMBID,
		AlbumMBID:     details.AlbumMBID,
		Duration:      time.Duration(details.DurationMs) * time.Millisecond,
		UserPlayCount: details.UserPlayCount,
		Loved:         details.Loved,
	}, nil
}
