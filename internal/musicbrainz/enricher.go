package musicbrainz

import (
	"context"
	"errors"
	"time"

	"github.com/llehouerou/scrobbled/internal/pipeline"
)

// Enricher fills MusicBrainz identifiers and cover art.
type Enricher struct {
	client *Client
}

var _ pipeline.Enricher = (*Enricher)(nil)

// NewEnricher creates an enricher backed by client.
func NewEnricher(client *Client) *Enricher {
	return &Enricher{client: client}
}

// Lookup implements pipeline.Enricher.
func (e *Enricher) Lookup(ctx context.Context, q pipeline.Query) (*pipeline.TrackInfo, error) {
	rec, err := e.client.SearchRecording(ctx, q.Artist, q.Track)
	if errors.Is(err, ErrNoMatch) {
		return nil, pipeline.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	info := &pipeline.TrackInfo{
		RecordingMBID: rec.ID,
		Duration:      time.Duration(rec.LengthMs) * time.Millisecond,
	}
	if rec.Release == nil {
		return info, nil
	}

	info.Album = rec.Release.Title
	info.AlbumArtist = rec.Release.Artist
	info.AlbumMBID = rec.Release.ID

	ok, err := e.client.HasCoverArt(ctx, rec.Release.ID)
	if err != nil {
		// Identifiers are still useful without artwork.
		return info, nil //nolint:nilerr // cover art is optional
	}
	if ok {
		info.TrackArtURL = e.client.CoverArtURL(rec.Release.ID)
	}
	return info, nil
}
