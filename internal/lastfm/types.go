package lastfm

import (
	"time"

	"github.com/llehouerou/scrobbled/internal/song"
)

// ScrobbleTrack contains track metadata for scrobbling.
type ScrobbleTrack struct {
	Artist        string
	Track         string
	Album         string
	AlbumArtist   string
	Duration      time.Duration
	Timestamp     time.Time // When playback started
	MBRecordingID string    // Optional MusicBrainz recording ID
}

// TrackFromInfo builds the scrobble payload for a song.
func TrackFromInfo(info song.Info) ScrobbleTrack {
	return ScrobbleTrack{
		Artist:        info.Artist,
		Track:         info.Track,
		Album:         info.Album,
		AlbumArtist:   info.AlbumArtist,
		Duration:      info.DurationValue(),
		Timestamp:     info.StartedAt,
		MBRecordingID: info.RecordingMBID,
	}
}

// TrackDetails is the part of track.getInfo used for enrichment.
type TrackDetails struct {
	Album         string
	AlbumArtist   string
	URL           string
	ImageURL      string
	RecordingMBID string
	AlbumMBID     string
	DurationMs    int
	UserPlayCount int
	Loved         *bool
}
