package state

import (
	"database/sql"
	"errors"
	"time"

	dbutil "github.com/llehouerou/scrobbled/internal/db"
)

// TrackInfo is enrichment data cached per fingerprint.
type TrackInfo struct {
	Artist        string
	Track         string
	Album         string
	AlbumArtist   string
	TrackArtURL   string
	TrackURL      string
	RecordingMBID string
	AlbumMBID     string
	DurationSecs  int
	FetchedAt     time.Time
}

// GetTrackInfo returns cached enrichment data if younger than ttl.
func (m *Manager) GetTrackInfo(fingerprint string, ttl time.Duration) (*TrackInfo, error) {
	var info TrackInfo
	var artist, track, album, albumArtist, artURL, trackURL, recordingMBID, albumMBID sql.NullString
	var duration sql.NullInt64
	var fetchedAt int64

	err := m.db.QueryRow(`
		SELECT artist, track, album, album_artist, track_art_url, track_url,
		       recording_mbid, album_mbid, duration_seconds, fetched_at
		FROM track_info_cache WHERE fingerprint = ?
	`, fingerprint).Scan(&artist, &track, &album, &albumArtist, &artURL, &trackURL,
		&recordingMBID, &albumMBID, &duration, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // cache miss
	}
	if err != nil {
		return nil, err
	}

	if fetchedAt < time.Now().Add(-ttl).Unix() {
		return nil, nil //nolint:nilnil // expired entries read as a miss
	}

	info.Artist = dbutil.NullStringValue(artist)
	info.Track = dbutil.NullStringValue(track)
	info.Album = dbutil.NullStringValue(album)
	info.AlbumArtist = dbutil.NullStringValue(albumArtist)
	info.TrackArtURL = dbutil.NullStringValue(artURL)
	info.TrackURL = dbutil.NullStringValue(trackURL)
	info.RecordingMBID = dbutil.NullStringValue(recordingMBID)
	info.AlbumMBID = dbutil.NullStringValue(albumMBID)
	info.DurationSecs = int(dbutil.NullInt64Value(duration))
	info.FetchedAt = time.Unix(fetchedAt, 0)
	return &info, nil
}

// SetTrackInfo caches enrichment data for a fingerprint.
func (m *Manager) SetTrackInfo(fingerprint string, info TrackInfo) error {
	_, err := m.db.Exec(`
		INSERT INTO track_info_cache
		(fingerprint, artist, track, album, album_artist, track_art_url, track_url,
		 recording_mbid, album_mbid, duration_seconds, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			artist = excluded.artist,
			track = excluded.track,
			album = excluded.album,
			album_artist = excluded.album_artist,
			track_art_url = excluded.track_art_url,
			track_url = excluded.track_url,
			recording_mbid = excluded.recording_mbid,
			album_mbid = excluded.album_mbid,
			duration_seconds = excluded.duration_seconds,
			fetched_at = excluded.fetched_at
	`, fingerprint, info.Artist, info.Track, info.Album, info.AlbumArtist, info.TrackArtURL,
		info.TrackURL, info.RecordingMBID, info.AlbumMBID, info.DurationSecs, time.Now().Unix())
	return err
}

// PurgeTrackInfo removes cache entries older than ttl.
func (m *Manager) PurgeTrackInfo(ttl time.Duration) error {
	_, err := m.db.Exec(`DELETE FROM track_info_cache WHERE fetched_at < ?`, time.Now().Add(-ttl).Unix())
	return err
}
