package state

import (
	"database/sql"
	"errors"
	"time"

	dbutil "github.com/llehouerou/scrobbled/internal/db"
	"github.com/llehouerou/scrobbled/internal/song"
)

// GetSavedEdit returns the user edit stored for a fingerprint, or nil.
func (m *Manager) GetSavedEdit(fingerprint string) (*song.Edit, error) {
	var artist, track, album, albumArtist sql.NullString
	err := m.db.QueryRow(`
		SELECT artist, track, album, album_artist FROM saved_edits WHERE fingerprint = ?
	`, fingerprint).Scan(&artist, &track, &album, &albumArtist)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // no edit saved for this song
	}
	if err != nil {
		return nil, err
	}

	return &song.Edit{
		Artist:      dbutil.NullStringValue(artist),
		Track:       dbutil.NullStringValue(track),
		Album:       dbutil.NullStringValue(album),
		AlbumArtist: dbutil.NullStringValue(albumArtist),
	}, nil
}

// SaveEdit stores a user edit for a fingerprint, replacing any previous one.
func (m *Manager) SaveEdit(fingerprint string, e song.Edit) error {
	_, err := m.db.Exec(`
		INSERT INTO saved_edits (fingerprint, artist, track, album, album_artist, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			artist = excluded.artist,
			track = excluded.track,
			album = excluded.album,
			album_artist = excluded.album_artist,
			updated_at = excluded.updated_at
	`, fingerprint, e.Artist, e.Track, e.Album, e.AlbumArtist, time.Now().Unix())
	return err
}

// RemoveEdit deletes the user edit stored for a fingerprint.
func (m *Manager) RemoveEdit(fingerprint string) error {
	_, err := m.db.Exec(`DELETE FROM saved_edits WHERE fingerprint = ?`, fingerprint)
	return err
}

// CountEdits returns the number of saved edits.
func (m *Manager) CountEdits() (int, error) {
	var n int
	err := m.db.QueryRow(`SELECT COUNT(*) FROM saved_edits`).Scan(&n)
	return n, err
}
