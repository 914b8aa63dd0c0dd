package state

import (
	"database/sql"
	"time"

	dbutil "github.com/llehouerou/scrobbled/internal/db"
)

// PendingScrobble represents a scrobble queued for retry.
type PendingScrobble struct {
	ID             int64
	ServiceID      string
	Artist         string
	Track          string
	Album          string
	AlbumArtist    string
	DurationSecs   int
	Timestamp      time.Time
	MBRecordingID  string
	OriginURL      string
	ConnectorLabel string
	Attempts       int
	LastError      string
	CreatedAt      time.Time
}

// AddPendingScrobble queues a scrobble for later submission.
func (m *Manager) AddPendingScrobble(s PendingScrobble) error {
	now := time.Now().Unix()
	_, err := m.db.Exec(`
		INSERT INTO pending_scrobbles
		(service_id, artist, track, album, album_artist, duration_seconds, timestamp,
		 mb_recording_id, origin_url, connector_label, attempts, last_error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ServiceID, s.Artist, s.Track, s.Album, s.AlbumArtist, s.DurationSecs, s.Timestamp.Unix(),
		s.MBRecordingID, s.OriginURL, s.ConnectorLabel, 0, s.LastError, now)
	return err
}

// GetPendingScrobbles returns all pending scrobbles ordered by creation time.
func (m *Manager) GetPendingScrobbles() ([]PendingScrobble, error) {
	rows, err := m.db.Query(`
		SELECT id, service_id, artist, track, album, album_artist, duration_seconds, timestamp,
		       mb_recording_id, origin_url, connector_label, attempts, last_error, created_at
		FROM pending_scrobbles
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scrobbles []PendingScrobble
	for rows.Next() {
		var s PendingScrobble
		var album, albumArtist, mbRecordingID, originURL, connectorLabel, lastError sql.NullString
		var timestamp, createdAt int64

		err := rows.Scan(
			&s.ID, &s.ServiceID, &s.Artist, &s.Track, &album, &albumArtist, &s.DurationSecs,
			&timestamp, &mbRecordingID, &originURL, &connectorLabel, &s.Attempts, &lastError, &createdAt,
		)
		if err != nil {
			return nil, err
		}

		s.Album = dbutil.NullStringValue(album)
		s.AlbumArtist = dbutil.NullStringValue(albumArtist)
		s.MBRecordingID = dbutil.NullStringValue(mbRecordingID)
		s.OriginURL = dbutil.NullStringValue(originURL)
		s.ConnectorLabel = dbutil.NullStringValue(connectorLabel)
		s.LastError = dbutil.NullStringValue(lastError)
		s.Timestamp = time.Unix(timestamp, 0)
		s.CreatedAt = time.Unix(createdAt, 0)

		scrobbles = append(scrobbles, s)
	}

	return scrobbles, rows.Err()
}

// DeletePendingScrobble removes a successfully submitted scrobble.
func (m *Manager) DeletePendingScrobble(id int64) error {
	_, err := m.db.Exec(`DELETE FROM pending_scrobbles WHERE id = ?`, id)
	return err
}

// ClaimPendingScrobbles removes the queued entries of one play for a
// service and reports how many were removed.
func (m *Manager) ClaimPendingScrobbles(serviceID string, startedAt time.Time, artist, track string) (int64, error) {
	res, err := m.db.Exec(`
		DELETE FROM pending_scrobbles
		WHERE service_id = ? AND timestamp = ? AND artist = ? AND track = ?
	`, serviceID, startedAt.Unix(), artist, track)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// HasPendingScrobble reports whether the entry is still queued.
func (m *Manager) HasPendingScrobble(id int64) (bool, error) {
	var n int
	err := m.db.QueryRow(`SELECT COUNT(*) FROM pending_scrobbles WHERE id = ?`, id).Scan(&n)
	return n > 0, err
}

// UpdatePendingScrobbleAttempt increments attempt count and sets error message.
func (m *Manager) UpdatePendingScrobbleAttempt(id int64, errMsg string) error {
	_, err := m.db.Exec(`
		UPDATE pending_scrobbles
		SET attempts = attempts + 1, last_error = ?
		WHERE id = ?
	`, errMsg, id)
	return err
}

// DeleteOldPendingScrobbles removes pending scrobbles older than the given duration.
func (m *Manager) DeleteOldPendingScrobbles(maxAge time.Duration) error {
	cutoff := time.Now().Add(-maxAge).Unix()
	_, err := m.db.Exec(`DELETE FROM pending_scrobbles WHERE created_at < ?`, cutoff)
	return err
}
