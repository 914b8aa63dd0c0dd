// internal/state/interface.go
package state

import (
	"database/sql"
	"time"

	"github.com/llehouerou/scrobbled/internal/song"
)

// Interface defines the state manager contract for dependency injection and testing.
type Interface interface {
	DB() *sql.DB

	GetSavedEdit(fingerprint string) (*song.Edit, error)
	SaveEdit(fingerprint string, e song.Edit) error
	RemoveEdit(fingerprint string) error

	GetSession(serviceID string) (*ServiceSession, error)
	SaveSession(serviceID, username, sessionKey string) error
	DeleteSession(serviceID string) error

	AddPendingScrobble(s PendingScrobble) error
	GetPendingScrobbles() ([]PendingScrobble, error)
	DeletePendingScrobble(id int64) error
	ClaimPendingScrobbles(serviceID string, startedAt time.Time, artist, track string) (int64, error)
	HasPendingScrobble(id int64) (bool, error)
	UpdatePendingScrobbleAttempt(id int64, errMsg string) error
	DeleteOldPendingScrobbles(maxAge time.Duration) error

	LoadContexts() ([]ContextRecord, error)
	SaveContexts(records []ContextRecord)
	ClearContexts() error

	GetTrackInfo(fingerprint string, ttl time.Duration) (*TrackInfo, error)
	SetTrackInfo(fingerprint string, info TrackInfo) error

	Close() error
}

// Verify Manager implements Interface at compile time.
var _ Interface = (*Manager)(nil)
