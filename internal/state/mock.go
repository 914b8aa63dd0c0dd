// internal/state/mock.go
package state

import (
	"database/sql"
	"sync"
	"time"

	"github.com/llehouerou/scrobbled/internal/song"
)

// Mock is an in-memory test double for Manager.
type Mock struct {
	mu       sync.Mutex
	edits    map[string]song.Edit
	sessions map[string]ServiceSession
	pending  []PendingScrobble
	nextID   int64
	contexts []ContextRecord
	cache    map[string]TrackInfo
	closed   bool
}

// NewMock creates a new mock state manager for testing.
func NewMock() *Mock {
	return &Mock{
		edits:    make(map[string]song.Edit),
		sessions: make(map[string]ServiceSession),
		cache:    make(map[string]TrackInfo),
	}
}

func (m *Mock) DB() *sql.DB { return nil }

func (m *Mock) GetSavedEdit(fingerprint string) (*song.Edit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.edits[fingerprint]
	if !ok {
		return nil, nil //nolint:nilnil // mirrors Manager
	}
	return &e, nil
}

func (m *Mock) SaveEdit(fingerprint string, e song.Edit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits[fingerprint] = e
	return nil
}

func (m *Mock) RemoveEdit(fingerprint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.edits, fingerprint)
	return nil
}

func (m *Mock) GetSession(serviceID string) (*ServiceSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[serviceID]
	if !ok {
		return nil, nil //nolint:nilnil // mirrors Manager
	}
	return &s, nil
}

func (m *Mock) SaveSession(serviceID, username, sessionKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[serviceID] = ServiceSession{
		ServiceID:  serviceID,
		Username:   username,
		SessionKey: sessionKey,
		LinkedAt:   time.Now(),
	}
	return nil
}

func (m *Mock) DeleteSession(serviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, serviceID)
	return nil
}

func (m *Mock) AddPendingScrobble(s PendingScrobble) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	s.ID = m.nextID
	s.CreatedAt = time.Now()
	m.pending = append(m.pending, s)
	return nil
}

func (m *Mock) GetPendingScrobbles() ([]PendingScrobble, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PendingScrobble(nil), m.pending...), nil
}

func (m *Mock) DeletePendingScrobble(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.pending {
		if p.ID == id {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Mock) ClaimPendingScrobbles(serviceID string, startedAt time.Time, artist, track string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	kept := m.pending[:0]
	for _, p := range m.pending {
		if p.ServiceID == serviceID && p.Timestamp.Unix() == startedAt.Unix() &&
			p.Artist == artist && p.Track == track {
			n++
			continue
		}
		kept = append(kept, p)
	}
	m.pending = kept
	return n, nil
}

func (m *Mock) HasPendingScrobble(id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.pending {
		if p.ID == id {
			return true, nil
		}
	}
	return false, nil
}

func (m *Mock) UpdatePendingScrobbleAttempt(id int64, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.pending {
		if m.pending[i].ID == id {
			m.pending[i].Attempts++
			m.pending[i].LastError = errMsg
		}
	}
	return nil
}

func (m *Mock) DeleteOldPendingScrobbles(maxAge time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	kept := m.pending[:0]
	for _, p := range m.pending {
		if !p.CreatedAt.Before(cutoff) {
			kept = append(kept, p)
		}
	}
	m.pending = kept
	return nil
}

func (m *Mock) LoadContexts() ([]ContextRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ContextRecord(nil), m.contexts...), nil
}

func (m *Mock) SaveContexts(records []ContextRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contexts = append([]ContextRecord(nil), records...)
}

func (m *Mock) ClearContexts() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contexts = nil
	return nil
}

func (m *Mock) GetTrackInfo(fingerprint string, _ time.Duration) (*TrackInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.cache[fingerprint]
	if !ok {
		return nil, nil //nolint:nilnil // mirrors Manager
	}
	return &info, nil
}

func (m *Mock) SetTrackInfo(fingerprint string, info TrackInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[fingerprint] = info
	return nil
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Test helpers

func (m *Mock) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Verify Mock implements Interface at compile time.
var _ Interface = (*Mock)(nil)
