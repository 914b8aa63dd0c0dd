package state

import (
	"database/sql"
	"errors"
	"time"
)

// ServiceSession represents a stored session for a scrobbling service.
type ServiceSession struct {
	ServiceID  string
	Username   string
	SessionKey string
	LinkedAt   time.Time
}

// GetSession returns the stored session for a service, or nil if not linked.
func (m *Manager) GetSession(serviceID string) (*ServiceSession, error) {
	var username, sessionKey string
	var linkedAt int64

	err := m.db.QueryRow(`
		SELECT username, session_key, linked_at FROM service_sessions WHERE service_id = ?
	`, serviceID).Scan(&username, &sessionKey, &linkedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // nil session means not linked, not an error
	}
	if err != nil {
		return nil, err
	}

	return &ServiceSession{
		ServiceID:  serviceID,
		Username:   username,
		SessionKey: sessionKey,
		LinkedAt:   time.Unix(linkedAt, 0),
	}, nil
}

// SaveSession stores a service session after successful authentication.
func (m *Manager) SaveSession(serviceID, username, sessionKey string) error {
	now := time.Now().Unix()
	_, err := m.db.Exec(`
		INSERT INTO service_sessions (service_id, username, session_key, linked_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(service_id) DO UPDATE SET
			username = excluded.username,
			session_key = excluded.session_key,
			linked_at = excluded.linked_at
	`, serviceID, username, sessionKey, now)
	return err
}

// DeleteSession removes the stored session for a service (unlink).
func (m *Manager) DeleteSession(serviceID string) error {
	_, err := m.db.Exec(`DELETE FROM service_sessions WHERE service_id = ?`, serviceID)
	return err
}
