package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	dbutil "github.com/llehouerou/scrobbled/internal/db"
	"github.com/llehouerou/scrobbled/internal/song"
)

// ContextRecord is the persisted form of a context store entry.
type ContextRecord struct {
	ContextID   string
	Mode        string
	ConnectorID string
	URL         string
	Song        *song.Info
	UpdatedAt   time.Time
}

// LoadContexts returns the context entries, including writes that are
// still waiting for the debounce timer.
func (m *Manager) LoadContexts() ([]ContextRecord, error) {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	if !m.loaded {
		records, err := loadContexts(m.db)
		if err != nil {
			return nil, err
		}
		m.contexts, m.loaded = records, true
	}
	return append([]ContextRecord(nil), m.contexts...), nil
}

// SaveContexts replaces the context entries. Database writes are debounced.
func (m *Manager) SaveContexts(records []ContextRecord) {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	m.contexts = append([]ContextRecord(nil), records...)
	m.loaded = true
	m.version++

	if m.saveTimer != nil {
		m.saveTimer.Stop()
	}
	m.saveTimer = time.AfterFunc(saveDebounce, func() {
		if err := m.flushContexts(); err != nil {
			m.logger.Warn("save contexts", zap.Error(err))
		}
	})
}

// flushContexts writes the latest context list if it is newer than what
// the database holds.
func (m *Manager) flushContexts() error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.saveMu.Lock()
	records := append([]ContextRecord(nil), m.contexts...)
	version := m.version
	m.saveMu.Unlock()

	if version <= m.written {
		return nil
	}
	if err := saveContexts(m.db, records); err != nil {
		return err
	}
	m.written = version
	return nil
}

// ClearContexts removes all context entries. Contexts do not survive a
// restart of the daemon.
func (m *Manager) ClearContexts() error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.saveMu.Lock()
	if m.saveTimer != nil {
		m.saveTimer.Stop()
	}
	m.contexts, m.loaded = nil, true
	m.version++
	version := m.version
	m.saveMu.Unlock()

	if _, err := m.db.Exec(`DELETE FROM context_entries`); err != nil {
		return err
	}
	m.written = version
	return nil
}

func loadContexts(db *sql.DB) ([]ContextRecord, error) {
	rows, err := db.Query(`
		SELECT context_id, mode, connector_id, url, song_json, updated_at
		FROM context_entries
		ORDER BY context_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ContextRecord
	for rows.Next() {
		var r ContextRecord
		var connectorID, url, songJSON sql.NullString
		var updatedAt int64
		if err := rows.Scan(&r.ContextID, &r.Mode, &connectorID, &url, &songJSON, &updatedAt); err != nil {
			return nil, err
		}
		r.ConnectorID = dbutil.NullStringValue(connectorID)
		r.URL = dbutil.NullStringValue(url)
		r.UpdatedAt = time.Unix(updatedAt, 0)
		if songJSON.Valid && songJSON.String != "" {
			var info song.Info
			if err := json.Unmarshal([]byte(songJSON.String), &info); err != nil {
				return nil, err
			}
			r.Song = &info
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func saveContexts(db *sql.DB, records []ContextRecord) error {
	return dbutil.WithTx(context.Background(), db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM context_entries`); err != nil {
			return err
		}

		stmt, err := tx.Prepare(`
			INSERT INTO context_entries (context_id, mode, connector_id, url, song_json, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, r := range records {
			var songJSON sql.NullString
			if r.Song != nil {
				data, err := json.Marshal(r.Song)
				if err != nil {
					return err
				}
				songJSON = sql.NullString{String: string(data), Valid: true}
			}
			updatedAt := r.UpdatedAt
			if updatedAt.IsZero() {
				updatedAt = time.Now()
			}
			if _, err := stmt.Exec(r.ContextID, r.Mode, r.ConnectorID, r.URL, songJSON, updatedAt.Unix()); err != nil {
				return err
			}
		}
		return nil
	})
}
