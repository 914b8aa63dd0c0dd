package state

import (
	"database/sql"
)

const currentSchemaVersion = 1

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);

		CREATE TABLE IF NOT EXISTS saved_edits (
			fingerprint TEXT PRIMARY KEY,
			artist TEXT,
			track TEXT,
			album TEXT,
			album_artist TEXT,
			updated_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS service_sessions (
			service_id TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			session_key TEXT NOT NULL,
			linked_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS pending_scrobbles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			service_id TEXT NOT NULL,
			artist TEXT NOT NULL,
			track TEXT NOT NULL,
			album TEXT,
			album_artist TEXT,
			duration_seconds INTEGER NOT NULL DEFAULT 0,
			timestamp INTEGER NOT NULL,
			mb_recording_id TEXT,
			origin_url TEXT,
			connector_label TEXT,
			attempts INTEGER NOT NULL DEFAULT 0,
			last_error TEXT,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_pending_scrobbles_service ON pending_scrobbles(service_id, created_at);

		CREATE TABLE IF NOT EXISTS context_entries (
			context_id TEXT PRIMARY KEY,
			mode TEXT NOT NULL,
			connector_id TEXT,
			url TEXT,
			song_json TEXT,
			updated_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS track_info_cache (
			fingerprint TEXT PRIMARY KEY,
			artist TEXT,
			track TEXT,
			album TEXT,
			album_artist TEXT,
			track_art_url TEXT,
			track_url TEXT,
			recording_mbid TEXT,
			album_mbid TEXT,
			duration_seconds INTEGER,
			fetched_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return err
	}

	// Set initial version if not exists
	_, err = db.Exec(`
		INSERT OR IGNORE INTO schema_version (version) VALUES (?)
	`, currentSchemaVersion)
	return err
}
