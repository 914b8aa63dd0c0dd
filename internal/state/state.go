package state

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver
)

const (
	appName      = "scrobbled"
	dbFileName   = "scrobbled.db"
	saveDebounce = 500 * time.Millisecond
)

type Manager struct {
	db     *sql.DB
	logger *zap.Logger

	// contexts is authoritative once loaded; the database trails it by
	// at most one debounce period.
	saveMu    sync.Mutex
	saveTimer *time.Timer
	contexts  []ContextRecord
	loaded    bool
	version   uint64

	// writeMu orders flushes so an older list never lands after a newer one.
	writeMu sync.Mutex
	written uint64
}

// Open opens the database at path, or at the default data location when
// path is empty.
func Open(path string) (*Manager, error) {
	if path == "" {
		var err error
		path, err = getDBPath()
		if err != nil {
			return nil, err
		}
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Manager{db: db, logger: zap.NewNop()}, nil
}

// SetLogger sets the logger used for background write failures.
func (m *Manager) SetLogger(logger *zap.Logger) {
	if logger != nil {
		m.logger = logger.Named("state")
	}
}

func (m *Manager) Close() error {
	m.saveMu.Lock()
	if m.saveTimer != nil {
		m.saveTimer.Stop()
	}
	m.saveMu.Unlock()

	// Flush pending state
	err := m.flushContexts()

	if cerr := m.db.Close(); cerr != nil {
		return cerr
	}
	return err
}

func (m *Manager) DB() *sql.DB {
	return m.db
}

func getDBPath() (string, error) {
	return xdg.DataFile(filepath.Join(appName, dbFileName))
}
