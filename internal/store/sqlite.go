package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS content (
	uid     TEXT    NOT NULL,
	vid     INTEGER NOT NULL,
	path    TEXT    NOT NULL DEFAULT '',
	created INTEGER NOT NULL,
	PRIMARY KEY (uid, vid)
);
CREATE INDEX IF NOT EXISTS content_uid ON content(uid);
`

// SQLiteStore is a content registry on a single SQLite file. It records
// every (uid, vid) the caller stores and answers tip lookups with the
// highest recorded version.
type SQLiteStore struct {
	db   *sql.DB
	caps []string
}

// OpenSQLite opens (or creates) the registry database at path with the
// given capability flags.
func OpenSQLite(path string, capabilities []string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create registry dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open registry db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply registry schema: %w", err)
	}
	return &SQLiteStore{db: db, caps: capabilities}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Capabilities implements BackingStore.
func (s *SQLiteStore) Capabilities() []string {
	return s.caps
}

// Record registers a stored version of uid. path may be empty when the
// store does not track file locations.
func (s *SQLiteStore) Record(uid string, vid int64, path string) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO content (uid, vid, path, created) VALUES (?, ?, ?, ?)`,
		uid, vid, path, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("record %s:%d: %w", uid, vid, err)
	}
	return nil
}

// Tip implements BackingStore.
func (s *SQLiteStore) Tip(uid string) (int64, error) {
	var vid sql.NullInt64
	err := s.db.QueryRow(`SELECT MAX(vid) FROM content WHERE uid = ?`, uid).Scan(&vid)
	if err != nil {
		return 0, fmt.Errorf("tip %s: %w", uid, err)
	}
	if !vid.Valid {
		return 0, fmt.Errorf("tip %s: %w", uid, ErrUnknownUID)
	}
	return vid.Int64, nil
}

// UIDByPath returns the uid most recently recorded for a file path.
func (s *SQLiteStore) UIDByPath(path string) (string, error) {
	var uid string
	err := s.db.QueryRow(
		`SELECT uid FROM content WHERE path = ? ORDER BY created DESC, vid DESC LIMIT 1`,
		path,
	).Scan(&uid)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("path %s: %w", path, ErrUnknownUID)
	}
	if err != nil {
		return "", fmt.Errorf("lookup path %s: %w", path, err)
	}
	return uid, nil
}

// Forget removes every recorded version of uid.
func (s *SQLiteStore) Forget(uid string) error {
	if _, err := s.db.Exec(`DELETE FROM content WHERE uid = ?`, uid); err != nil {
		return fmt.Errorf("forget %s: %w", uid, err)
	}
	return nil
}

// Versions returns the recorded version identifiers for uid, newest first.
func (s *SQLiteStore) Versions(uid string) ([]int64, error) {
	rows, err := s.db.Query(`SELECT vid FROM content WHERE uid = ? ORDER BY vid DESC`, uid)
	if err != nil {
		return nil, fmt.Errorf("versions %s: %w", uid, err)
	}
	defer func() { _ = rows.Close() }()

	var vids []int64
	for rows.Next() {
		var vid int64
		if err := rows.Scan(&vid); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		vids = append(vids, vid)
	}
	return vids, rows.Err()
}

var _ BackingStore = (*SQLiteStore)(nil)
