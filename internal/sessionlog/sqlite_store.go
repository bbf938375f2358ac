package sessionlog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	memErrors "github.com/mnemo-oss/mnemo/internal/errors"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists the session log in a SQLite database. The composite
// primary key makes Append naturally idempotent.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the SQLite database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session log database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate session log database: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS session_log (
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		ended_at DATETIME NOT NULL,
		profile_version_after INTEGER NOT NULL DEFAULT 0,
		flagged INTEGER NOT NULL DEFAULT 0,
		data JSON NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_id, session_id)
	);

	CREATE INDEX IF NOT EXISTS idx_session_log_recent ON session_log(user_id, ended_at);
	CREATE INDEX IF NOT EXISTS idx_session_log_flagged ON session_log(user_id, flagged);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append adds a record, returning the existing one when the session was
// already logged.
func (s *SQLiteStore) Append(record SessionRecord) (*SessionRecord, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session record: %w", err)
	}

	flagged := 0
	if record.NeedsReconciliation {
		flagged = 1
	}

	res, err := s.db.Exec(`
		INSERT OR IGNORE INTO session_log
			(user_id, session_id, started_at, ended_at, profile_version_after, flagged, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, record.UserID, record.SessionID, record.StartedAt, record.EndedAt,
		record.ProfileVersionAfter, flagged, data)
	if err != nil {
		return nil, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// Already logged: return the original entry, never overwrite it.
		return s.Get(record.UserID, record.SessionID)
	}
	return &record, nil
}

// Get returns the record for one session.
func (s *SQLiteStore) Get(userID, sessionID string) (*SessionRecord, error) {
	var data []byte
	err := s.db.QueryRow(`
		SELECT data FROM session_log WHERE user_id = ? AND session_id = ?
	`, userID, sessionID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, memErrors.New(memErrors.CodeNotFound,
			fmt.Sprintf("no session record %s for user %s", sessionID, userID))
	}
	if err != nil {
		return nil, err
	}

	var record SessionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session record: %w", err)
	}
	return &record, nil
}

// ReadRecent returns up to limit records, most recent first.
func (s *SQLiteStore) ReadRecent(userID string, limit int) ([]SessionRecord, error) {
	rows, err := s.db.Query(`
		SELECT data FROM session_log
		WHERE user_id = ?
		ORDER BY ended_at DESC, rowid DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}

// ReadAll returns a cursor over the full history in chronological order.
func (s *SQLiteStore) ReadAll(userID string) (Cursor, error) {
	rows, err := s.db.Query(`
		SELECT data FROM session_log
		WHERE user_id = ?
		ORDER BY ended_at ASC, rowid ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	return &sqliteCursor{rows: rows}, nil
}

// ListFlagged returns records awaiting reconciliation, oldest first.
func (s *SQLiteStore) ListFlagged(userID string) ([]SessionRecord, error) {
	rows, err := s.db.Query(`
		SELECT data FROM session_log
		WHERE user_id = ? AND flagged = 1
		ORDER BY ended_at ASC, rowid ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanRecords(rows *sql.Rows) ([]SessionRecord, error) {
	var records []SessionRecord
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var record SessionRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// sqliteCursor streams rows without loading the full history.
type sqliteCursor struct {
	rows    *sql.Rows
	current *SessionRecord
	err     error
}

func (c *sqliteCursor) Next() bool {
	if c.err != nil {
		return false
	}
	if !c.rows.Next() {
		c.err = c.rows.Err()
		return false
	}

	var data []byte
	if err := c.rows.Scan(&data); err != nil {
		c.err = err
		return false
	}
	var record SessionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		c.err = fmt.Errorf("failed to unmarshal session record: %w", err)
		return false
	}
	c.current = &record
	return true
}

func (c *sqliteCursor) Record() *SessionRecord {
	return c.current
}

func (c *sqliteCursor) Err() error {
	return c.err
}

func (c *sqliteCursor) Close() error {
	return c.rows.Close()
}
