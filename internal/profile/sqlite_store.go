package profile

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	memErrors "github.com/mnemo-oss/mnemo/internal/errors"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists profiles in a SQLite database. The version check and
// the write happen in a single statement, so a crash leaves either the
// pre-merge or the fully merged profile visible, never a partial one.
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
		return nil, fmt.Errorf("failed to open profile database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate profile database: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS profiles (
		user_id TEXT PRIMARY KEY,
		version INTEGER NOT NULL,
		data JSON NOT NULL,
		updated_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_profiles_updated_at ON profiles(updated_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get returns the latest committed profile for the user.
func (s *SQLiteStore) Get(userID string) (*Profile, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM profiles WHERE user_id = ?", userID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, memErrors.New(memErrors.CodeNotFound, fmt.Sprintf("no profile for user %s", userID))
	}
	if err != nil {
		return nil, err
	}

	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	return &p, nil
}

// CompareAndSet commits p as version expectedVersion+1 iff the stored version
// still equals expectedVersion.
func (s *SQLiteStore) CompareAndSet(userID string, expectedVersion int64, p *Profile) (*Profile, error) {
	commit := p.Clone()
	commit.UserID = userID
	commit.Version = expectedVersion + 1
	commit.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(commit)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal profile: %w", err)
	}

	if expectedVersion == 0 {
		// Create path. INSERT OR IGNORE so a racing creator surfaces as a
		// version conflict rather than a driver-specific constraint error.
		res, err := s.db.Exec(`
			INSERT OR IGNORE INTO profiles (user_id, version, data, updated_at)
			VALUES (?, ?, ?, ?)
		`, userID, commit.Version, data, commit.UpdatedAt)
		if err != nil {
			return nil, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, memErrors.New(memErrors.CodeVersionConflict,
				fmt.Sprintf("profile for user %s already exists", userID))
		}
		return commit, nil
	}

	res, err := s.db.Exec(`
		UPDATE profiles SET version = ?, data = ?, updated_at = ?
		WHERE user_id = ? AND version = ?
	`, commit.Version, data, commit.UpdatedAt, userID, expectedVersion)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// Distinguish a racing writer from a deleted user.
		var current int64
		err := s.db.QueryRow("SELECT version FROM profiles WHERE user_id = ?", userID).Scan(&current)
		if err == sql.ErrNoRows {
			return nil, memErrors.New(memErrors.CodeNotFound,
				fmt.Sprintf("no profile for user %s", userID))
		}
		if err != nil {
			return nil, err
		}
		return nil, memErrors.New(memErrors.CodeVersionConflict,
			fmt.Sprintf("profile for user %s is at version %d, expected %d", userID, current, expectedVersion))
	}

	return commit, nil
}

// Delete removes the user's profile. Deleting a missing profile is a no-op.
func (s *SQLiteStore) Delete(userID string) error {
	_, err := s.db.Exec("DELETE FROM profiles WHERE user_id = ?", userID)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
