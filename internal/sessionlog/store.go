package sessionlog

// Store is the append-only chronological session log.
type Store interface {
	// Append adds a record. It is idempotent on (userID, sessionID): a
	// second append returns the existing record unchanged instead of
	// duplicating the entry, which lets consolidation retry after a crash.
	Append(record SessionRecord) (*SessionRecord, error)

	// Get returns the record for one session, or a NOT_FOUND error.
	Get(userID, sessionID string) (*SessionRecord, error)

	// ReadRecent returns up to limit records, most recent first.
	ReadRecent(userID string, limit int) ([]SessionRecord, error)

	// ReadAll returns a cursor over the full history in chronological
	// order, for audits and export. The caller must Close it.
	ReadAll(userID string) (Cursor, error)

	// ListFlagged returns records awaiting reconciliation, oldest first.
	ListFlagged(userID string) ([]SessionRecord, error)

	// Close releases any resources held by the store.
	Close() error
}

// Cursor iterates session records without materializing the full history.
type Cursor interface {
	// Next advances to the next record, returning false at the end.
	Next() bool
	// Record returns the current record. Valid only after Next returns true.
	Record() *SessionRecord
	// Err returns the first error encountered during iteration.
	Err() error
	// Close releases the cursor.
	Close() error
}
