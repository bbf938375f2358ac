package sessionlog

import (
	"fmt"
	"sync"

	memErrors "github.com/mnemo-oss/mnemo/internal/errors"
)

// MemoryStore implements an in-memory session log. Used by tests and as the
// default driver when no storage path is configured.
type MemoryStore struct {
	mu sync.RWMutex
	// records preserves append order per user; the index makes Append
	// idempotency checks O(1).
	records map[string][]SessionRecord
	index   map[string]map[string]int
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string][]SessionRecord),
		index:   make(map[string]map[string]int),
	}
}

// Append adds a record, returning the existing one when the session was
// already logged.
func (s *MemoryStore) Append(record SessionRecord) (*SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx, ok := s.index[record.UserID]; ok {
		if i, dup := idx[record.SessionID]; dup {
			existing := s.records[record.UserID][i]
			return &existing, nil
		}
	}

	if s.index[record.UserID] == nil {
		s.index[record.UserID] = make(map[string]int)
	}
	s.index[record.UserID][record.SessionID] = len(s.records[record.UserID])
	s.records[record.UserID] = append(s.records[record.UserID], record)
	return &record, nil
}

// Get returns the record for one session.
func (s *MemoryStore) Get(userID, sessionID string) (*SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if idx, ok := s.index[userID]; ok {
		if i, found := idx[sessionID]; found {
			record := s.records[userID][i]
			return &record, nil
		}
	}
	return nil, memErrors.New(memErrors.CodeNotFound,
		fmt.Sprintf("no session record %s for user %s", sessionID, userID))
}

// ReadRecent returns up to limit records, most recent first.
func (s *MemoryStore) ReadRecent(userID string, limit int) ([]SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.records[userID]
	n := len(all)
	if limit > n {
		limit = n
	}

	out := make([]SessionRecord, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

// ReadAll returns a cursor over the full history in chronological order.
func (s *MemoryStore) ReadAll(userID string) (Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make([]SessionRecord, len(s.records[userID]))
	copy(snapshot, s.records[userID])
	return &sliceCursor{records: snapshot, pos: -1}, nil
}

// ListFlagged returns records awaiting reconciliation, oldest first.
func (s *MemoryStore) ListFlagged(userID string) ([]SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []SessionRecord
	for _, record := range s.records[userID] {
		if record.NeedsReconciliation {
			out = append(out, record)
		}
	}
	return out, nil
}

// Close closes the store (no-op for memory).
func (s *MemoryStore) Close() error {
	return nil
}

// sliceCursor iterates a snapshot of a user's history.
type sliceCursor struct {
	records []SessionRecord
	pos     int
}

func (c *sliceCursor) Next() bool {
	if c.pos+1 >= len(c.records) {
		return false
	}
	c.pos++
	return true
}

func (c *sliceCursor) Record() *SessionRecord {
	return &c.records[c.pos]
}

func (c *sliceCursor) Err() error { return nil }

func (c *sliceCursor) Close() error { return nil }
