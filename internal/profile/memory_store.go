package profile

import (
	"fmt"
	"sync"
	"time"

	memErrors "github.com/mnemo-oss/mnemo/internal/errors"
)

// MemoryStore implements an in-memory profile store. Used by tests and as
// the default driver when no storage path is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[string]*Profile),
	}
}

// Get returns the latest committed profile for the user.
func (s *MemoryStore) Get(userID string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, memErrors.New(memErrors.CodeNotFound, fmt.Sprintf("no profile for user %s", userID))
	}
	return p.Clone(), nil
}

// CompareAndSet commits p iff the stored version still equals expectedVersion.
func (s *MemoryStore) CompareAndSet(userID string, expectedVersion int64, p *Profile) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.profiles[userID]
	if !ok {
		if expectedVersion != 0 {
			return nil, memErrors.New(memErrors.CodeNotFound,
				fmt.Sprintf("no profile for user %s", userID))
		}
	} else if current.Version != expectedVersion {
		return nil, memErrors.New(memErrors.CodeVersionConflict,
			fmt.Sprintf("profile for user %s is at version %d, expected %d", userID, current.Version, expectedVersion))
	}

	commit := p.Clone()
	commit.UserID = userID
	commit.Version = expectedVersion + 1
	commit.UpdatedAt = time.Now().UTC()

	s.profiles[userID] = commit
	return commit.Clone(), nil
}

// Delete removes the user's profile. Deleting a missing profile is a no-op.
func (s *MemoryStore) Delete(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, userID)
	return nil
}

// Close closes the store (no-op for memory).
func (s *MemoryStore) Close() error {
	return nil
}
