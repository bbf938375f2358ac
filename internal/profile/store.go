package profile

// Store persists user profiles with optimistic concurrency control.
//
// All mutation goes through CompareAndSet keyed on the profile version, so
// no update is ever lost to a racing writer. Reads always observe the latest
// committed version; there is no torn read.
type Store interface {
	// Get returns the latest committed profile for the user.
	// Returns a NOT_FOUND error if the user has no profile yet.
	Get(userID string) (*Profile, error)

	// CompareAndSet commits p as the next version iff the stored version
	// still equals expectedVersion. expectedVersion 0 creates the profile.
	// Returns the committed profile (version = expectedVersion + 1), a
	// VERSION_CONFLICT error if another writer got there first, or a
	// NOT_FOUND error if expectedVersion > 0 and the user was deleted.
	CompareAndSet(userID string, expectedVersion int64, p *Profile) (*Profile, error)

	// Delete removes the user's profile. Deleting a missing profile is a no-op.
	Delete(userID string) error

	// Close releases any resources held by the store.
	Close() error
}
