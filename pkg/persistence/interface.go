package persistence

// IAttemptPersistence journals signing attempts so they can be audited after
// the fact. Records never contain key material or device signatures.
// All implementations must be thread-safe.
type IAttemptPersistence interface {
	// SaveAttempt stores a record under its ID, overwriting any previous
	// version of the same attempt.
	SaveAttempt(record *AttemptRecord) error

	// LoadAttempt returns nil if the attempt doesn't exist, error only on
	// storage failure.
	LoadAttempt(id string) (*AttemptRecord, error)

	// ListAttempts returns all records sorted by start time (ascending).
	// Returns empty slice if nothing was journaled.
	ListAttempts() ([]*AttemptRecord, error)

	// DeleteAttempt is idempotent - returns nil if the attempt doesn't exist.
	DeleteAttempt(id string) error

	// Close is idempotent. After Close(), all other operations return errors.
	Close() error

	// HealthCheck returns nil if the journal is usable
	HealthCheck() error
}
