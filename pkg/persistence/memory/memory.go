package memory

import (
	"fmt"
	"sync"

	"github.com/walletkit/txsign/pkg/persistence"
)

// MemoryPersistence is an in-memory implementation of IAttemptPersistence.
// All data is lost when the process exits. Records are copied on the way in
// and out to prevent external mutation.
type MemoryPersistence struct {
	mu sync.RWMutex

	attempts map[string]*persistence.AttemptRecord

	closed bool
}

var _ persistence.IAttemptPersistence = (*MemoryPersistence)(nil)

func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{
		attempts: make(map[string]*persistence.AttemptRecord),
	}
}

func (m *MemoryPersistence) SaveAttempt(record *persistence.AttemptRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil AttemptRecord")
	}
	if record.ID == "" {
		return fmt.Errorf("cannot save AttemptRecord without id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	m.attempts[record.ID] = record.Copy()
	return nil
}

func (m *MemoryPersistence) LoadAttempt(id string) (*persistence.AttemptRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	record, exists := m.attempts[id]
	if !exists {
		return nil, nil
	}
	return record.Copy(), nil
}

func (m *MemoryPersistence) ListAttempts() ([]*persistence.AttemptRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	result := make([]*persistence.AttemptRecord, 0, len(m.attempts))
	for _, record := range m.attempts {
		result = append(result, record.Copy())
	}
	persistence.SortAttempts(result)

	return result, nil
}

func (m *MemoryPersistence) DeleteAttempt(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	delete(m.attempts, id)
	return nil
}

// Close is idempotent
func (m *MemoryPersistence) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.attempts = nil
	return nil
}

func (m *MemoryPersistence) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}
	return nil
}
