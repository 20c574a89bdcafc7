package runtime

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/helpdesk-labs/concierge-core/internal/core/ports/driven"
)

// OpenIndexFunc constructs (or loads) the vector index handle.
// For an in-process index this reads the persisted snapshot; for an
// external backend it opens the client and verifies connectivity.
type OpenIndexFunc func(ctx context.Context) (driven.VectorIndex, error)

// IndexManager owns the process-wide vector index handle.
// The handle is lazily constructed on first access; concurrent first
// requests collapse into a single initialization. Once ready, the handle
// is shared read-only across queries until a new one is published.
type IndexManager struct {
	open OpenIndexFunc

	group singleflight.Group

	mu    sync.RWMutex
	index driven.VectorIndex
}

// NewIndexManager creates a manager that opens the index via open on
// first access.
func NewIndexManager(open OpenIndexFunc) *IndexManager {
	return &IndexManager{open: open}
}

// GetOrInit returns the shared index handle, initializing it exactly once
// per process lifetime. Failed initialization is not cached; the next
// caller retries.
func (m *IndexManager) GetOrInit(ctx context.Context) (driven.VectorIndex, error) {
	m.mu.RLock()
	idx := m.index
	m.mu.RUnlock()
	if idx != nil {
		return idx, nil
	}

	result, err, _ := m.group.Do("init", func() (interface{}, error) {
		// Re-check under the flight: another caller may have published
		m.mu.RLock()
		existing := m.index
		m.mu.RUnlock()
		if existing != nil {
			return existing, nil
		}

		opened, err := m.open(ctx)
		if err != nil {
			return nil, fmt.Errorf("open index: %w", err)
		}

		m.mu.Lock()
		m.index = opened
		m.mu.Unlock()
		return opened, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(driven.VectorIndex), nil
}

// Publish atomically swaps in a new index handle. Readers holding the old
// handle finish against it; new readers get the new one.
func (m *IndexManager) Publish(index driven.VectorIndex) {
	m.mu.Lock()
	m.index = index
	m.mu.Unlock()
}

// Current returns the handle without triggering initialization (may be nil).
func (m *IndexManager) Current() driven.VectorIndex {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.index
}
