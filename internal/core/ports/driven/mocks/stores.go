package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/helpdesk-labs/concierge-core/internal/core/domain"
)

// MockFingerprintStore is an in-memory mock implementation of FingerprintStore
type MockFingerprintStore struct {
	mu           sync.Mutex
	fingerprints []domain.Fingerprint
	saved        bool

	// SaveCalls counts Save invocations
	SaveCalls int
}

// NewMockFingerprintStore creates an empty MockFingerprintStore
func NewMockFingerprintStore() *MockFingerprintStore {
	return &MockFingerprintStore{}
}

func (m *MockFingerprintStore) Load(ctx context.Context) ([]domain.Fingerprint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.saved {
		return nil, domain.ErrNotFound
	}
	out := make([]domain.Fingerprint, len(m.fingerprints))
	copy(out, m.fingerprints)
	return out, nil
}

func (m *MockFingerprintStore) Save(ctx context.Context, fingerprints []domain.Fingerprint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fingerprints = make([]domain.Fingerprint, len(fingerprints))
	copy(m.fingerprints, fingerprints)
	m.saved = true
	m.SaveCalls++
	return nil
}

// MockCatalogLoader is a mock implementation of CatalogLoader returning
// canned documents per file path.
type MockCatalogLoader struct {
	// Documents maps file path to the documents it yields
	Documents map[string][]domain.Document
	// Errors maps file path to a load error
	Errors map[string]error
}

// NewMockCatalogLoader creates an empty MockCatalogLoader
func NewMockCatalogLoader() *MockCatalogLoader {
	return &MockCatalogLoader{
		Documents: make(map[string][]domain.Document),
		Errors:    make(map[string]error),
	}
}

func (m *MockCatalogLoader) Load(ctx context.Context, file domain.SourceFile) ([]domain.Document, error) {
	if err, ok := m.Errors[file.Path]; ok {
		return nil, err
	}
	return m.Documents[file.Path], nil
}

// MockLock is an in-memory mock implementation of DistributedLock
type MockLock struct {
	mu   sync.Mutex
	held map[string]bool

	// AcquireErr is returned by Acquire when set
	AcquireErr error
}

// NewMockLock creates a new MockLock
func NewMockLock() *MockLock {
	return &MockLock{held: make(map[string]bool)}
}

func (m *MockLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	if m.AcquireErr != nil {
		return false, m.AcquireErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[name] {
		return false, nil
	}
	m.held[name] = true
	return true, nil
}

func (m *MockLock) Release(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, name)
	return nil
}
