package mocks

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/helpdesk-labs/concierge-core/internal/core/domain"
)

// MockVectorIndex is an in-memory mock implementation of VectorIndex.
// Search ranks by cosine distance over the stored embeddings.
type MockVectorIndex struct {
	mu      sync.RWMutex
	entries []domain.IndexEntry

	// HealthErr is returned by HealthCheck when set
	HealthErr error
	// SearchErr is returned by Search when set
	SearchErr error
	// AddErr is returned by Add when set
	AddErr error
}

// NewMockVectorIndex creates an empty MockVectorIndex
func NewMockVectorIndex() *MockVectorIndex {
	return &MockVectorIndex{}
}

func (m *MockVectorIndex) Add(ctx context.Context, entries []domain.IndexEntry) error {
	if m.AddErr != nil {
		return m.AddErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entries...)
	return nil
}

func (m *MockVectorIndex) Search(ctx context.Context, embedding []float32, k int) ([]domain.RetrievedResult, error) {
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]domain.RetrievedResult, 0, len(m.entries))
	for _, entry := range m.entries {
		results = append(results, domain.RetrievedResult{
			Chunk:    entry.Chunk,
			Distance: cosineDistance(embedding, entry.Embedding),
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (m *MockVectorIndex) DeleteWhere(ctx context.Context, filter domain.Filter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.entries[:0]
	deleted := 0
	for _, entry := range m.entries {
		if filter.Matches(entry.Chunk.Metadata) {
			deleted++
			continue
		}
		kept = append(kept, entry)
	}
	m.entries = kept
	return deleted, nil
}

func (m *MockVectorIndex) Replace(ctx context.Context, filter domain.Filter, entries []domain.IndexEntry) (int, error) {
	if m.AddErr != nil {
		// Atomic swap failed; stored entries stay untouched
		return 0, m.AddErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.entries[:0]
	deleted := 0
	for _, entry := range m.entries {
		if filter.Matches(entry.Chunk.Metadata) {
			deleted++
			continue
		}
		kept = append(kept, entry)
	}
	m.entries = append(kept, entries...)
	return deleted, nil
}

func (m *MockVectorIndex) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

func (m *MockVectorIndex) CountByType(ctx context.Context) (map[string]map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[string]map[string]int)
	for _, entry := range m.entries {
		meta := entry.Chunk.Metadata
		if counts[meta.Category] == nil {
			counts[meta.Category] = make(map[string]int)
		}
		counts[meta.Category][meta.Language]++
	}
	return counts, nil
}

func (m *MockVectorIndex) ListIDs(ctx context.Context, filter domain.Filter) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	var ids []string
	for _, entry := range m.entries {
		meta := entry.Chunk.Metadata
		if !filter.Matches(meta) || seen[meta.UniqueID] {
			continue
		}
		seen[meta.UniqueID] = true
		ids = append(ids, meta.UniqueID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MockVectorIndex) HealthCheck(ctx context.Context) error {
	return m.HealthErr
}

// Entries returns a copy of the stored entries for assertions.
func (m *MockVectorIndex) Entries() []domain.IndexEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.IndexEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
