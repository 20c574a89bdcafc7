// Package memoryindex provides an in-process vector index with optional
// JSON snapshot persistence. It is the default backend for single
// instance deployments and for tests.
package memoryindex

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/helpdesk-labs/concierge-core/internal/core/domain"
	"github.com/helpdesk-labs/concierge-core/internal/core/ports/driven"
)

// Ensure Index implements VectorIndex
var _ driven.VectorIndex = (*Index)(nil)

// Index is a brute-force cosine-distance vector index.
// When snapshotPath is non-empty, every mutation is persisted to disk
// so entries survive process restarts.
type Index struct {
	mu           sync.RWMutex
	entries      []domain.IndexEntry
	snapshotPath string
}

// New creates an index. A non-empty snapshotPath enables persistence;
// an existing snapshot at that path is loaded.
func New(snapshotPath string) (*Index, error) {
	idx := &Index{snapshotPath: snapshotPath}
	if snapshotPath != "" {
		if err := idx.load(); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

func (i *Index) load() error {
	data, err := os.ReadFile(i.snapshotPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	if err := json.Unmarshal(data, &i.entries); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	return nil
}

// snapshot writes all entries to disk via a temp file and rename,
// so a crash mid-write never leaves a truncated snapshot.
// Caller must hold the write lock.
func (i *Index) snapshot() error {
	if i.snapshotPath == "" {
		return nil
	}

	data, err := json.Marshal(i.entries)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(i.snapshotPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "index-*.json")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), i.snapshotPath); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Add inserts entries into the index
func (i *Index) Add(ctx context.Context, entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	i.entries = append(i.entries, entries...)
	return i.snapshot()
}

// Search returns up to k nearest entries ordered by ascending distance
func (i *Index) Search(ctx context.Context, embedding []float32, k int) ([]domain.RetrievedResult, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("%w: empty query embedding", domain.ErrInvalidInput)
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	results := make([]domain.RetrievedResult, 0, len(i.entries))
	for _, entry := range i.entries {
		if len(entry.Embedding) != len(embedding) {
			continue
		}
		results = append(results, domain.RetrievedResult{
			Chunk:    entry.Chunk,
			Distance: cosineDistance(embedding, entry.Embedding),
		})
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Distance < results[b].Distance
	})

	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// DeleteWhere removes all entries matching the filter
func (i *Index) DeleteWhere(ctx context.Context, filter domain.Filter) (int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	kept := i.entries[:0]
	removed := 0
	for _, entry := range i.entries {
		if filter.Matches(entry.Chunk.Metadata) {
			removed++
			continue
		}
		kept = append(kept, entry)
	}
	i.entries = kept

	if removed == 0 {
		return 0, nil
	}
	return removed, i.snapshot()
}

// Replace swaps the filter scope's contents for the given entries.
// The swap happens under the write lock; a failed snapshot write rolls
// the in-memory state back to the prior contents.
func (i *Index) Replace(ctx context.Context, filter domain.Filter, entries []domain.IndexEntry) (int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	prior := i.entries
	next := make([]domain.IndexEntry, 0, len(prior)+len(entries))
	removed := 0
	for _, entry := range prior {
		if filter.Matches(entry.Chunk.Metadata) {
			removed++
			continue
		}
		next = append(next, entry)
	}
	next = append(next, entries...)

	i.entries = next
	if err := i.snapshot(); err != nil {
		i.entries = prior
		return 0, err
	}
	return removed, nil
}

// Count returns the total number of entries
func (i *Index) Count(ctx context.Context) (int, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.entries), nil
}

// CountByType returns entry counts keyed by category then language
func (i *Index) CountByType(ctx context.Context) (map[string]map[string]int, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	counts := make(map[string]map[string]int)
	for _, entry := range i.entries {
		meta := entry.Chunk.Metadata
		if counts[meta.Category] == nil {
			counts[meta.Category] = make(map[string]int)
		}
		counts[meta.Category][meta.Language]++
	}
	return counts, nil
}

// ListIDs returns the distinct source unique IDs within the filter scope
func (i *Index) ListIDs(ctx context.Context, filter domain.Filter) ([]string, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, entry := range i.entries {
		meta := entry.Chunk.Metadata
		if !filter.Matches(meta) {
			continue
		}
		if _, ok := seen[meta.UniqueID]; ok {
			continue
		}
		seen[meta.UniqueID] = struct{}{}
		ids = append(ids, meta.UniqueID)
	}
	return ids, nil
}

// HealthCheck verifies the index backend is reachable
func (i *Index) HealthCheck(ctx context.Context) error {
	return nil
}

// cosineDistance is 1 - cosine similarity. Orthogonal vectors are at
// distance 1, identical direction at 0.
func cosineDistance(a, b []float32) float64 {
	var dot, normA, normB float64
	for n := range a {
		dot += float64(a[n]) * float64(b[n])
		normA += float64(a[n]) * float64(a[n])
		normB += float64(b[n]) * float64(b[n])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
