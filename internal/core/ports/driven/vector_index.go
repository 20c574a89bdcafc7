package driven

import (
	"context"

	"github.com/helpdesk-labs/concierge-core/internal/core/domain"
)

// VectorIndex is the protocol against the vector index backend.
// The backend itself (in-process, Chroma, pgvector) is an external
// collaborator; implementations live under adapters/driven.
type VectorIndex interface {
	// Add inserts entries into the index
	Add(ctx context.Context, entries []domain.IndexEntry) error

	// Search returns up to k nearest entries ordered by ascending distance
	Search(ctx context.Context, embedding []float32, k int) ([]domain.RetrievedResult, error)

	// DeleteWhere removes all entries matching the filter and returns the
	// number of entries removed. An empty filter clears the index.
	DeleteWhere(ctx context.Context, filter domain.Filter) (int, error)

	// Replace swaps the filter scope's contents for the given entries as
	// one operation and returns the number of entries removed. On error
	// the prior scope contents are preserved.
	Replace(ctx context.Context, filter domain.Filter, entries []domain.IndexEntry) (int, error)

	// Count returns the total number of entries
	Count(ctx context.Context) (int, error)

	// CountByType returns entry counts keyed by category then language
	CountByType(ctx context.Context) (map[string]map[string]int, error)

	// ListIDs returns the distinct source unique IDs within the filter scope
	ListIDs(ctx context.Context, filter domain.Filter) ([]string, error)

	// HealthCheck verifies the index backend is reachable
	HealthCheck(ctx context.Context) error
}
