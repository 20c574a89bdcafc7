package driving

import (
	"context"

	"github.com/helpdesk-labs/concierge-core/internal/core/domain"
)

// IngestService populates and maintains the vector index.
type IngestService interface {
	// Populate re-ingests all catalog files inside the filter scope,
	// replacing existing index entries for that scope. On failure the
	// prior entries for the scope are preserved.
	Populate(ctx context.Context, filter domain.Filter) (*domain.IngestResult, error)

	// RefreshIfChanged re-populates only when a tracked source file's
	// fingerprint differs from the persisted store (or no store exists).
	// Returns (nil, nil) when nothing changed.
	RefreshIfChanged(ctx context.Context) (*domain.IngestResult, error)

	// DeleteWhere removes index entries by scope; empty filter clears all.
	DeleteWhere(ctx context.Context, filter domain.Filter) (int, error)

	// Count returns the total indexed document count
	Count(ctx context.Context) (int, error)

	// CountByType returns counts keyed by category then language
	CountByType(ctx context.Context) (map[string]map[string]int, error)
}
