package driven

import (
	"context"

	"github.com/helpdesk-labs/concierge-core/internal/core/domain"
)

// CatalogLoader extracts documents from one catalog source file.
type CatalogLoader interface {
	// Load reads and flattens all records of a source file.
	// A missing file yields (nil, nil): a recoverable condition, the
	// caller proceeds with whichever other sources exist.
	// Malformed content yields an error wrapping domain.ErrParse.
	Load(ctx context.Context, file domain.SourceFile) ([]domain.Document, error)
}

// Splitter breaks documents into overlapping chunks for embedding.
// Splitting is deterministic and never crosses document boundaries.
type Splitter interface {
	Split(documents []domain.Document) []domain.Chunk
}
