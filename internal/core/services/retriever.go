package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/helpdesk-labs/concierge-core/internal/core/domain"
	"github.com/helpdesk-labs/concierge-core/internal/core/ports/driving"
	"github.com/helpdesk-labs/concierge-core/internal/runtime"
)

// Ensure retrieverService implements Retriever
var _ driving.Retriever = (*retrieverService)(nil)

// DefaultTopK is how many chunks a query retrieves when unspecified.
const DefaultTopK = 6

// retrieverService embeds the query and runs a k-NN search against the
// shared index handle. Duplicate chunks of the same source document may
// appear; the composer deduplicates.
type retrieverService struct {
	index    *runtime.IndexManager
	services *runtime.Services
	logger   *slog.Logger
}

// NewRetriever creates a new Retriever.
func NewRetriever(index *runtime.IndexManager, services *runtime.Services, logger *slog.Logger) driving.Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &retrieverService{
		index:    index,
		services: services,
		logger:   logger,
	}
}

// Query returns up to k chunks ordered by ascending distance.
func (s *retrieverService) Query(ctx context.Context, text string, k int) ([]domain.RetrievedResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if k <= 0 {
		k = DefaultTopK
	}

	embedder := s.services.EmbeddingService()
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedding service not configured", domain.ErrServiceUnavailable)
	}

	embedding, err := embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	// Lazy load-or-populate of the shared handle, once per process
	index, err := s.index.GetOrInit(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}

	results, err := index.Search(ctx, embedding, k)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}

	s.logger.Debug("retrieved chunks", "query_len", len(text), "k", k, "results", len(results))
	return results, nil
}
