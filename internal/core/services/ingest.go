package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/helpdesk-labs/concierge-core/internal/core/domain"
	"github.com/helpdesk-labs/concierge-core/internal/core/ports/driven"
	"github.com/helpdesk-labs/concierge-core/internal/core/ports/driving"
	"github.com/helpdesk-labs/concierge-core/internal/runtime"
)

// Ensure ingestService implements IngestService
var _ driving.IngestService = (*ingestService)(nil)

// ingestService coordinates the catalog ingestion pipeline:
// extract -> split -> embed -> reconcile against the vector index.
//
// Re-ingestion is atomic at (category, language) scope granularity: all
// embeddings for a scope are staged first, then swapped in through the
// index's atomic Replace, so neither a provider failure nor a backend
// write failure loses the prior entries.
type ingestService struct {
	root         string
	loader       driven.CatalogLoader
	splitter     driven.Splitter
	index        *runtime.IndexManager
	services     *runtime.Services
	fingerprints driven.FingerprintStore
	logger       *slog.Logger
	embedRetries int
}

// IngestConfig holds dependencies for the ingest service.
type IngestConfig struct {
	DocumentsRoot string
	Loader        driven.CatalogLoader
	Splitter      driven.Splitter
	Index         *runtime.IndexManager
	Services      *runtime.Services
	Fingerprints  driven.FingerprintStore
	Logger        *slog.Logger
	EmbedRetries  int // extra attempts per document on embedding failure (default 1)
}

// NewIngestService creates a new IngestService.
func NewIngestService(cfg IngestConfig) driving.IngestService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retries := cfg.EmbedRetries
	if retries <= 0 {
		retries = 1
	}
	return &ingestService{
		root:         cfg.DocumentsRoot,
		loader:       cfg.Loader,
		splitter:     cfg.Splitter,
		index:        cfg.Index,
		services:     cfg.Services,
		fingerprints: cfg.Fingerprints,
		logger:       logger,
		embedRetries: retries,
	}
}

// Populate re-ingests all catalog files inside the filter scope.
func (s *ingestService) Populate(ctx context.Context, filter domain.Filter) (*domain.IngestResult, error) {
	start := time.Now()

	index, err := s.index.GetOrInit(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}

	embedder := s.services.EmbeddingService()
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedding service not configured", domain.ErrServiceUnavailable)
	}

	files := domain.TrackedFiles(s.root, filter)
	result := &domain.IngestResult{}

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.populateScope(ctx, index, embedder, file, result); err != nil {
			return nil, err
		}
	}

	result.Duration = time.Since(start).Seconds()
	s.logger.Info("populate finished",
		"documents", result.Documents,
		"chunks", result.Chunks,
		"embedded", result.Embedded,
		"failed", result.Failed,
		"deleted", result.Deleted,
		"duration_seconds", result.Duration,
	)
	return result, nil
}

// populateScope ingests one source file and reconciles its index scope.
func (s *ingestService) populateScope(
	ctx context.Context,
	index driven.VectorIndex,
	embedder driven.EmbeddingService,
	file domain.SourceFile,
	result *domain.IngestResult,
) error {
	docs, err := s.loader.Load(ctx, file)
	if err != nil {
		if errors.Is(err, domain.ErrParse) {
			// Fatal for this file only; other sources still ingest
			s.logger.Error("skipping unparseable source", "file", file.Path, "error", err)
			result.Failed++
			return nil
		}
		return err
	}
	if len(docs) == 0 {
		s.logger.Warn("source file missing or empty, skipping", "file", file.Path)
		return nil
	}

	// Stage all entries before touching the index so a mid-run failure
	// leaves the prior scope contents intact.
	var staged []domain.IndexEntry
	failed := 0
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunks := s.splitter.Split([]domain.Document{doc})
		entries, err := s.embedDocument(ctx, embedder, file, chunks)
		if err != nil {
			s.logger.Warn("embedding failed for document",
				"unique_id", doc.Metadata.UniqueID,
				"file", file.Path,
				"error", err,
			)
			failed++
			continue
		}
		staged = append(staged, entries...)
		result.Chunks += len(chunks)
		result.Embedded++

		s.logger.Info("embedding progress",
			"file", file.Path,
			"processed", i+1,
			"total", len(docs),
		)
	}
	result.Documents += len(docs)
	result.Failed += failed

	if len(staged) == 0 {
		// Nothing embedded: keep the prior scope contents. The failure
		// count surfaces in the run summary; other scopes still ingest.
		s.logger.Error("no documents embedded, prior scope entries preserved",
			"file", file.Path,
			"failures", failed,
		)
		return nil
	}

	// Reconcile: compare old vs new uniqueId sets, then swap the scope
	// contents in one operation so a backend failure mid-write never
	// leaves the scope empty.
	scope := file.Filter()
	oldIDs, err := index.ListIDs(ctx, scope)
	if err != nil {
		return fmt.Errorf("list ids for %s/%s: %w", scope.Category, scope.Language, err)
	}
	added, removed := diffIDs(oldIDs, staged)

	deleted, err := index.Replace(ctx, scope, staged)
	if err != nil {
		return fmt.Errorf("reindex scope %s/%s: %w", scope.Category, scope.Language, err)
	}
	result.Deleted += deleted

	s.logger.Info("scope reconciled",
		"category", scope.Category,
		"language", scope.Language,
		"entries", len(staged),
		"stale_deleted", deleted,
		"ids_added", added,
		"ids_removed", removed,
	)
	return nil
}

// embedDocument embeds one document's chunks with bounded retries.
func (s *ingestService) embedDocument(
	ctx context.Context,
	embedder driven.EmbeddingService,
	file domain.SourceFile,
	chunks []domain.Chunk,
) ([]domain.IndexEntry, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	var embeddings [][]float32
	var err error
	for attempt := 0; attempt <= s.embedRetries; attempt++ {
		embeddings, err = embedder.Embed(ctx, texts)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, domain.ErrProviderRejected) {
			// The provider refused the request itself; retrying the
			// identical payload cannot succeed
			break
		}
	}
	if err != nil {
		return nil, err
	}
	if len(embeddings) != len(chunks) {
		return nil, fmt.Errorf("embedding count mismatch: got %d for %d chunks", len(embeddings), len(chunks))
	}

	entries := make([]domain.IndexEntry, len(chunks))
	for i, chunk := range chunks {
		entries[i] = domain.IndexEntry{
			ID: fmt.Sprintf("%s-%s-%s-%d",
				file.Category, file.Language, chunk.Metadata.UniqueID, chunk.Position),
			Chunk:     chunk,
			Embedding: embeddings[i],
		}
	}
	return entries, nil
}

// RefreshIfChanged re-populates only when tracked file fingerprints changed.
func (s *ingestService) RefreshIfChanged(ctx context.Context) (*domain.IngestResult, error) {
	files := domain.TrackedFiles(s.root, domain.Filter{})
	current := make([]domain.Fingerprint, len(files))
	for i, file := range files {
		current[i] = domain.Fingerprint{File: file.Path}
		if info, err := os.Stat(file.Path); err == nil {
			current[i].LastModifiedDate = info.ModTime().UTC().Format(time.RFC3339)
		}
	}

	prior, err := s.fingerprints.Load(ctx)
	changed := false
	switch {
	case errors.Is(err, domain.ErrNotFound):
		changed = true
	case err != nil:
		return nil, fmt.Errorf("load fingerprints: %w", err)
	default:
		changed = fingerprintsDiffer(prior, current)
	}

	if !changed {
		s.logger.Info("no source files modified")
		return nil, nil
	}

	s.logger.Info("source files modified, repopulating index")
	result, err := s.Populate(ctx, domain.Filter{})
	if err != nil {
		return nil, err
	}

	if err := s.fingerprints.Save(ctx, current); err != nil {
		return nil, fmt.Errorf("save fingerprints: %w", err)
	}
	return result, nil
}

// DeleteWhere removes index entries by scope and logs before/after counts.
func (s *ingestService) DeleteWhere(ctx context.Context, filter domain.Filter) (int, error) {
	index, err := s.index.GetOrInit(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}

	before, err := index.Count(ctx)
	if err != nil {
		return 0, err
	}
	deleted, err := index.DeleteWhere(ctx, filter)
	if err != nil {
		return 0, err
	}
	after, err := index.Count(ctx)
	if err != nil {
		return 0, err
	}

	s.logger.Info("deleted index entries",
		"category", filter.Category,
		"language", filter.Language,
		"deleted", deleted,
		"before", before,
		"after", after,
	)
	return deleted, nil
}

// Count returns the total indexed entry count.
func (s *ingestService) Count(ctx context.Context) (int, error) {
	index, err := s.index.GetOrInit(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	return index.Count(ctx)
}

// CountByType returns entry counts keyed by category then language.
func (s *ingestService) CountByType(ctx context.Context) (map[string]map[string]int, error) {
	index, err := s.index.GetOrInit(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	return index.CountByType(ctx)
}

// diffIDs compares the prior uniqueId set against the staged entries and
// returns how many ids appear or disappear with this reconciliation.
func diffIDs(oldIDs []string, staged []domain.IndexEntry) (added, removed int) {
	old := make(map[string]bool, len(oldIDs))
	for _, id := range oldIDs {
		old[id] = true
	}
	seen := make(map[string]bool)
	for _, entry := range staged {
		id := entry.Chunk.Metadata.UniqueID
		if seen[id] {
			continue
		}
		seen[id] = true
		if !old[id] {
			added++
		}
	}
	for id := range old {
		if !seen[id] {
			removed++
		}
	}
	return added, removed
}

// fingerprintsDiffer reports whether any tracked file changed since the
// persisted fingerprints were written.
func fingerprintsDiffer(prior, current []domain.Fingerprint) bool {
	byFile := make(map[string]string, len(prior))
	for _, fp := range prior {
		byFile[fp.File] = fp.LastModifiedDate
	}
	for _, fp := range current {
		last, ok := byFile[fp.File]
		if !ok || last != fp.LastModifiedDate {
			return true
		}
	}
	return false
}
