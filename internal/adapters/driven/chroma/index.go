// Package chroma provides a VectorIndex backed by a Chroma server,
// talked to over its REST API.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/helpdesk-labs/concierge-core/internal/core/domain"
	"github.com/helpdesk-labs/concierge-core/internal/core/ports/driven"
)

// Ensure Index implements VectorIndex
var _ driven.VectorIndex = (*Index)(nil)

const defaultTimeout = 30 * time.Second

// Index is a minimal REST client to Chroma.
// It assumes cosine distance and creates the collection if missing.
type Index struct {
	url          string
	collectionID string
	client       *http.Client
}

type Config struct {
	URL        string
	Collection string
	Timeout    time.Duration
}

// New connects to the server and resolves the collection, creating it
// with cosine distance if it does not exist yet.
func New(ctx context.Context, cfg Config) (*Index, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "catalog"
	}

	idx := &Index{
		url:    cfg.URL,
		client: &http.Client{Timeout: timeout},
	}

	body := map[string]any{
		"name":          collection,
		"get_or_create": true,
		"metadata":      map[string]any{"hnsw:space": "cosine"},
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := idx.postJSON(ctx, idx.url+"/api/v1/collections", body, &resp); err != nil {
		return nil, fmt.Errorf("resolve collection: %w", err)
	}
	idx.collectionID = resp.ID
	return idx, nil
}

func (i *Index) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/api/v1/collections/%s/%s", i.url, i.collectionID, suffix)
}

// where builds a Chroma metadata filter from a domain filter.
// Returns nil for an empty filter.
func where(filter domain.Filter) map[string]any {
	clauses := make([]map[string]any, 0, 2)
	if filter.Category != "" {
		clauses = append(clauses, map[string]any{"category": filter.Category})
	}
	if filter.Language != "" {
		clauses = append(clauses, map[string]any{"language": filter.Language})
	}

	switch len(clauses) {
	case 0:
		return nil
	case 1:
		return clauses[0]
	default:
		return map[string]any{"$and": clauses}
	}
}

// Add inserts entries into the index
func (i *Index) Add(ctx context.Context, entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	ids := make([]string, len(entries))
	embeddings := make([][]float32, len(entries))
	documents := make([]string, len(entries))
	metadatas := make([]map[string]any, len(entries))
	for n, entry := range entries {
		ids[n] = entry.ID
		embeddings[n] = entry.Embedding
		documents[n] = entry.Chunk.Content
		metadatas[n] = map[string]any{
			"unique_id": entry.Chunk.Metadata.UniqueID,
			"name":      entry.Chunk.Metadata.Name,
			"category":  entry.Chunk.Metadata.Category,
			"language":  entry.Chunk.Metadata.Language,
			"position":  entry.Chunk.Position,
		}
	}

	body := map[string]any{
		"ids":        ids,
		"embeddings": embeddings,
		"documents":  documents,
		"metadatas":  metadatas,
	}
	return i.postJSON(ctx, i.collectionURL("add"), body, nil)
}

// Search returns up to k nearest entries ordered by ascending distance
func (i *Index) Search(ctx context.Context, embedding []float32, k int) ([]domain.RetrievedResult, error) {
	if k <= 0 {
		k = 5
	}

	body := map[string]any{
		"query_embeddings": [][]float32{embedding},
		"n_results":        k,
		"include":          []string{"documents", "metadatas", "distances"},
	}
	var resp struct {
		Documents [][]string         `json:"documents"`
		Metadatas [][]map[string]any `json:"metadatas"`
		Distances [][]float64        `json:"distances"`
	}
	if err := i.postJSON(ctx, i.collectionURL("query"), body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Documents) == 0 {
		return nil, nil
	}

	results := make([]domain.RetrievedResult, 0, len(resp.Documents[0]))
	for n, content := range resp.Documents[0] {
		chunk := domain.Chunk{Content: content}
		if n < len(resp.Metadatas[0]) {
			chunk.Metadata = metadataFrom(resp.Metadatas[0][n])
			if pos, ok := resp.Metadatas[0][n]["position"].(float64); ok {
				chunk.Position = int(pos)
			}
		}
		distance := 0.0
		if n < len(resp.Distances[0]) {
			distance = resp.Distances[0][n]
		}
		results = append(results, domain.RetrievedResult{Chunk: chunk, Distance: distance})
	}
	return results, nil
}

func metadataFrom(raw map[string]any) domain.Metadata {
	meta := domain.Metadata{}
	if v, ok := raw["unique_id"].(string); ok {
		meta.UniqueID = v
	}
	if v, ok := raw["name"].(string); ok {
		meta.Name = v
	}
	if v, ok := raw["category"].(string); ok {
		meta.Category = v
	}
	if v, ok := raw["language"].(string); ok {
		meta.Language = v
	}
	return meta
}

// DeleteWhere removes all entries matching the filter
func (i *Index) DeleteWhere(ctx context.Context, filter domain.Filter) (int, error) {
	// Count and collect ids first; Chroma's delete needs explicit ids
	// when the filter is empty.
	ids, err := i.matchingIDs(ctx, filter)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	body := map[string]any{"ids": ids}
	if err := i.postJSON(ctx, i.collectionURL("delete"), body, nil); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Replace swaps the filter scope's contents for the given entries.
// Chroma has no transactions, so the prior entries are captured up
// front and re-added when the insert fails.
func (i *Index) Replace(ctx context.Context, filter domain.Filter, entries []domain.IndexEntry) (int, error) {
	prior, err := i.scopeEntries(ctx, filter)
	if err != nil {
		return 0, err
	}

	if len(prior) > 0 {
		ids := make([]string, len(prior))
		for n, entry := range prior {
			ids[n] = entry.ID
		}
		if err := i.postJSON(ctx, i.collectionURL("delete"), map[string]any{"ids": ids}, nil); err != nil {
			return 0, err
		}
	}

	if err := i.Add(ctx, entries); err != nil {
		if restoreErr := i.Add(ctx, prior); restoreErr != nil {
			return 0, fmt.Errorf("insert failed: %v; restore of prior entries failed: %w", err, restoreErr)
		}
		return 0, err
	}
	return len(prior), nil
}

// scopeEntries fetches the complete entries inside the filter scope,
// embeddings included.
func (i *Index) scopeEntries(ctx context.Context, filter domain.Filter) ([]domain.IndexEntry, error) {
	body := map[string]any{"include": []string{"documents", "embeddings", "metadatas"}}
	if w := where(filter); w != nil {
		body["where"] = w
	}
	var resp struct {
		IDs        []string         `json:"ids"`
		Embeddings [][]float32      `json:"embeddings"`
		Documents  []string         `json:"documents"`
		Metadatas  []map[string]any `json:"metadatas"`
	}
	if err := i.postJSON(ctx, i.collectionURL("get"), body, &resp); err != nil {
		return nil, err
	}

	entries := make([]domain.IndexEntry, len(resp.IDs))
	for n, id := range resp.IDs {
		entry := domain.IndexEntry{ID: id}
		if n < len(resp.Documents) {
			entry.Chunk.Content = resp.Documents[n]
		}
		if n < len(resp.Embeddings) {
			entry.Embedding = resp.Embeddings[n]
		}
		if n < len(resp.Metadatas) {
			entry.Chunk.Metadata = metadataFrom(resp.Metadatas[n])
			if pos, ok := resp.Metadatas[n]["position"].(float64); ok {
				entry.Chunk.Position = int(pos)
			}
		}
		entries[n] = entry
	}
	return entries, nil
}

// matchingIDs returns every entry ID inside the filter scope.
func (i *Index) matchingIDs(ctx context.Context, filter domain.Filter) ([]string, error) {
	body := map[string]any{"include": []string{}}
	if w := where(filter); w != nil {
		body["where"] = w
	}
	var resp struct {
		IDs []string `json:"ids"`
	}
	if err := i.postJSON(ctx, i.collectionURL("get"), body, &resp); err != nil {
		return nil, err
	}
	return resp.IDs, nil
}

// Count returns the total number of entries
func (i *Index) Count(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, i.collectionURL("count"), nil)
	if err != nil {
		return 0, err
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("chroma count: status %d: %s", resp.StatusCode, data)
	}

	var count int
	if err := json.Unmarshal(data, &count); err != nil {
		return 0, fmt.Errorf("decode count: %w", err)
	}
	return count, nil
}

// CountByType returns entry counts keyed by category then language
func (i *Index) CountByType(ctx context.Context) (map[string]map[string]int, error) {
	body := map[string]any{"include": []string{"metadatas"}}
	var resp struct {
		Metadatas []map[string]any `json:"metadatas"`
	}
	if err := i.postJSON(ctx, i.collectionURL("get"), body, &resp); err != nil {
		return nil, err
	}

	counts := make(map[string]map[string]int)
	for _, raw := range resp.Metadatas {
		meta := metadataFrom(raw)
		if counts[meta.Category] == nil {
			counts[meta.Category] = make(map[string]int)
		}
		counts[meta.Category][meta.Language]++
	}
	return counts, nil
}

// ListIDs returns the distinct source unique IDs within the filter scope
func (i *Index) ListIDs(ctx context.Context, filter domain.Filter) ([]string, error) {
	body := map[string]any{"include": []string{"metadatas"}}
	if w := where(filter); w != nil {
		body["where"] = w
	}
	var resp struct {
		Metadatas []map[string]any `json:"metadatas"`
	}
	if err := i.postJSON(ctx, i.collectionURL("get"), body, &resp); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, raw := range resp.Metadatas {
		id, _ := raw["unique_id"].(string)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// HealthCheck verifies the index backend is reachable
func (i *Index) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, i.url+"/api/v1/heartbeat", nil)
	if err != nil {
		return err
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: heartbeat status %d", domain.ErrIndexUnavailable, resp.StatusCode)
	}
	return nil
}

func (i *Index) postJSON(ctx context.Context, url string, reqBody any, out any) error {
	data, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := i.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("chroma: status %d: %s", resp.StatusCode, body)
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
