package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/helpdesk-labs/concierge-core/internal/core/domain"
	"github.com/helpdesk-labs/concierge-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.VectorIndex = (*VectorIndex)(nil)

// VectorIndex implements driven.VectorIndex using PostgreSQL with
// pgvector. Search uses the cosine distance operator (<=>).
type VectorIndex struct {
	db *DB
}

// NewVectorIndex creates a new VectorIndex
func NewVectorIndex(db *DB) *VectorIndex {
	return &VectorIndex{db: db}
}

// vectorLiteral renders an embedding in pgvector's text format,
// e.g. [0.1,0.2,0.3].
func vectorLiteral(embedding []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for n, v := range embedding {
		if n > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// Add inserts entries into the index
func (v *VectorIndex) Add(ctx context.Context, entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	return v.db.Transaction(ctx, func(tx *sql.Tx) error {
		return insertEntries(ctx, tx, entries)
	})
}

func insertEntries(ctx context.Context, tx *sql.Tx, entries []domain.IndexEntry) error {
	query := `
		INSERT INTO catalog_entries (id, unique_id, name, category, language, position, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::vector)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding
	`

	for _, entry := range entries {
		_, err := tx.ExecContext(ctx, query,
			entry.ID,
			entry.Chunk.Metadata.UniqueID,
			entry.Chunk.Metadata.Name,
			entry.Chunk.Metadata.Category,
			entry.Chunk.Metadata.Language,
			entry.Chunk.Position,
			entry.Chunk.Content,
			vectorLiteral(entry.Embedding),
		)
		if err != nil {
			return fmt.Errorf("insert entry %s: %w", entry.ID, err)
		}
	}
	return nil
}

// Replace deletes the scope and inserts the new entries inside one
// transaction, so a failed insert rolls back the delete.
func (v *VectorIndex) Replace(ctx context.Context, filter domain.Filter, entries []domain.IndexEntry) (int, error) {
	clause, args := scopeClause(filter, 0)

	deleted := 0
	err := v.db.Transaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, "DELETE FROM catalog_entries WHERE "+clause, args...)
		if err != nil {
			return fmt.Errorf("delete scope: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		deleted = int(affected)

		return insertEntries(ctx, tx, entries)
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// Search returns up to k nearest entries ordered by ascending distance
func (v *VectorIndex) Search(ctx context.Context, embedding []float32, k int) ([]domain.RetrievedResult, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("%w: empty query embedding", domain.ErrInvalidInput)
	}
	if k <= 0 {
		k = 5
	}

	query := `
		SELECT unique_id, name, category, language, position, content,
		       embedding <=> $1::vector AS distance
		FROM catalog_entries
		ORDER BY distance
		LIMIT $2
	`

	rows, err := v.db.QueryContext(ctx, query, vectorLiteral(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	var results []domain.RetrievedResult
	for rows.Next() {
		var r domain.RetrievedResult
		err := rows.Scan(
			&r.Chunk.Metadata.UniqueID,
			&r.Chunk.Metadata.Name,
			&r.Chunk.Metadata.Category,
			&r.Chunk.Metadata.Language,
			&r.Chunk.Position,
			&r.Chunk.Content,
			&r.Distance,
		)
		if err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// scopeClause builds a WHERE clause for the filter. An empty filter
// yields a clause matching every row.
func scopeClause(filter domain.Filter, argOffset int) (string, []interface{}) {
	clauses := []string{}
	args := []interface{}{}
	if filter.Category != "" {
		args = append(args, filter.Category)
		clauses = append(clauses, fmt.Sprintf("category = $%d", argOffset+len(args)))
	}
	if filter.Language != "" {
		args = append(args, filter.Language)
		clauses = append(clauses, fmt.Sprintf("language = $%d", argOffset+len(args)))
	}
	if len(clauses) == 0 {
		return "TRUE", nil
	}
	return strings.Join(clauses, " AND "), args
}

// DeleteWhere removes all entries matching the filter
func (v *VectorIndex) DeleteWhere(ctx context.Context, filter domain.Filter) (int, error) {
	clause, args := scopeClause(filter, 0)

	result, err := v.db.ExecContext(ctx, "DELETE FROM catalog_entries WHERE "+clause, args...)
	if err != nil {
		return 0, fmt.Errorf("delete: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

// Count returns the total number of entries
func (v *VectorIndex) Count(ctx context.Context) (int, error) {
	var count int
	err := v.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM catalog_entries").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return count, nil
}

// CountByType returns entry counts keyed by category then language
func (v *VectorIndex) CountByType(ctx context.Context) (map[string]map[string]int, error) {
	rows, err := v.db.QueryContext(ctx,
		"SELECT category, language, COUNT(*) FROM catalog_entries GROUP BY category, language")
	if err != nil {
		return nil, fmt.Errorf("count by type: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]map[string]int)
	for rows.Next() {
		var category, language string
		var count int
		if err := rows.Scan(&category, &language, &count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		if counts[category] == nil {
			counts[category] = make(map[string]int)
		}
		counts[category][language] = count
	}
	return counts, rows.Err()
}

// ListIDs returns the distinct source unique IDs within the filter scope
func (v *VectorIndex) ListIDs(ctx context.Context, filter domain.Filter) ([]string, error) {
	clause, args := scopeClause(filter, 0)

	rows, err := v.db.QueryContext(ctx,
		"SELECT DISTINCT unique_id FROM catalog_entries WHERE "+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("list ids: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// HealthCheck verifies the index backend is reachable
func (v *VectorIndex) HealthCheck(ctx context.Context) error {
	if err := v.db.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	return nil
}
