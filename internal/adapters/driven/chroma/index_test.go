package chroma

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helpdesk-labs/concierge-core/internal/core/domain"
)

// fakeChroma is a minimal in-memory stand-in for the Chroma REST API,
// covering the endpoints the adapter uses.
type fakeChroma struct {
	entries  []map[string]any // id, embedding, document, metadata
	failAdds int              // fail this many add calls with a 500
}

func (f *fakeChroma) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/collections", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": "col-1"})
	})
	mux.HandleFunc("GET /api/v1/heartbeat", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"nanosecond heartbeat": 1})
	})
	mux.HandleFunc("POST /api/v1/collections/col-1/add", func(w http.ResponseWriter, r *http.Request) {
		if f.failAdds > 0 {
			f.failAdds--
			http.Error(w, `{"error": "add failed"}`, http.StatusInternalServerError)
			return
		}
		var req struct {
			IDs        []string         `json:"ids"`
			Embeddings [][]float32      `json:"embeddings"`
			Documents  []string         `json:"documents"`
			Metadatas  []map[string]any `json:"metadatas"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		for n := range req.IDs {
			f.entries = append(f.entries, map[string]any{
				"id":        req.IDs[n],
				"embedding": req.Embeddings[n],
				"document":  req.Documents[n],
				"metadata":  req.Metadatas[n],
			})
		}
		w.Write([]byte("true"))
	})
	mux.HandleFunc("GET /api/v1/collections/col-1/count", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(len(f.entries))
	})
	mux.HandleFunc("POST /api/v1/collections/col-1/get", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Where map[string]any `json:"where"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		ids := []string{}
		embeddings := []any{}
		documents := []string{}
		metadatas := []map[string]any{}
		for _, e := range f.entries {
			if matches(req.Where, e["metadata"].(map[string]any)) {
				ids = append(ids, e["id"].(string))
				embeddings = append(embeddings, e["embedding"])
				documents = append(documents, e["document"].(string))
				metadatas = append(metadatas, e["metadata"].(map[string]any))
			}
		}
		json.NewEncoder(w).Encode(map[string]any{
			"ids":        ids,
			"embeddings": embeddings,
			"documents":  documents,
			"metadatas":  metadatas,
		})
	})
	mux.HandleFunc("POST /api/v1/collections/col-1/delete", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			IDs []string `json:"ids"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		drop := map[string]bool{}
		for _, id := range req.IDs {
			drop[id] = true
		}
		kept := f.entries[:0]
		for _, e := range f.entries {
			if !drop[e["id"].(string)] {
				kept = append(kept, e)
			}
		}
		f.entries = kept
		json.NewEncoder(w).Encode(req.IDs)
	})
	mux.HandleFunc("POST /api/v1/collections/col-1/query", func(w http.ResponseWriter, r *http.Request) {
		documents := []string{}
		metadatas := []map[string]any{}
		distances := []float64{}
		for n, e := range f.entries {
			documents = append(documents, e["document"].(string))
			metadatas = append(metadatas, e["metadata"].(map[string]any))
			distances = append(distances, float64(n)*0.1)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"documents": [][]string{documents},
			"metadatas": [][]map[string]any{metadatas},
			"distances": [][]float64{distances},
		})
	})

	return mux
}

// matches applies a flat or $and Chroma where clause.
func matches(clause map[string]any, metadata map[string]any) bool {
	if len(clause) == 0 {
		return true
	}
	if and, ok := clause["$and"].([]any); ok {
		for _, sub := range and {
			if !matches(sub.(map[string]any), metadata) {
				return false
			}
		}
		return true
	}
	for key, want := range clause {
		if metadata[key] != want {
			return false
		}
	}
	return true
}

func newTestIndex(t *testing.T) (*Index, *fakeChroma) {
	t.Helper()
	fake := &fakeChroma{}
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)

	idx, err := New(context.Background(), Config{URL: server.URL, Collection: "catalog"})
	require.NoError(t, err)
	return idx, fake
}

func testEntries() []domain.IndexEntry {
	return []domain.IndexEntry{
		{
			ID: "idos-en-svc-a-0",
			Chunk: domain.Chunk{
				Content: "passport renewal service",
				Metadata: domain.Metadata{
					UniqueID: "svc-a",
					Name:     "Passport Renewal",
					Category: domain.CategoryIDOS,
					Language: domain.LanguageEnglish,
				},
			},
			Embedding: []float32{1, 0},
		},
		{
			ID: "nonIdos-ar-svc-b-0",
			Chunk: domain.Chunk{
				Content: "خدمة تجديد",
				Metadata: domain.Metadata{
					UniqueID: "svc-b",
					Name:     "تجديد",
					Category: domain.CategoryNonIDOS,
					Language: domain.LanguageArabic,
				},
			},
			Embedding: []float32{0, 1},
		},
	}
}

func TestIndex_AddAndCount(t *testing.T) {
	idx, _ := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, testEntries()))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestIndex_Search(t *testing.T) {
	idx, _ := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, testEntries()))

	results, err := idx.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "passport renewal service", results[0].Chunk.Content)
	assert.Equal(t, "svc-a", results[0].Chunk.Metadata.UniqueID)
	assert.Equal(t, domain.CategoryIDOS, results[0].Chunk.Metadata.Category)
	assert.InDelta(t, 0.1, results[1].Distance, 1e-9)
}

func TestIndex_DeleteWhere_Scoped(t *testing.T) {
	idx, _ := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, testEntries()))

	removed, err := idx.DeleteWhere(ctx, domain.Filter{Category: domain.CategoryIDOS, Language: domain.LanguageEnglish})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIndex_DeleteWhere_EmptyFilterClearsAll(t *testing.T) {
	idx, _ := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, testEntries()))

	removed, err := idx.DeleteWhere(ctx, domain.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
}

func TestIndex_Replace_SwapsScope(t *testing.T) {
	idx, _ := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, testEntries()))

	next := []domain.IndexEntry{
		{
			ID: "idos-en-svc-c-0",
			Chunk: domain.Chunk{
				Content: "visa status inquiry",
				Metadata: domain.Metadata{
					UniqueID: "svc-c",
					Name:     "Visa Status",
					Category: domain.CategoryIDOS,
					Language: domain.LanguageEnglish,
				},
			},
			Embedding: []float32{0.5, 0.5},
		},
	}
	scope := domain.Filter{Category: domain.CategoryIDOS, Language: domain.LanguageEnglish}
	removed, err := idx.Replace(ctx, scope, next)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	ids, err := idx.ListIDs(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, []string{"svc-c"}, ids)

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestIndex_Replace_RestoresPriorOnFailedInsert(t *testing.T) {
	idx, fake := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, testEntries()))

	fake.failAdds = 1
	scope := domain.Filter{Category: domain.CategoryIDOS, Language: domain.LanguageEnglish}
	_, err := idx.Replace(ctx, scope, []domain.IndexEntry{{
		ID:        "idos-en-svc-c-0",
		Chunk:     domain.Chunk{Metadata: domain.Metadata{UniqueID: "svc-c", Category: domain.CategoryIDOS, Language: domain.LanguageEnglish}},
		Embedding: []float32{0.5, 0.5},
	}})
	require.Error(t, err)

	// The failed insert was rolled back: prior scope contents survive
	ids, err := idx.ListIDs(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, []string{"svc-a"}, ids)

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestIndex_CountByType(t *testing.T) {
	idx, _ := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, testEntries()))

	counts, err := idx.CountByType(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[domain.CategoryIDOS][domain.LanguageEnglish])
	assert.Equal(t, 1, counts[domain.CategoryNonIDOS][domain.LanguageArabic])
}

func TestIndex_ListIDs(t *testing.T) {
	idx, _ := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, testEntries()))

	ids, err := idx.ListIDs(ctx, domain.Filter{Category: domain.CategoryIDOS})
	require.NoError(t, err)
	assert.Equal(t, []string{"svc-a"}, ids)
}

func TestIndex_HealthCheck(t *testing.T) {
	idx, _ := newTestIndex(t)
	assert.NoError(t, idx.HealthCheck(context.Background()))
}
