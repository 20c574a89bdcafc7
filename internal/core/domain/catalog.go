package domain

import "math"

// Catalog categories. Each (category, language) pair maps to one source file.
const (
	CategoryIDOS    = "idos"
	CategoryNonIDOS = "nonIdos"

	LanguageEnglish = "en"
	LanguageArabic  = "ar"
)

// Field is one named scalar value of a source record, in declaration order.
type Field struct {
	Name  string
	Value string
}

// Channel is a delivery channel attached to a catalog record.
type Channel struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// SourceRecord is one structured entity read from a catalog file.
// Fields preserve the declaration order of the source JSON object.
type SourceRecord struct {
	UniqueID string
	Name     string
	Fields   []Field
	Channels []Channel
}

// Metadata identifies the source record a piece of extracted text came from.
type Metadata struct {
	UniqueID string `json:"unique_id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Language string `json:"language"`
}

// Document is the extractor's output: one flattened catalog record.
type Document struct {
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// Chunk is a bounded-length slice of a document's content.
// Metadata is copied verbatim from the owning document.
type Chunk struct {
	Content  string   `json:"content"`
	Position int      `json:"position"`
	Metadata Metadata `json:"metadata"`
}

// IndexEntry is a chunk plus its embedding, as stored in the vector index.
type IndexEntry struct {
	ID        string    `json:"id"`
	Chunk     Chunk     `json:"chunk"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// RetrievedResult pairs a chunk with its raw similarity distance.
// Lower distance means a better match.
type RetrievedResult struct {
	Chunk    Chunk
	Distance float64
}

// Score converts the raw distance into a display score where higher is
// better, scaled to 0-100.
func (r RetrievedResult) Score() int {
	score := int(math.Round((1 - r.Distance) * 100))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Filter scopes index operations by category and/or language.
// An empty dimension matches everything.
type Filter struct {
	Category string `json:"category,omitempty"`
	Language string `json:"language,omitempty"`
}

// IsEmpty reports whether the filter matches the whole index.
func (f Filter) IsEmpty() bool {
	return f.Category == "" && f.Language == ""
}

// Matches reports whether the given metadata falls inside the filter scope.
func (f Filter) Matches(m Metadata) bool {
	if f.Category != "" && f.Category != m.Category {
		return false
	}
	if f.Language != "" && f.Language != m.Language {
		return false
	}
	return true
}
