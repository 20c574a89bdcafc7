// Package postprocessors splits extracted documents into overlapping
// chunks and normalizes them before embedding.
package postprocessors

import (
	"sort"
	"strings"
	"sync"

	"github.com/helpdesk-labs/concierge-core/internal/core/domain"
	"github.com/helpdesk-labs/concierge-core/internal/core/ports/driven"
)

// Processor transforms the chunks of a single document.
// Processors never mix chunks across documents.
type Processor interface {
	Process(chunks []domain.Chunk) []domain.Chunk
	Name() string
	Order() int
}

// Verify interface compliance
var _ driven.Splitter = (*Pipeline)(nil)

// Pipeline chains processors in order, starting with a Chunker.
type Pipeline struct {
	mu         sync.RWMutex
	processors []Processor
	sorted     bool
}

// NewPipeline creates an empty pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// DefaultPipeline creates a pipeline with the default processors.
func DefaultPipeline(cfg ChunkConfig) *Pipeline {
	p := NewPipeline()
	p.Add(NewChunker(cfg))
	p.Add(NewWhitespaceNormalizer())
	return p
}

// Add adds a processor. Processors are sorted by Order() before use.
func (p *Pipeline) Add(processor Processor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processors = append(p.processors, processor)
	p.sorted = false
}

// Split runs every document through the processor chain. Metadata is
// copied verbatim onto each resulting chunk; chunk positions restart per
// document. Splitting the same documents twice yields identical output.
func (p *Pipeline) Split(documents []domain.Document) []domain.Chunk {
	p.mu.Lock()
	if !p.sorted {
		sort.SliceStable(p.processors, func(i, j int) bool {
			return p.processors[i].Order() < p.processors[j].Order()
		})
		p.sorted = true
	}
	processors := make([]Processor, len(p.processors))
	copy(processors, p.processors)
	p.mu.Unlock()

	var result []domain.Chunk
	for _, doc := range documents {
		chunks := []domain.Chunk{{
			Content:  doc.Content,
			Position: 0,
			Metadata: doc.Metadata,
		}}
		for _, proc := range processors {
			chunks = proc.Process(chunks)
		}
		result = append(result, chunks...)
	}
	return result
}

// List returns processor names in order.
func (p *Pipeline) List() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, len(p.processors))
	for i, proc := range p.processors {
		names[i] = proc.Name()
	}
	return names
}

// ChunkConfig configures the chunker behavior.
type ChunkConfig struct {
	// Size is the maximum characters per chunk
	Size int

	// Overlap is the character overlap between consecutive chunks of the
	// same document. Must be > 0 so context survives chunk boundaries.
	Overlap int
}

// DefaultChunkConfig returns sensible defaults.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Size:    1000,
		Overlap: 200,
	}
}

// Chunker splits content into overlapping fixed-size chunks.
// First processor in the pipeline (Order = 0).
type Chunker struct {
	config ChunkConfig
}

// Verify interface compliance
var _ Processor = (*Chunker)(nil)

// NewChunker creates a new chunker. A non-positive overlap is raised to
// the default to preserve context across boundaries.
func NewChunker(config ChunkConfig) *Chunker {
	if config.Size <= 0 {
		config.Size = DefaultChunkConfig().Size
	}
	if config.Overlap <= 0 {
		config.Overlap = DefaultChunkConfig().Overlap
	}
	if config.Overlap >= config.Size {
		config.Overlap = config.Size / 2
	}
	return &Chunker{config: config}
}

// Process splits each chunk's content into overlapping windows.
func (c *Chunker) Process(chunks []domain.Chunk) []domain.Chunk {
	var result []domain.Chunk
	position := 0
	for _, chunk := range chunks {
		result = append(result, c.split(chunk, &position)...)
	}
	return result
}

// Name returns the processor name.
func (c *Chunker) Name() string { return "chunker" }

// Order returns 0 - chunker runs first.
func (c *Chunker) Order() int { return 0 }

func (c *Chunker) split(chunk domain.Chunk, position *int) []domain.Chunk {
	content := chunk.Content
	if len(content) <= c.config.Size {
		out := chunk
		out.Position = *position
		*position++
		return []domain.Chunk{out}
	}

	var chunks []domain.Chunk
	start := 0
	for start < len(content) {
		end := start + c.config.Size
		if end > len(content) {
			end = len(content)
		}
		// Avoid cutting a rune in half
		for end < len(content) && !isRuneStart(content[end]) {
			end--
		}

		chunks = append(chunks, domain.Chunk{
			Content:  content[start:end],
			Position: *position,
			Metadata: chunk.Metadata,
		})
		*position++

		if end >= len(content) {
			break
		}

		next := end - c.config.Overlap
		for next > start && !isRuneStart(content[next]) {
			next--
		}
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}

// isRuneStart reports whether b is the first byte of a UTF-8 sequence.
func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// WhitespaceNormalizer collapses whitespace and drops empty chunks.
type WhitespaceNormalizer struct{}

// Verify interface compliance
var _ Processor = (*WhitespaceNormalizer)(nil)

// NewWhitespaceNormalizer creates a new whitespace normalizer.
func NewWhitespaceNormalizer() *WhitespaceNormalizer {
	return &WhitespaceNormalizer{}
}

// Process normalizes whitespace in chunks.
func (w *WhitespaceNormalizer) Process(chunks []domain.Chunk) []domain.Chunk {
	result := make([]domain.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		content := strings.Join(strings.Fields(chunk.Content), " ")
		if content == "" {
			continue
		}
		out := chunk
		out.Content = content
		result = append(result, out)
	}
	return result
}

// Name returns the processor name.
func (w *WhitespaceNormalizer) Name() string { return "whitespace-normalizer" }

// Order returns 5 - runs after the chunker.
func (w *WhitespaceNormalizer) Order() int { return 5 }
