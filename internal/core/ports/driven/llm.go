package driven

import (
	"context"

	"github.com/helpdesk-labs/concierge-core/internal/core/domain"
)

// LLMService provides chat completion for grounded answering
type LLMService interface {
	// Complete generates a completion for the conversation.
	// The system prompt carries the grounding context and instructions.
	Complete(ctx context.Context, system string, messages []domain.Message) (string, error)

	// CompleteJSON generates a completion constrained to a single JSON
	// object. Used for structured output such as query plans.
	CompleteJSON(ctx context.Context, prompt string) (string, error)

	// Model returns the model name being used
	Model() string

	// Ping verifies the LLM service is available
	Ping(ctx context.Context) error

	// Close releases resources held by the LLM service
	Close() error
}
