package driving

import (
	"context"

	"github.com/helpdesk-labs/concierge-core/internal/core/domain"
)

// ChatService answers user questions grounded in retrieved catalog context.
type ChatService interface {
	// Query answers the last message of the conversation. The preceding
	// messages are forwarded to the model as history.
	Query(ctx context.Context, messages []domain.Message) (*domain.AnswerPayload, error)
}

// Retriever returns the top-k most similar chunks for a query string.
// Results are ordered by ascending distance and may contain several
// chunks of the same source document; deduplication happens downstream.
type Retriever interface {
	Query(ctx context.Context, text string, k int) ([]domain.RetrievedResult, error)
}

// Composer turns retrieved context plus a question into a final answer.
type Composer interface {
	Answer(ctx context.Context, question string, retrieved []domain.RetrievedResult, history []domain.Message) (*domain.AnswerPayload, error)
}
