package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/helpdesk-labs/concierge-core/internal/core/domain"
	"github.com/helpdesk-labs/concierge-core/internal/core/ports/driving"
)

// Ensure chatService implements ChatService
var _ driving.ChatService = (*chatService)(nil)

// chatService runs the query path: retrieve then compose.
type chatService struct {
	retriever driving.Retriever
	composer  driving.Composer
	topK      int
	logger    *slog.Logger
}

// NewChatService creates a new ChatService.
func NewChatService(retriever driving.Retriever, composer driving.Composer, topK int, logger *slog.Logger) driving.ChatService {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &chatService{
		retriever: retriever,
		composer:  composer,
		topK:      topK,
		logger:    logger,
	}
}

// Query answers the last message of the conversation, grounded in
// retrieved catalog chunks.
func (s *chatService) Query(ctx context.Context, messages []domain.Message) (*domain.AnswerPayload, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("%w: no messages", domain.ErrInvalidInput)
	}
	question := messages[len(messages)-1].Content
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: empty question", domain.ErrInvalidInput)
	}
	history := messages[:len(messages)-1]

	retrieved, err := s.retriever.Query(ctx, question, s.topK)
	if err != nil {
		return nil, err
	}

	payload, err := s.composer.Answer(ctx, question, retrieved, history)
	if err != nil {
		return nil, err
	}

	s.logger.Info("query answered",
		"text_clean", payload.TextClean,
		"sources", payload.Total,
	)
	return payload, nil
}
