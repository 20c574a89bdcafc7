package services

import (
	"context"
	"errors"
	"testing"

	"github.com/helpdesk-labs/concierge-core/internal/core/domain"
)

type stubRetriever struct {
	queryFn func(ctx context.Context, text string, k int) ([]domain.RetrievedResult, error)
}

func (s *stubRetriever) Query(ctx context.Context, text string, k int) ([]domain.RetrievedResult, error) {
	return s.queryFn(ctx, text, k)
}

type stubComposer struct {
	answerFn func(ctx context.Context, question string, retrieved []domain.RetrievedResult, history []domain.Message) (*domain.AnswerPayload, error)
}

func (s *stubComposer) Answer(ctx context.Context, question string, retrieved []domain.RetrievedResult, history []domain.Message) (*domain.AnswerPayload, error) {
	return s.answerFn(ctx, question, retrieved, history)
}

func TestChatService_Query(t *testing.T) {
	retrieved := []domain.RetrievedResult{
		{Chunk: domain.Chunk{Content: "fee is 120 AED"}, Distance: 0.1},
	}

	var gotQuestion string
	var gotK int
	var gotHistory []domain.Message

	retriever := &stubRetriever{queryFn: func(ctx context.Context, text string, k int) ([]domain.RetrievedResult, error) {
		gotQuestion = text
		gotK = k
		return retrieved, nil
	}}
	composer := &stubComposer{answerFn: func(ctx context.Context, question string, results []domain.RetrievedResult, history []domain.Message) (*domain.AnswerPayload, error) {
		gotHistory = history
		return &domain.AnswerPayload{ResponseText: "The fee is 120 AED.", Total: 1}, nil
	}}

	svc := NewChatService(retriever, composer, 4, nil)

	messages := []domain.Message{
		{Role: domain.RoleUser, Content: "what services do you offer?"},
		{Role: domain.RoleAssistant, Content: "Many municipal services."},
		{Role: domain.RoleUser, Content: "how much is a trade license renewal?"},
	}
	payload, err := svc.Query(context.Background(), messages)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if payload.ResponseText != "The fee is 120 AED." {
		t.Errorf("ResponseText = %q", payload.ResponseText)
	}
	if gotQuestion != "how much is a trade license renewal?" {
		t.Errorf("retriever received %q, want the last message", gotQuestion)
	}
	if gotK != 4 {
		t.Errorf("retriever k = %d, want 4", gotK)
	}
	if len(gotHistory) != 2 {
		t.Errorf("history = %d messages, want 2 (last message excluded)", len(gotHistory))
	}
}

func TestChatService_Query_InvalidInput(t *testing.T) {
	svc := NewChatService(&stubRetriever{}, &stubComposer{}, 0, nil)

	tests := []struct {
		name     string
		messages []domain.Message
	}{
		{"no messages", nil},
		{"empty last message", []domain.Message{{Role: domain.RoleUser, Content: "   "}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Query(context.Background(), tt.messages); !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("Query() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestChatService_Query_RetrieverError(t *testing.T) {
	wantErr := errors.New("backend down")
	retriever := &stubRetriever{queryFn: func(ctx context.Context, text string, k int) ([]domain.RetrievedResult, error) {
		return nil, wantErr
	}}
	svc := NewChatService(retriever, &stubComposer{}, 0, nil)

	_, err := svc.Query(context.Background(), []domain.Message{{Role: domain.RoleUser, Content: "question"}})
	if !errors.Is(err, wantErr) {
		t.Errorf("Query() error = %v, want retriever error passed through", err)
	}
}

func TestChatService_Query_ComposerError(t *testing.T) {
	wantErr := errors.New("model unavailable")
	retriever := &stubRetriever{queryFn: func(ctx context.Context, text string, k int) ([]domain.RetrievedResult, error) {
		return nil, nil
	}}
	composer := &stubComposer{answerFn: func(ctx context.Context, question string, retrieved []domain.RetrievedResult, history []domain.Message) (*domain.AnswerPayload, error) {
		return nil, wantErr
	}}
	svc := NewChatService(retriever, composer, 0, nil)

	_, err := svc.Query(context.Background(), []domain.Message{{Role: domain.RoleUser, Content: "question"}})
	if !errors.Is(err, wantErr) {
		t.Errorf("Query() error = %v, want composer error passed through", err)
	}
}
