package mocks

import (
	"context"

	"github.com/helpdesk-labs/concierge-core/internal/core/domain"
)

// MockLLMService is a scriptable mock implementation of LLMService.
// Responses are returned in order; the last one repeats.
type MockLLMService struct {
	Responses     []string
	JSONResponses []string
	Err           error

	// CompleteCalls records the system prompts passed to Complete
	CompleteCalls []string
	// JSONCalls records the prompts passed to CompleteJSON
	JSONCalls []string

	completeIdx int
	jsonIdx     int
}

// NewMockLLMService creates a mock returning the given responses in order.
func NewMockLLMService(responses ...string) *MockLLMService {
	return &MockLLMService{Responses: responses}
}

func (m *MockLLMService) Complete(ctx context.Context, system string, messages []domain.Message) (string, error) {
	m.CompleteCalls = append(m.CompleteCalls, system)
	if m.Err != nil {
		return "", m.Err
	}
	return next(m.Responses, &m.completeIdx), nil
}

func (m *MockLLMService) CompleteJSON(ctx context.Context, prompt string) (string, error) {
	m.JSONCalls = append(m.JSONCalls, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	return next(m.JSONResponses, &m.jsonIdx), nil
}

func (m *MockLLMService) Model() string {
	return "mock-llm-model"
}

func (m *MockLLMService) Ping(ctx context.Context) error {
	return m.Err
}

func (m *MockLLMService) Close() error {
	return nil
}

func next(responses []string, idx *int) string {
	if len(responses) == 0 {
		return ""
	}
	if *idx >= len(responses) {
		return responses[len(responses)-1]
	}
	resp := responses[*idx]
	*idx++
	return resp
}
