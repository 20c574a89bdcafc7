package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/helpdesk-labs/concierge-core/internal/core/domain"
)

func chatServer(t *testing.T, handler func(req chatRequest) chatResponse) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(handler(req))
	}))
}

func chatReply(content string) chatResponse {
	var resp chatResponse
	resp.Choices = []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}{{}}
	resp.Choices[0].Message.Content = content
	return resp
}

func TestNewLLMService_Unconfigured(t *testing.T) {
	svc, err := NewLLMService(Settings{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc != nil {
		t.Error("expected nil service without API key")
	}
}

func TestNewAzureLLM_URL(t *testing.T) {
	llm, err := newAzureLLM(Settings{
		APIKey:          "key",
		AzureInstance:   "myinstance",
		AzureDeployment: "chat-dep",
		AzureAPIVersion: "2024-02-01",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "https://myinstance.openai.azure.com/openai/deployments/chat-dep/chat/completions?api-version=2024-02-01"
	if llm.url != want {
		t.Errorf("expected %s, got %s", want, llm.url)
	}
}

func TestLLM_Complete(t *testing.T) {
	var got chatRequest
	server := chatServer(t, func(req chatRequest) chatResponse {
		got = req
		return chatReply("answer text")
	})
	defer server.Close()

	llm, err := newOpenAILLM(Settings{APIKey: "sk-test", BaseURL: server.URL, ChatModel: "gpt-4o"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := llm.Complete(context.Background(), "you are helpful", []domain.Message{
		{Role: domain.RoleUser, Content: "hello"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "answer text" {
		t.Errorf("expected answer text, got %q", out)
	}

	if len(got.Messages) != 2 {
		t.Fatalf("expected system + user message, got %d", len(got.Messages))
	}
	if got.Messages[0].Role != "system" || got.Messages[0].Content != "you are helpful" {
		t.Errorf("unexpected system message: %+v", got.Messages[0])
	}
	if got.Messages[1].Role != "user" {
		t.Errorf("expected user role, got %s", got.Messages[1].Role)
	}
	if got.Temperature != 0 {
		t.Errorf("expected temperature 0, got %v", got.Temperature)
	}
	if got.Model != "gpt-4o" {
		t.Errorf("expected model gpt-4o, got %s", got.Model)
	}
}

func TestLLM_Complete_EmptySystemOmitted(t *testing.T) {
	var got chatRequest
	server := chatServer(t, func(req chatRequest) chatResponse {
		got = req
		return chatReply("ok")
	})
	defer server.Close()

	llm, _ := newOpenAILLM(Settings{APIKey: "sk-test", BaseURL: server.URL})
	if _, err := llm.Complete(context.Background(), "", []domain.Message{
		{Role: domain.RoleUser, Content: "hi"},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got.Messages) != 1 {
		t.Errorf("expected 1 message without system prompt, got %d", len(got.Messages))
	}
}

func TestLLM_CompleteJSON(t *testing.T) {
	var got chatRequest
	server := chatServer(t, func(req chatRequest) chatResponse {
		got = req
		return chatReply(`{"aggregate":"sum"}`)
	})
	defer server.Close()

	llm, _ := newOpenAILLM(Settings{APIKey: "sk-test", BaseURL: server.URL})
	out, err := llm.CompleteJSON(context.Background(), "build a plan")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"aggregate":"sum"}` {
		t.Errorf("unexpected output: %q", out)
	}

	if got.ResponseFormat == nil || got.ResponseFormat.Type != "json_object" {
		t.Error("expected json_object response format")
	}
}

func TestLLM_Complete_NoChoices(t *testing.T) {
	server := chatServer(t, func(req chatRequest) chatResponse {
		return chatResponse{}
	})
	defer server.Close()

	llm, _ := newOpenAILLM(Settings{APIKey: "sk-test", BaseURL: server.URL})
	_, err := llm.Complete(context.Background(), "", []domain.Message{
		{Role: domain.RoleUser, Content: "hi"},
	})
	if err != domain.ErrEmptyResponse {
		t.Errorf("expected ErrEmptyResponse, got %v", err)
	}
}
