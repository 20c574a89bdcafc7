package ai

import (
	"context"
	"fmt"
	"net/http"

	"github.com/helpdesk-labs/concierge-core/internal/core/domain"
	"github.com/helpdesk-labs/concierge-core/internal/core/ports/driven"
)

// Ensure LLM implements LLMService
var _ driven.LLMService = (*LLM)(nil)

// LLM implements LLMService against an OpenAI-compatible chat
// completions endpoint (OpenAI or Azure OpenAI).
type LLM struct {
	url     string
	headers map[string]string
	model   string // empty for Azure (model fixed by deployment)
	client  *http.Client
}

func newOpenAILLM(settings Settings) (*LLM, error) {
	model := settings.ChatModel
	if model == "" {
		model = "gpt-4o-mini"
	}
	baseURL := settings.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	return &LLM{
		url:     baseURL + "/chat/completions",
		headers: map[string]string{"Authorization": "Bearer " + settings.APIKey},
		model:   model,
		client:  newHTTPClient(settings.Timeout),
	}, nil
}

func newAzureLLM(settings Settings) (*LLM, error) {
	if settings.AzureInstance == "" || settings.AzureDeployment == "" {
		return nil, fmt.Errorf("azure llm requires instance and deployment names")
	}
	apiVersion := settings.AzureAPIVersion
	if apiVersion == "" {
		apiVersion = "2024-02-01"
	}

	url := fmt.Sprintf("https://%s.openai.azure.com/openai/deployments/%s/chat/completions?api-version=%s",
		settings.AzureInstance, settings.AzureDeployment, apiVersion)

	return &LLM{
		url:     url,
		headers: map[string]string{"api-key": settings.APIKey},
		client:  newHTTPClient(settings.Timeout),
	}, nil
}

// chatMessage is a single message in the completions request
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the request body for the chat completions API
type chatRequest struct {
	Model          string          `json:"model,omitempty"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// chatResponse is the response from the chat completions API
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Model string `json:"model"`
}

// Complete generates a completion for the conversation
func (l *LLM) Complete(ctx context.Context, system string, messages []domain.Message) (string, error) {
	chat := make([]chatMessage, 0, len(messages)+1)
	if system != "" {
		chat = append(chat, chatMessage{Role: "system", Content: system})
	}
	for _, m := range messages {
		chat = append(chat, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	return l.complete(ctx, chatRequest{
		Model:       l.model,
		Messages:    chat,
		Temperature: 0,
	})
}

// CompleteJSON generates a completion constrained to a single JSON object
func (l *LLM) CompleteJSON(ctx context.Context, prompt string) (string, error) {
	return l.complete(ctx, chatRequest{
		Model:          l.model,
		Messages:       []chatMessage{{Role: "user", Content: prompt}},
		Temperature:    0,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
}

func (l *LLM) complete(ctx context.Context, reqBody chatRequest) (string, error) {
	var resp chatResponse
	if err := postJSON(ctx, l.client, l.url, l.headers, reqBody, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", domain.ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// Model returns the model name being used
func (l *LLM) Model() string {
	if l.model != "" {
		return l.model
	}
	return "azure-deployment"
}

// Ping verifies the LLM service is available
func (l *LLM) Ping(ctx context.Context) error {
	_, err := l.Complete(ctx, "", []domain.Message{{Role: domain.RoleUser, Content: "ping"}})
	return err
}

// Close releases resources held by the LLM service
func (l *LLM) Close() error {
	l.client.CloseIdleConnections()
	return nil
}
