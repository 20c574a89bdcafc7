package ai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/helpdesk-labs/concierge-core/internal/core/ports/driven"
)

// Ensure Embedding implements EmbeddingService
var _ driven.EmbeddingService = (*Embedding)(nil)

// Model dimensions for known OpenAI embedding models
var embeddingModelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// Embedding implements EmbeddingService against an OpenAI-compatible
// embeddings endpoint (OpenAI or Azure OpenAI).
type Embedding struct {
	url        string
	headers    map[string]string
	model      string // empty for Azure (model fixed by deployment)
	dimensions int
	client     *http.Client
}

func newOpenAIEmbedding(settings Settings) (*Embedding, error) {
	model := settings.EmbeddingModel
	if model == "" {
		model = "text-embedding-3-small"
	}
	baseURL := settings.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	return &Embedding{
		url:        baseURL + "/embeddings",
		headers:    map[string]string{"Authorization": "Bearer " + settings.APIKey},
		model:      model,
		dimensions: dimensionsFor(model),
		client:     newHTTPClient(settings.Timeout),
	}, nil
}

func newAzureEmbedding(settings Settings) (*Embedding, error) {
	if settings.AzureInstance == "" || settings.AzureEmbeddingDeployment == "" {
		return nil, fmt.Errorf("azure embedding requires instance and deployment names")
	}
	apiVersion := settings.AzureAPIVersion
	if apiVersion == "" {
		apiVersion = "2024-02-01"
	}

	url := fmt.Sprintf("https://%s.openai.azure.com/openai/deployments/%s/embeddings?api-version=%s",
		settings.AzureInstance, settings.AzureEmbeddingDeployment, apiVersion)

	return &Embedding{
		url:        url,
		headers:    map[string]string{"api-key": settings.APIKey},
		dimensions: dimensionsFor(settings.EmbeddingModel),
		client:     newHTTPClient(settings.Timeout),
	}, nil
}

func dimensionsFor(model string) int {
	if dims, ok := embeddingModelDimensions[model]; ok {
		return dims
	}
	return 1536
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// embeddingRequest is the request body for the embeddings API
type embeddingRequest struct {
	Input          []string `json:"input"`
	Model          string   `json:"model,omitempty"`
	EncodingFormat string   `json:"encoding_format,omitempty"`
}

// embeddingResponse is the response from the embeddings API
type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
}

// Embed generates embeddings for multiple texts
func (e *Embedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	reqBody := embeddingRequest{
		Input:          texts,
		Model:          e.model,
		EncodingFormat: "float",
	}

	var resp embeddingResponse
	if err := postJSON(ctx, e.client, e.url, e.headers, reqBody, &resp); err != nil {
		return nil, err
	}

	// Sort by index to ensure order matches input
	embeddings := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < len(embeddings) {
			embeddings[d.Index] = d.Embedding
		}
	}
	return embeddings, nil
}

// EmbedQuery generates an embedding for a search query
func (e *Embedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	embeddings, err := e.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 || embeddings[0] == nil {
		return nil, fmt.Errorf("no embedding returned for query")
	}
	return embeddings[0], nil
}

// Dimensions returns the embedding dimension size
func (e *Embedding) Dimensions() int {
	return e.dimensions
}

// Model returns the model name being used
func (e *Embedding) Model() string {
	if e.model != "" {
		return e.model
	}
	return "azure-deployment"
}

// HealthCheck verifies the embedding service is available
func (e *Embedding) HealthCheck(ctx context.Context) error {
	_, err := e.EmbedQuery(ctx, "health check")
	return err
}

// Close releases resources held by the embedding service
func (e *Embedding) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
