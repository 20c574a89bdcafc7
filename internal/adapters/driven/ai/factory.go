package ai

import (
	"fmt"
	"time"

	"github.com/helpdesk-labs/concierge-core/internal/core/domain"
	"github.com/helpdesk-labs/concierge-core/internal/core/ports/driven"
)

// Provider selects the model provider.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderAzure  Provider = "azure"
)

// Settings configures the AI adapters.
type Settings struct {
	Provider Provider

	APIKey  string
	BaseURL string // OpenAI-compatible base URL, default https://api.openai.com/v1

	EmbeddingModel string
	ChatModel      string

	// Azure OpenAI
	AzureInstance            string // <instance>.openai.azure.com
	AzureDeployment          string // chat deployment name
	AzureEmbeddingDeployment string
	AzureAPIVersion          string

	Timeout time.Duration
}

// IsConfigured reports whether the settings can build adapters.
func (s Settings) IsConfigured() bool {
	return s.APIKey != ""
}

// NewEmbeddingService creates an embedding service from settings.
// Returns (nil, nil) when no provider is configured.
func NewEmbeddingService(settings Settings) (driven.EmbeddingService, error) {
	if !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case ProviderOpenAI, "":
		return newOpenAIEmbedding(settings)
	case ProviderAzure:
		return newAzureEmbedding(settings)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, settings.Provider)
	}
}

// NewLLMService creates an LLM service from settings.
// Returns (nil, nil) when no provider is configured.
func NewLLMService(settings Settings) (driven.LLMService, error) {
	if !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case ProviderOpenAI, "":
		return newOpenAILLM(settings)
	case ProviderAzure:
		return newAzureLLM(settings)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, settings.Provider)
	}
}
