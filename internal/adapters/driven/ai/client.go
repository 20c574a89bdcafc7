// Package ai implements the embedding and LLM driven ports against
// OpenAI-compatible HTTP APIs (OpenAI and Azure OpenAI).
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/helpdesk-labs/concierge-core/internal/core/domain"
)

const defaultTimeout = 60 * time.Second

// apiError is an error reported by the provider, as opposed to a
// transport failure. 4xx errors are permanent: they are never retried.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("provider error (status %d): %s", e.Status, e.Message)
}

func (e *apiError) transient() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// Is marks permanent rejections as domain.ErrProviderRejected so
// callers can skip their own retries.
func (e *apiError) Is(target error) bool {
	return target == domain.ErrProviderRejected && !e.transient()
}

// transient reports whether the failure is worth one retry.
// Network errors and 429/5xx responses are transient; other provider
// errors (invalid input, bad key) are permanent.
func transient(err error) bool {
	if apiErr, ok := err.(*apiError); ok {
		return apiErr.transient()
	}
	return true
}

// postJSON sends one JSON request with a single retry on transient
// failure, decoding the response body into out.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, reqBody, out interface{}) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		lastErr = doPost(ctx, client, url, headers, body, out)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !transient(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func doPost(ctx context.Context, client *http.Client, url string, headers map[string]string, body []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errBody struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.Unmarshal(data, &errBody)
		message := errBody.Error.Message
		if message == "" {
			message = string(data)
		}
		return &apiError{Status: resp.StatusCode, Message: message}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
