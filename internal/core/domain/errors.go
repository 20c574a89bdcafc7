package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrParse indicates a source file could not be parsed
	ErrParse = errors.New("parse error")

	// ErrIndexUnavailable indicates the vector index backend is unreachable
	ErrIndexUnavailable = errors.New("index unavailable")

	// ErrEmptyResponse indicates the model returned no usable content
	ErrEmptyResponse = errors.New("empty model response")

	// ErrInvalidPlan indicates the model produced a query plan outside the allowed schema
	ErrInvalidPlan = errors.New("invalid query plan")

	// ErrInvalidProvider indicates an unknown AI provider was specified
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrServiceUnavailable indicates an AI service is not configured or unreachable
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrProviderRejected indicates the provider rejected the request
	// outright; retrying the same request cannot succeed
	ErrProviderRejected = errors.New("request rejected by provider")

	// ErrRefreshInProgress indicates an index refresh is already running
	ErrRefreshInProgress = errors.New("refresh already in progress")
)
