package domain

import (
	"context"
	"encoding/json"
)

// Provider sends validated requests to the completion API.
type Provider interface {
	// Complete sends a request and returns the raw response body.
	Complete(ctx context.Context, cfg *RequestConfig) (json.RawMessage, error)

	// Stream sends a request and returns a stream of chunks.
	Stream(ctx context.Context, cfg *RequestConfig) (<-chan StreamChunk, error)

	// Name returns the provider identifier.
	Name() string
}

// Validator enforces the request and response contracts.
type Validator interface {
	ValidateConfig(input any) (*RequestConfig, error)
	ValidateResponseJSON(data []byte) (*ChatCompletionResponse, error)
}

// DiagnosticSink records trace and error events in the diagnostic trail.
type DiagnosticSink interface {
	// Trace records an informational event. data is dumped in debug mode.
	Trace(ctx context.Context, message string, data any)

	// Error records a failure. err may be an error or any other value.
	Error(ctx context.Context, message string, err any)
}
