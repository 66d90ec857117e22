package perplexity_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/sonargate/internal/domain"
	"github.com/davidbz/sonargate/internal/policy"
	"github.com/davidbz/sonargate/internal/provider/perplexity"
)

const completionBody = `{
	"id": "resp-1",
	"object": "chat.completion",
	"created": 1700000000,
	"model": "llama-3.1-sonar-small-128k-online",
	"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Hi"}}],
	"usage": {"prompt_tokens": 4, "completion_tokens": 1, "total_tokens": 5}
}`

func testConstants() policy.Constants {
	c := policy.Defaults()
	c.RetryDelay = time.Millisecond
	c.Timeout = 5 * time.Second
	return c
}

func newTestProvider(t *testing.T, handler http.HandlerFunc) *perplexity.Provider {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	constants := testConstants()
	constants.BaseURL = server.URL

	provider, err := perplexity.NewProvider(perplexity.Config{APIKey: "pplx-test"}, constants)
	require.NoError(t, err)

	return provider
}

func ptr[T any](v T) *T {
	return &v
}

func TestNewProvider(t *testing.T) {
	t.Run("should require an API key", func(t *testing.T) {
		provider, err := perplexity.NewProvider(perplexity.Config{}, policy.Defaults())

		require.Error(t, err)
		require.Nil(t, provider)
		require.Contains(t, err.Error(), "Perplexity API key is required")
	})

	t.Run("should fall back to the policy base URL", func(t *testing.T) {
		provider, err := perplexity.NewProvider(perplexity.Config{APIKey: "k"}, policy.Defaults())

		require.NoError(t, err)
		require.Equal(t, "perplexity", provider.Name())
	})
}

func TestProvider_Complete(t *testing.T) {
	t.Run("should send Perplexity parameters and return the raw body", func(t *testing.T) {
		var body map[string]any
		provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			require.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
			require.Equal(t, "Bearer pplx-test", r.Header.Get("Authorization"))

			data, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(data, &body))

			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, completionBody)
		})

		recency := domain.RecencyWeek
		raw, err := provider.Complete(context.Background(), &domain.RequestConfig{
			Model: "sonar",
			Messages: []domain.Message{
				{Role: domain.RoleSystem, Content: "be brief"},
				{Role: domain.RoleUser, Content: "Hello"},
			},
			MaxTokens:           ptr(128),
			TopK:                ptr(40),
			SearchDomainFilter:  []string{"go.dev"},
			ReturnImages:        ptr(true),
			SearchRecencyFilter: &recency,
			FrequencyPenalty:    ptr(1.0),
		})

		require.NoError(t, err)
		require.JSONEq(t, completionBody, string(raw))

		require.Equal(t, "sonar", body["model"])
		require.InDelta(t, 0.2, body["temperature"], 1e-9)
		require.InDelta(t, 0.9, body["top_p"], 1e-9)
		require.InDelta(t, 128, body["max_tokens"], 1e-9)
		require.InDelta(t, 40, body["top_k"], 1e-9)
		require.InDelta(t, 1, body["frequency_penalty"], 1e-9)
		require.Equal(t, []any{"go.dev"}, body["search_domain_filter"])
		require.Equal(t, true, body["return_images"])
		require.Equal(t, "week", body["search_recency_filter"])
		require.NotContains(t, body, "return_related_questions")
		require.Len(t, body["messages"], 2)
	})

	t.Run("should use the default model when none is given", func(t *testing.T) {
		var model any
		provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			model = body["model"]

			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, completionBody)
		})

		_, err := provider.Complete(context.Background(), &domain.RequestConfig{Messages: []domain.Message{}})

		require.NoError(t, err)
		require.Equal(t, policy.DefaultModel, model)
	})

	t.Run("should retry server errors up to the policy limit", func(t *testing.T) {
		var calls atomic.Int32
		provider := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, completionBody)
		})

		_, err := provider.Complete(context.Background(), &domain.RequestConfig{Model: "sonar"})

		require.NoError(t, err)
		require.Equal(t, int32(3), calls.Load())
	})

	t.Run("should give up after max retries", func(t *testing.T) {
		var calls atomic.Int32
		provider := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusTooManyRequests)
		})

		_, err := provider.Complete(context.Background(), &domain.RequestConfig{Model: "sonar"})

		require.Error(t, err)
		require.Contains(t, err.Error(), "Perplexity API call failed")
		require.Equal(t, int32(policy.MaxRetries+1), calls.Load())
	})

	t.Run("should not retry client errors", func(t *testing.T) {
		var calls atomic.Int32
		provider := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":{"message":"bad request"}}`)
		})

		_, err := provider.Complete(context.Background(), &domain.RequestConfig{Model: "sonar"})

		require.Error(t, err)
		require.Equal(t, int32(1), calls.Load())
	})

	t.Run("should reject a nil config", func(t *testing.T) {
		provider, err := perplexity.NewProvider(perplexity.Config{APIKey: "k"}, policy.Defaults())
		require.NoError(t, err)

		_, err = provider.Complete(context.Background(), nil)

		require.ErrorContains(t, err, "request cannot be nil")
	})
}

func TestProvider_Stream(t *testing.T) {
	t.Run("should forward deltas until finish", func(t *testing.T) {
		provider := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			for i, delta := range []string{"Hel", "lo"} {
				finish := "null"
				if i == 1 {
					finish = `"stop"`
				}
				fmt.Fprintf(w, "data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"created\":1,"+
					"\"model\":\"sonar\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q},\"finish_reason\":%s}]}\n\n",
					delta, finish)
			}
			_, _ = io.WriteString(w, "data: [DONE]\n\n")
		})

		chunks, err := provider.Stream(context.Background(), &domain.RequestConfig{Model: "sonar", Stream: ptr(true)})
		require.NoError(t, err)

		var got []domain.StreamChunk
		for chunk := range chunks {
			got = append(got, chunk)
		}

		require.Equal(t, []domain.StreamChunk{
			{Delta: "Hel", Done: false},
			{Delta: "lo", Done: true},
		}, got)
	})
}
