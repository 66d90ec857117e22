// Package perplexity sends validated requests to the Perplexity chat
// completion API. The API is OpenAI-compatible, so the official OpenAI SDK
// is used with Perplexity-only parameters attached as extra JSON fields.
package perplexity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/davidbz/sonargate/internal/domain"
	"github.com/davidbz/sonargate/internal/observability"
	"github.com/davidbz/sonargate/internal/policy"
)

const providerName = "perplexity"

// Provider implements domain.Provider for Perplexity.
type Provider struct {
	client     openai.Client
	constants  policy.Constants
	maxRetries int
	retryDelay time.Duration
}

// NewProvider creates a new Perplexity provider. The SDK's own retries are
// disabled; Complete retries with the fixed policy delay instead.
func NewProvider(config Config, constants policy.Constants) (*Provider, error) {
	if config.APIKey == "" {
		return nil, errors.New("Perplexity API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithBaseURL(constants.BaseURL),
		option.WithMaxRetries(0),
	}

	if constants.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(constants.Timeout))
	}

	return &Provider{
		client:     openai.NewClient(opts...),
		constants:  constants,
		maxRetries: max(constants.MaxRetries, 0),
		retryDelay: constants.RetryDelay,
	}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return providerName
}

// Complete sends a non-streaming request and returns the raw response body.
func (p *Provider) Complete(ctx context.Context, cfg *domain.RequestConfig) (json.RawMessage, error) {
	if cfg == nil {
		return nil, errors.New("request cannot be nil")
	}

	logger := observability.FromContext(ctx)
	params, opts := p.toSDKParams(cfg)

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			logger.Debug("retrying Perplexity API call",
				observability.Int("attempt", attempt),
				observability.Int("max_retries", p.maxRetries),
				observability.Duration("delay", p.retryDelay))

			timer := time.NewTimer(p.retryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, fmt.Errorf("Perplexity API call cancelled: %w", ctx.Err())
			case <-timer.C:
			}
		}

		resp, err := p.client.Chat.Completions.New(ctx, params, opts...)
		if err == nil {
			logger.Debug("Perplexity API call succeeded",
				observability.Int("attempt", attempt),
				observability.Int("prompt_tokens", int(resp.Usage.PromptTokens)),
				observability.Int("completion_tokens", int(resp.Usage.CompletionTokens)))
			return json.RawMessage(resp.RawJSON()), nil
		}

		lastErr = err
		logger.Warn("Perplexity API call failed",
			observability.Int("attempt", attempt),
			observability.Error(err))

		if !shouldRetry(err) {
			break
		}
	}

	return nil, fmt.Errorf("Perplexity API call failed: %w", lastErr)
}

// Stream sends a completion request and returns a stream of chunks.
func (p *Provider) Stream(ctx context.Context, cfg *domain.RequestConfig) (<-chan domain.StreamChunk, error) {
	if cfg == nil {
		return nil, errors.New("request cannot be nil")
	}

	logger := observability.FromContext(ctx)
	logger.Debug("calling Perplexity streaming API")

	params, opts := p.toSDKParams(cfg)
	stream := p.client.Chat.Completions.NewStreaming(ctx, params, opts...)

	chunks := make(chan domain.StreamChunk)

	go func() {
		defer close(chunks)
		defer stream.Close()
		defer logger.Debug("Perplexity stream completed")

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}

			done := chunk.Choices[0].FinishReason != ""
			chunks <- domain.StreamChunk{
				Delta: chunk.Choices[0].Delta.Content,
				Done:  done,
				Error: nil,
			}

			if done {
				return
			}
		}

		if err := stream.Err(); err != nil && !errors.Is(err, io.EOF) {
			chunks <- domain.StreamChunk{
				Delta: "",
				Done:  false,
				Error: fmt.Errorf("Perplexity stream error: %w", err),
			}
		}
	}()

	return chunks, nil
}

// toSDKParams converts a validated config to SDK parameters. Fields the SDK
// does not model are attached as extra JSON keys.
func (p *Provider) toSDKParams(cfg *domain.RequestConfig) (openai.ChatCompletionNewParams, []option.RequestOption) {
	messages := make([]openai.ChatCompletionMessageParamUnion, len(cfg.Messages))
	for i, msg := range cfg.Messages {
		switch msg.Role {
		case domain.RoleSystem:
			messages[i] = openai.SystemMessage(msg.Content)
		case domain.RoleAssistant:
			messages[i] = openai.AssistantMessage(msg.Content)
		default:
			messages[i] = openai.UserMessage(msg.Content)
		}
	}

	model := cfg.Model
	if model == "" {
		model = p.constants.DefaultModel
	}

	//nolint:exhaustruct // OpenAI SDK struct has many optional fields
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    messages,
		Temperature: openai.Float(valueOr(cfg.Temperature, p.constants.DefaultTemperature)),
		TopP:        openai.Float(valueOr(cfg.TopP, p.constants.DefaultTopP)),
	}

	if cfg.MaxTokens != nil {
		params.MaxTokens = openai.Int(int64(*cfg.MaxTokens))
	}
	if cfg.PresencePenalty != nil {
		params.PresencePenalty = openai.Float(*cfg.PresencePenalty)
	}
	if cfg.FrequencyPenalty != nil {
		params.FrequencyPenalty = openai.Float(*cfg.FrequencyPenalty)
	}

	opts := []option.RequestOption{
		option.WithJSONSet("top_k", valueOr(cfg.TopK, p.constants.DefaultTopK)),
	}
	if cfg.SearchDomainFilter != nil {
		opts = append(opts, option.WithJSONSet("search_domain_filter", cfg.SearchDomainFilter))
	}
	if cfg.ReturnImages != nil {
		opts = append(opts, option.WithJSONSet("return_images", *cfg.ReturnImages))
	}
	if cfg.ReturnRelatedQuestions != nil {
		opts = append(opts, option.WithJSONSet("return_related_questions", *cfg.ReturnRelatedQuestions))
	}
	if cfg.SearchRecencyFilter != nil {
		opts = append(opts, option.WithJSONSet("search_recency_filter", string(*cfg.SearchRecencyFilter)))
	}

	return params, opts
}

// shouldRetry retries rate limits, server errors and transport failures,
// but never a cancelled or expired context.
func shouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError
	}

	return true
}

func valueOr[T any](v *T, fallback T) T {
	if v == nil {
		return fallback
	}
	return *v
}
