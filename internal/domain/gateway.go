package domain

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/davidbz/sonargate/internal/diagnostics"
	"github.com/davidbz/sonargate/internal/observability"
)

// GatewayService gates requests and responses through the contracts and
// records every step in the diagnostic trail.
type GatewayService struct {
	provider  Provider
	validator Validator
	trail     DiagnosticSink
}

// NewGatewayService creates a new gateway service (DI constructor).
func NewGatewayService(provider Provider, validator Validator, trail DiagnosticSink) *GatewayService {
	return &GatewayService{
		provider:  provider,
		validator: validator,
		trail:     trail,
	}
}

// Validate applies the request contract to raw input. Violations are
// recorded and returned unchanged.
func (g *GatewayService) Validate(ctx context.Context, raw any) (*RequestConfig, error) {
	cfg, err := g.validator.ValidateConfig(raw)
	if err != nil {
		g.trail.Error(ctx, diagnostics.MsgValidationError, err)
		return nil, err
	}

	g.trail.Trace(ctx, diagnostics.MsgValidationComplete, cfg)
	return cfg, nil
}

// Complete validates raw input, calls the provider and validates its answer.
// Invalid input never reaches the provider.
func (g *GatewayService) Complete(ctx context.Context, raw any) (*ChatCompletionResponse, error) {
	cfg, err := g.Validate(ctx, raw)
	if err != nil {
		return nil, err
	}

	if cfg.IsStream() {
		return nil, errors.New("streaming requests must use Stream")
	}

	logger := observability.FromContext(observability.WithModel(ctx, cfg.Model))
	fields := []zap.Field{
		observability.String("provider", g.provider.Name()),
		observability.Int("message_count", len(cfg.Messages)),
	}
	if cfg.Temperature != nil {
		fields = append(fields, observability.Float64("temperature", *cfg.Temperature))
	}
	logger.Info("calling provider", fields...)

	g.trail.Trace(ctx, diagnostics.MsgAPIRequestStart, cfg)

	body, err := g.provider.Complete(ctx, cfg)
	if err != nil {
		g.trail.Error(ctx, diagnostics.MsgAPIError, err)
		logger.Error("completion failed", observability.Error(err))
		return nil, fmt.Errorf("completion failed: %w", err)
	}

	response, err := g.validator.ValidateResponseJSON(body)
	if err != nil {
		g.trail.Error(ctx, diagnostics.MsgValidationError, err)
		logger.Error("provider returned an invalid response", observability.Error(err))
		return nil, fmt.Errorf("invalid provider response: %w", err)
	}

	g.trail.Trace(ctx, diagnostics.MsgAPIResponseReceived, response)
	logger.Info("completion succeeded",
		observability.String("response_id", response.ID),
		observability.Int("total_tokens", response.Usage.TotalTokens))

	return response, nil
}

// Stream validates raw input and opens a streaming completion.
func (g *GatewayService) Stream(ctx context.Context, raw any) (<-chan StreamChunk, error) {
	cfg, err := g.Validate(ctx, raw)
	if err != nil {
		return nil, err
	}

	g.trail.Trace(ctx, diagnostics.MsgAPIRequestStart, cfg)

	chunks, err := g.provider.Stream(ctx, cfg)
	if err != nil {
		g.trail.Error(ctx, diagnostics.MsgAPIError, err)
		return nil, fmt.Errorf("failed to stream from provider: %w", err)
	}
	return chunks, nil
}
