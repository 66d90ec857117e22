// Package validation enforces the Perplexity request and response contracts.
//
// Every declared field is checked and every violation is reported; a caller
// either gets a typed value or a *ValidationError listing all of them. The
// request config contract is strict (unknown keys are violations); the
// message and response contracts ignore undeclared keys.
package validation

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/davidbz/sonargate/internal/domain"
	"github.com/davidbz/sonargate/internal/policy"
)

//nolint:gochecknoglobals // Contract tables are immutable after init.
var (
	messageSchema = &objectSchema{
		fields: []field{
			{key: "role", required: true, check: oneOf(domain.Roles())},
			{key: "content", required: true, check: stringValue()},
		},
		build: buildMessage,
	}

	configSchema = &objectSchema{
		strict: true,
		fields: []field{
			{key: "model", required: true, check: stringValue()},
			{key: "messages", required: true, check: arrayOf(object(messageSchema))},
			{key: "maxTokens", check: integer(greaterThan(0))},
			{key: "temperature", check: number(atLeast(policy.MinTemperature), atMost(policy.MaxTemperature))},
			{key: "topP", check: number(atLeast(policy.MinTopP), atMost(policy.MaxTopP))},
			{key: "searchDomainFilter", check: arrayOf(stringValue(), maxItems(policy.MaxSearchDomains))},
			{key: "returnImages", check: booleanValue()},
			{key: "returnRelatedQuestions", check: booleanValue()},
			{key: "searchRecencyFilter", check: oneOf(domain.RecencyFilters())},
			{key: "topK", check: integer(atLeast(policy.MinTopK), atMost(policy.MaxTopK))},
			{key: "stream", check: booleanValue()},
			{key: "presencePenalty", check: number(atLeast(policy.MinPresencePenalty), atMost(policy.MaxPresencePenalty))},
			{key: "frequencyPenalty", check: number(greaterThan(0))},
		},
		build: buildConfig,
	}

	usageSchema = &objectSchema{
		fields: []field{
			{key: "prompt_tokens", required: true, check: integer(atLeast(0))},
			{key: "completion_tokens", required: true, check: integer(atLeast(0))},
			{key: "total_tokens", required: true, check: integer(atLeast(0))},
		},
		build: buildUsage,
	}

	choiceSchema = &objectSchema{
		fields: []field{
			{key: "index", required: true, check: integer(atLeast(0))},
			{key: "message", required: true, check: object(messageSchema)},
			{key: "finish_reason", required: true, check: stringValue()},
		},
		build: buildChoice,
	}

	responseSchema = &objectSchema{
		fields: []field{
			{key: "id", required: true, check: stringValue()},
			{key: "choices", required: true, check: arrayOf(object(choiceSchema), minItems(1))},
			{key: "usage", required: true, check: object(usageSchema)},
		},
		build: buildResponse,
	}
)

// ValidateConfig applies the strict request config contract.
func ValidateConfig(input any) (*domain.RequestConfig, error) {
	out, err := validateRoot("config", configSchema, input)
	if err != nil {
		return nil, err
	}
	cfg, _ := out.(*domain.RequestConfig)
	return cfg, nil
}

// ValidateMessage applies the message contract.
func ValidateMessage(input any) (*domain.Message, error) {
	out, err := validateRoot("message", messageSchema, input)
	if err != nil {
		return nil, err
	}
	msg, _ := out.(domain.Message)
	return &msg, nil
}

// ValidateResponse applies the chat completion response contract.
func ValidateResponse(input any) (*domain.ChatCompletionResponse, error) {
	out, err := validateRoot("response", responseSchema, input)
	if err != nil {
		return nil, err
	}
	resp, _ := out.(*domain.ChatCompletionResponse)
	return resp, nil
}

// ValidateResponseJSON decodes a raw response body and validates it.
func ValidateResponseJSON(data []byte) (*domain.ChatCompletionResponse, error) {
	value, err := decode(data)
	if err != nil {
		return nil, newRootError("response", fmt.Sprintf("malformed JSON: %v", err))
	}
	return ValidateResponse(value)
}

// Validator exposes the package functions behind domain.Validator.
type Validator struct{}

// NewValidator creates a new validator (DI constructor).
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateConfig applies the strict request config contract.
func (v *Validator) ValidateConfig(input any) (*domain.RequestConfig, error) {
	return ValidateConfig(input)
}

// ValidateMessage applies the message contract.
func (v *Validator) ValidateMessage(input any) (*domain.Message, error) {
	return ValidateMessage(input)
}

// ValidateResponse applies the chat completion response contract.
func (v *Validator) ValidateResponse(input any) (*domain.ChatCompletionResponse, error) {
	return ValidateResponse(input)
}

// ValidateResponseJSON decodes a raw response body and validates it.
func (v *Validator) ValidateResponseJSON(data []byte) (*domain.ChatCompletionResponse, error) {
	return ValidateResponseJSON(data)
}

func validateRoot(subject string, schema *objectSchema, input any) (any, error) {
	value, err := normalize(input)
	if err != nil {
		return nil, newRootError(subject, fmt.Sprintf("%s is not JSON-compatible: %v", subject, err))
	}

	switch value.(type) {
	case nil:
		return nil, newRootError(subject, subject+" object is required")
	case map[string]any:
	default:
		return nil, newRootError(subject, subject+" must be an object")
	}

	var errs violations
	out, ok := schema.check("", value, &errs)
	if !ok {
		return nil, &ValidationError{Subject: subject, Violations: errs}
	}
	return out, nil
}

// normalize turns arbitrary Go values into the decoded-JSON shapes the
// checkers understand. Decoded JSON passes through untouched.
func normalize(input any) (any, error) {
	switch v := input.(type) {
	case nil, string, bool, json.Number:
		return v, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			n, err := normalize(item)
			if err != nil {
				return nil, err
			}
			out[key] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			n, err := normalize(item)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	}

	if _, ok := asNumber(input); ok {
		return input, nil
	}

	data, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}
	return decode(data)
}

func decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}
	return value, nil
}

func buildMessage(values map[string]any) any {
	role, _ := values["role"].(string)
	content, _ := values["content"].(string)
	return domain.Message{Role: domain.Role(role), Content: content}
}

func buildConfig(values map[string]any) any {
	model, _ := values["model"].(string)
	cfg := &domain.RequestConfig{
		Model:                  model,
		Messages:               collect[domain.Message](values["messages"]),
		MaxTokens:              optional[int](values, "maxTokens"),
		Temperature:            optional[float64](values, "temperature"),
		TopP:                   optional[float64](values, "topP"),
		TopK:                   optional[int](values, "topK"),
		ReturnImages:           optional[bool](values, "returnImages"),
		ReturnRelatedQuestions: optional[bool](values, "returnRelatedQuestions"),
		Stream:                 optional[bool](values, "stream"),
		PresencePenalty:        optional[float64](values, "presencePenalty"),
		FrequencyPenalty:       optional[float64](values, "frequencyPenalty"),
	}

	if _, ok := values["searchDomainFilter"]; ok {
		cfg.SearchDomainFilter = collect[string](values["searchDomainFilter"])
	}

	if s := optional[string](values, "searchRecencyFilter"); s != nil {
		filter := domain.RecencyFilter(*s)
		cfg.SearchRecencyFilter = &filter
	}

	return cfg
}

func buildUsage(values map[string]any) any {
	prompt, _ := values["prompt_tokens"].(int)
	completion, _ := values["completion_tokens"].(int)
	total, _ := values["total_tokens"].(int)
	return domain.Usage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: total}
}

func buildChoice(values map[string]any) any {
	index, _ := values["index"].(int)
	msg, _ := values["message"].(domain.Message)
	reason, _ := values["finish_reason"].(string)
	return domain.Choice{Index: index, Message: msg, FinishReason: reason}
}

func buildResponse(values map[string]any) any {
	id, _ := values["id"].(string)
	usage, _ := values["usage"].(domain.Usage)
	return &domain.ChatCompletionResponse{
		ID:      id,
		Choices: collect[domain.Choice](values["choices"]),
		Usage:   usage,
	}
}

func optional[T any](values map[string]any, key string) *T {
	v, ok := values[key].(T)
	if !ok {
		return nil
	}
	return &v
}

func collect[T any](value any) []T {
	items, _ := value.([]any)
	out := make([]T, 0, len(items))
	for _, item := range items {
		if v, ok := item.(T); ok {
			out = append(out, v)
		}
	}
	return out
}
