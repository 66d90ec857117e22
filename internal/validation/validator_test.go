package validation_test

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/sonargate/internal/domain"
	"github.com/davidbz/sonargate/internal/validation"
)

func validConfig() map[string]any {
	return map[string]any{
		"model": "llama-3.1-sonar-small-128k-online",
		"messages": []any{
			map[string]any{"role": "user", "content": "Hello"},
		},
	}
}

func requireViolation(t *testing.T, err error, path string) *validation.ValidationError {
	t.Helper()

	require.Error(t, err)
	require.ErrorIs(t, err, validation.ErrInvalid)

	var vErr *validation.ValidationError
	require.True(t, errors.As(err, &vErr))
	require.Contains(t, vErr.Paths(), path)

	return vErr
}

func TestValidateConfig(t *testing.T) {
	t.Run("should accept a minimal config", func(t *testing.T) {
		cfg, err := validation.ValidateConfig(validConfig())

		require.NoError(t, err)
		require.Equal(t, "llama-3.1-sonar-small-128k-online", cfg.Model)
		require.Equal(t, []domain.Message{{Role: domain.RoleUser, Content: "Hello"}}, cfg.Messages)
		require.Nil(t, cfg.Temperature)
		require.Nil(t, cfg.SearchDomainFilter)
	})

	t.Run("should reject an unrecognized key", func(t *testing.T) {
		vErr := requireViolation(t, configErr(map[string]any{
			"model":    "x",
			"messages": []any{},
			"extra":    true,
		}), "extra")

		require.Len(t, vErr.Violations, 1)
		require.Equal(t, "unrecognized key", vErr.Violations[0].Constraint)
		require.Contains(t, vErr.Error(), "extra")
	})

	t.Run("should reject every unrecognized key", func(t *testing.T) {
		for _, key := range []string{"max_tokens", "top_p", "n", "user", "Model"} {
			cfg := validConfig()
			cfg[key] = 1

			requireViolation(t, configErr(cfg), key)
		}
	})

	t.Run("should accept empty messages", func(t *testing.T) {
		cfg, err := validation.ValidateConfig(map[string]any{"model": "x", "messages": []any{}})

		require.NoError(t, err)
		require.NotNil(t, cfg.Messages)
		require.Empty(t, cfg.Messages)
	})

	t.Run("should require model and messages", func(t *testing.T) {
		vErr := requireViolation(t, configErr(map[string]any{}), "model")

		require.Contains(t, vErr.Paths(), "messages")
		require.Equal(t, "required", vErr.Violations[0].Constraint)
	})

	t.Run("should reject a model of the wrong type", func(t *testing.T) {
		cfg := validConfig()
		cfg["model"] = 42

		vErr := requireViolation(t, configErr(cfg), "model")
		require.Equal(t, "expected string, received number", vErr.Violations[0].Constraint)
	})

	t.Run("should check temperature bounds", func(t *testing.T) {
		tests := []struct {
			value float64
			valid bool
		}{
			{value: 0, valid: true},
			{value: 1.5, valid: true},
			{value: 2, valid: true},
			{value: 3, valid: false},
			{value: -0.1, valid: false},
		}

		for _, tt := range tests {
			cfg := validConfig()
			cfg["temperature"] = tt.value

			got, err := validation.ValidateConfig(cfg)
			if tt.valid {
				require.NoError(t, err, "temperature %v", tt.value)
				require.InDelta(t, tt.value, *got.Temperature, 1e-9)
				continue
			}
			requireViolation(t, err, "temperature")
		}
	})

	t.Run("should cap the search domain filter at three entries", func(t *testing.T) {
		cfg := validConfig()
		cfg["searchDomainFilter"] = []any{"a.com", "b.com", "c.com"}

		got, err := validation.ValidateConfig(cfg)
		require.NoError(t, err)
		require.Equal(t, []string{"a.com", "b.com", "c.com"}, got.SearchDomainFilter)

		cfg["searchDomainFilter"] = []any{"a.com", "b.com", "c.com", "d.com"}
		vErr := requireViolation(t, configErr(cfg), "searchDomainFilter")
		require.Equal(t, "must contain at most 3 item(s)", vErr.Violations[0].Constraint)
	})

	t.Run("should check integer fields", func(t *testing.T) {
		cfg := validConfig()
		cfg["maxTokens"] = 0
		cfg["topK"] = 2049

		vErr := requireViolation(t, configErr(cfg), "maxTokens")
		require.Contains(t, vErr.Paths(), "topK")

		cfg["maxTokens"] = 10.5
		cfg["topK"] = 2048
		vErr = requireViolation(t, configErr(cfg), "maxTokens")
		require.Equal(t, "expected integer, received float", vErr.Violations[0].Constraint)
	})

	t.Run("should keep large integers exact", func(t *testing.T) {
		for _, raw := range []string{"9007199254740993", "9223372036854775807"} {
			got, err := validation.ValidateConfig(decodeJSON(t,
				`{"model":"x","messages":[],"maxTokens":`+raw+`}`))

			require.NoError(t, err, raw)
			require.Equal(t, raw, strconv.Itoa(*got.MaxTokens))

			again, err := validation.ValidateConfig(got)
			require.NoError(t, err)
			require.Equal(t, *got.MaxTokens, *again.MaxTokens)
		}
	})

	t.Run("should reject integers outside the int range", func(t *testing.T) {
		for _, raw := range []string{"9223372036854775808", "1e20", "1e400"} {
			vErr := requireViolation(t, configErr(decodeJSON(t,
				`{"model":"x","messages":[],"maxTokens":`+raw+`}`)), "maxTokens")

			require.Equal(t, "must be less than or equal to 9223372036854775807",
				vErr.Violations[0].Constraint, raw)
		}

		vErr := requireViolation(t, configErr(decodeJSON(t,
			`{"model":"x","messages":[],"topK":-1e20}`)), "topK")
		require.Equal(t, "must be greater than or equal to -9223372036854775808", vErr.Violations[0].Constraint)
	})

	t.Run("should check penalties and sampling", func(t *testing.T) {
		cfg := validConfig()
		cfg["presencePenalty"] = -2.5
		cfg["frequencyPenalty"] = 0
		cfg["topP"] = 1.1

		vErr := requireViolation(t, configErr(cfg), "presencePenalty")
		require.Contains(t, vErr.Paths(), "frequencyPenalty")
		require.Contains(t, vErr.Paths(), "topP")
	})

	t.Run("should check the recency filter enum", func(t *testing.T) {
		cfg := validConfig()
		cfg["searchRecencyFilter"] = "year"

		requireViolation(t, configErr(cfg), "searchRecencyFilter")

		cfg["searchRecencyFilter"] = "week"
		got, err := validation.ValidateConfig(cfg)
		require.NoError(t, err)
		require.Equal(t, domain.RecencyWeek, *got.SearchRecencyFilter)
	})

	t.Run("should report nested message violations with their path", func(t *testing.T) {
		cfg := validConfig()
		cfg["messages"] = []any{
			map[string]any{"role": "user", "content": "ok"},
			map[string]any{"role": "bot", "content": 7},
		}

		vErr := requireViolation(t, configErr(cfg), "messages[1].role")
		require.Contains(t, vErr.Paths(), "messages[1].content")
	})

	t.Run("should aggregate every violation", func(t *testing.T) {
		vErr := requireViolation(t, configErr(map[string]any{
			"model":       "x",
			"messages":    []any{},
			"temperature": 3,
			"topK":        -1,
			"stream":      "yes",
			"unknown":     1,
		}), "temperature")

		require.ElementsMatch(t, []string{"temperature", "topK", "stream", "unknown"}, vErr.Paths())
	})

	t.Run("should reject a missing or non-object config", func(t *testing.T) {
		vErr := requireViolation(t, configErr(nil), "(root)")
		require.Equal(t, "config object is required", vErr.Violations[0].Constraint)

		vErr = requireViolation(t, configErr([]any{1}), "(root)")
		require.Equal(t, "config must be an object", vErr.Violations[0].Constraint)
	})

	t.Run("should accept a fully populated config decoded from JSON", func(t *testing.T) {
		raw := `{
			"model": "sonar",
			"messages": [{"role": "system", "content": ""}, {"role": "user", "content": "hi"}],
			"maxTokens": 512,
			"temperature": 0.2,
			"topP": 0.9,
			"topK": 0,
			"searchDomainFilter": ["go.dev"],
			"returnImages": false,
			"returnRelatedQuestions": true,
			"searchRecencyFilter": "day",
			"stream": false,
			"presencePenalty": 0,
			"frequencyPenalty": 1
		}`

		var input any
		require.NoError(t, json.Unmarshal([]byte(raw), &input))

		cfg, err := validation.ValidateConfig(input)

		require.NoError(t, err)
		require.Equal(t, 512, *cfg.MaxTokens)
		require.Equal(t, 0, *cfg.TopK)
		require.False(t, *cfg.ReturnImages)
		require.True(t, *cfg.ReturnRelatedQuestions)
		require.False(t, cfg.IsStream())
		require.Equal(t, "", cfg.Messages[0].Content)
	})

	t.Run("should round-trip a valid config losslessly", func(t *testing.T) {
		cfg := validConfig()
		cfg["temperature"] = 1.5
		cfg["topK"] = 40
		cfg["searchDomainFilter"] = []any{"go.dev"}
		cfg["searchRecencyFilter"] = "hour"

		first, err := validation.ValidateConfig(cfg)
		require.NoError(t, err)

		second, err := validation.ValidateConfig(first)
		require.NoError(t, err)
		require.Equal(t, first, second)
	})
}

func TestValidateMessage(t *testing.T) {
	t.Run("should accept every role", func(t *testing.T) {
		for _, role := range domain.Roles() {
			msg, err := validation.ValidateMessage(map[string]any{"role": string(role), "content": ""})

			require.NoError(t, err)
			require.Equal(t, role, msg.Role)
		}
	})

	t.Run("should reject an unknown role", func(t *testing.T) {
		_, err := validation.ValidateMessage(map[string]any{"role": "tool", "content": "x"})

		requireViolation(t, err, "role")
	})

	t.Run("should require string content", func(t *testing.T) {
		_, err := validation.ValidateMessage(map[string]any{"role": "user"})
		requireViolation(t, err, "content")

		_, err = validation.ValidateMessage(map[string]any{"role": "user", "content": nil})
		requireViolation(t, err, "content")
	})

	t.Run("should ignore undeclared keys", func(t *testing.T) {
		msg, err := validation.ValidateMessage(map[string]any{"role": "assistant", "content": "x", "name": "bob"})

		require.NoError(t, err)
		require.Equal(t, domain.Message{Role: domain.RoleAssistant, Content: "x"}, *msg)
	})

	t.Run("should accept a typed message", func(t *testing.T) {
		in := domain.Message{Role: domain.RoleSystem, Content: "be brief"}

		msg, err := validation.ValidateMessage(in)

		require.NoError(t, err)
		require.Equal(t, in, *msg)
	})
}

const validResponseJSON = `{
	"id": "resp-1",
	"model": "sonar",
	"object": "chat.completion",
	"created": 1700000000,
	"citations": ["https://go.dev"],
	"choices": [
		{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Hi there"}}
	],
	"usage": {"prompt_tokens": 5, "completion_tokens": 3, "total_tokens": 8}
}`

func TestValidateResponse(t *testing.T) {
	t.Run("should accept a valid response and drop undeclared keys", func(t *testing.T) {
		resp, err := validation.ValidateResponseJSON([]byte(validResponseJSON))

		require.NoError(t, err)
		require.Equal(t, &domain.ChatCompletionResponse{
			ID: "resp-1",
			Choices: []domain.Choice{{
				Index:        0,
				Message:      domain.Message{Role: domain.RoleAssistant, Content: "Hi there"},
				FinishReason: "stop",
			}},
			Usage: domain.Usage{PromptTokens: 5, CompletionTokens: 3, TotalTokens: 8},
		}, resp)
	})

	t.Run("should reject empty choices", func(t *testing.T) {
		_, err := validation.ValidateResponse(map[string]any{
			"id":      "resp-1",
			"choices": []any{},
			"usage":   map[string]any{"prompt_tokens": 0, "completion_tokens": 0, "total_tokens": 0},
		})

		vErr := requireViolation(t, err, "choices")
		require.Equal(t, "must contain at least 1 item(s)", vErr.Violations[0].Constraint)
	})

	t.Run("should validate nested choice messages and usage", func(t *testing.T) {
		_, err := validation.ValidateResponse(map[string]any{
			"id": "resp-1",
			"choices": []any{
				map[string]any{"index": -1, "finish_reason": "stop", "message": map[string]any{"role": "robot", "content": "x"}},
			},
			"usage": map[string]any{"prompt_tokens": -1, "completion_tokens": 1.5, "total_tokens": 2},
		})

		vErr := requireViolation(t, err, "choices[0].index")
		require.Contains(t, vErr.Paths(), "choices[0].message.role")
		require.Contains(t, vErr.Paths(), "usage.prompt_tokens")
		require.Contains(t, vErr.Paths(), "usage.completion_tokens")
	})

	t.Run("should reject malformed JSON", func(t *testing.T) {
		_, err := validation.ValidateResponseJSON([]byte(`{"id":`))

		requireViolation(t, err, "(root)")
	})

	t.Run("should round-trip a validated response", func(t *testing.T) {
		first, err := validation.ValidateResponseJSON([]byte(validResponseJSON))
		require.NoError(t, err)

		second, err := validation.ValidateResponse(first)
		require.NoError(t, err)
		require.Equal(t, first, second)
	})
}

func TestValidator(t *testing.T) {
	t.Run("should delegate to the package functions", func(t *testing.T) {
		v := validation.NewValidator()

		_, err := v.ValidateConfig(validConfig())
		require.NoError(t, err)

		_, err = v.ValidateResponseJSON([]byte(`{"id":"x","choices":[],"usage":{}}`))
		require.ErrorIs(t, err, validation.ErrInvalid)
	})
}

func decodeJSON(t *testing.T, raw string) any {
	t.Helper()

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var input any
	require.NoError(t, dec.Decode(&input))
	return input
}

func configErr(input any) error {
	_, err := validation.ValidateConfig(input)
	return err
}
