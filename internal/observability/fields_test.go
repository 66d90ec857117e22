package observability_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/davidbz/sonargate/internal/observability"
)

func TestFields(t *testing.T) {
	t.Run("should build typed zap fields", func(t *testing.T) {
		enc := zapcore.NewMapObjectEncoder()

		observability.Bool("mirrored", true).AddTo(enc)
		observability.Float64("temperature", 0.2).AddTo(enc)
		observability.String("provider", "perplexity").AddTo(enc)

		require.Equal(t, map[string]any{
			"mirrored":    true,
			"temperature": 0.2,
			"provider":    "perplexity",
		}, enc.Fields)
	})
}
