// Package policy holds the defaults and limits shared by the validator and
// the Perplexity transport. Values are handed out by copy and never mutated.
package policy

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	// DefaultBaseURL is used when PERPLEXITY_API_URL is not set.
	DefaultBaseURL = "https://api.perplexity.ai"

	// APIVersion identifies the contract revision this module speaks.
	APIVersion = "1.0"

	// DefaultModel is used when a request omits the model.
	DefaultModel = "llama-3.1-sonar-small-128k-online"

	// Timeout bounds a single API request.
	Timeout = 30 * time.Second

	// MaxRetries is the number of extra attempts after the first one.
	MaxRetries = 3

	// RetryDelay is the fixed pause between attempts.
	RetryDelay = 1 * time.Second

	DefaultTemperature = 0.2
	DefaultTopP        = 0.9
	DefaultTopK        = 0

	// MaxSearchDomains caps searchDomainFilter.
	MaxSearchDomains = 3
)

// Sampling bounds enforced by the validator.
const (
	MinTemperature     = 0.0
	MaxTemperature     = 2.0
	MinTopP            = 0.0
	MaxTopP            = 1.0
	MinTopK            = 0
	MaxTopK            = 2048
	MinPresencePenalty = -2.0
	MaxPresencePenalty = 2.0
)

// Constants is the read-only policy record.
type Constants struct {
	BaseURL            string
	APIVersion         string
	DefaultModel       string
	Timeout            time.Duration
	MaxRetries         int
	RetryDelay         time.Duration
	DefaultTemperature float64
	DefaultTopP        float64
	DefaultTopK        int
	MaxSearchDomains   int
}

type overrides struct {
	BaseURL string `env:"PERPLEXITY_API_URL" envDefault:"https://api.perplexity.ai"`
}

// Defaults returns the policy record without consulting the environment.
func Defaults() Constants {
	return Constants{
		BaseURL:            DefaultBaseURL,
		APIVersion:         APIVersion,
		DefaultModel:       DefaultModel,
		Timeout:            Timeout,
		MaxRetries:         MaxRetries,
		RetryDelay:         RetryDelay,
		DefaultTemperature: DefaultTemperature,
		DefaultTopP:        DefaultTopP,
		DefaultTopK:        DefaultTopK,
		MaxSearchDomains:   MaxSearchDomains,
	}
}

// Load returns the policy record with the base URL override applied.
func Load() (Constants, error) {
	var o overrides
	if err := env.Parse(&o); err != nil {
		return Constants{}, fmt.Errorf("failed to parse policy overrides: %w", err)
	}

	c := Defaults()
	if o.BaseURL != "" {
		c.BaseURL = o.BaseURL
	}

	return c, nil
}
