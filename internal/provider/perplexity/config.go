package perplexity

// Config contains Perplexity provider configuration.
// The base URL, timeouts and retries come from the policy constants.
type Config struct {
	APIKey string `env:"PERPLEXITY_API_KEY"`
}
