package domain

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Roles lists every accepted role in contract order.
func Roles() []Role {
	return []Role{RoleSystem, RoleUser, RoleAssistant}
}

// RecencyFilter restricts search results to a time window.
type RecencyFilter string

const (
	RecencyMonth RecencyFilter = "month"
	RecencyWeek  RecencyFilter = "week"
	RecencyDay   RecencyFilter = "day"
	RecencyHour  RecencyFilter = "hour"
)

// RecencyFilters lists every accepted recency filter.
func RecencyFilters() []RecencyFilter {
	return []RecencyFilter{RecencyMonth, RecencyWeek, RecencyDay, RecencyHour}
}

// Message represents a chat message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// RequestConfig is a validated Perplexity request. Optional fields are
// pointers so an absent field never collapses into its zero value.
type RequestConfig struct {
	Model                  string         `json:"model"`
	Messages               []Message      `json:"messages"`
	MaxTokens              *int           `json:"maxTokens,omitempty"`
	Temperature            *float64       `json:"temperature,omitempty"`
	TopP                   *float64       `json:"topP,omitempty"`
	TopK                   *int           `json:"topK,omitempty"`
	SearchDomainFilter     []string       `json:"searchDomainFilter,omitempty"`
	ReturnImages           *bool          `json:"returnImages,omitempty"`
	ReturnRelatedQuestions *bool          `json:"returnRelatedQuestions,omitempty"`
	SearchRecencyFilter    *RecencyFilter `json:"searchRecencyFilter,omitempty"`
	Stream                 *bool          `json:"stream,omitempty"`
	PresencePenalty        *float64       `json:"presencePenalty,omitempty"`
	FrequencyPenalty       *float64       `json:"frequencyPenalty,omitempty"`
}

// IsStream reports whether streaming was requested.
func (c *RequestConfig) IsStream() bool {
	return c.Stream != nil && *c.Stream
}

// ChatCompletionResponse is a validated API response.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice is a single completion alternative.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StreamChunk represents a single streaming response chunk.
type StreamChunk struct {
	Delta string `json:"delta"`
	Done  bool   `json:"done"`
	Error error  `json:"error,omitempty"`
}
