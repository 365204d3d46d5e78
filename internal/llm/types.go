package llm

import "time"

const (
	defaultBaseURL   = "https://api.openai.com/v1"
	defaultAPIKeyEnv = "OPENAI_API_KEY"
	defaultTimeout   = 30 * time.Second
)

// Config is LLM provider client configuration.
type Config struct {
	Model       string
	BaseURL     string
	APIKey      string
	APIKeyEnv   string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// CompletionRequest is a single completion exchange.
type CompletionRequest struct {
	Instructions string
	Input        string
}

// CompletionResponse is the text returned by one completion exchange.
type CompletionResponse struct {
	OutputText string
}
