// Package config provides configuration loading and management for goalpilot.
package config

import "time"

// Config is the root configuration.
type Config struct {
	Chat      ChatConfig      `json:"chat"      mapstructure:"chat"`
	LLM       LLMConfig       `json:"llm"       mapstructure:"llm"`
	Execution ExecutionConfig `json:"execution" mapstructure:"execution"`
	Evaluator EvaluatorConfig `json:"evaluator" mapstructure:"evaluator"`
	Cache     CacheConfig     `json:"cache"     mapstructure:"cache"`
	Responder ResponderConfig `json:"responder" mapstructure:"responder"`
}

// ChatConfig describes the remote chat endpoint under test.
type ChatConfig struct {
	URL            string `json:"url"                        mapstructure:"url"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"  mapstructure:"timeout_seconds"`
	Retries        int    `json:"retries,omitempty"          mapstructure:"retries"`
	RetryDelayMs   int    `json:"retry_delay_ms,omitempty"   mapstructure:"retry_delay_ms"`
}

// LLMConfig describes the provider used for classification, generation, and
// semantic evaluation. When Enabled is false every consumer runs its
// deterministic fallback path.
type LLMConfig struct {
	Enabled        bool    `json:"enabled"                   mapstructure:"enabled"`
	Model          string  `json:"model,omitempty"           mapstructure:"model"`
	BaseURL        string  `json:"base_url,omitempty"        mapstructure:"base_url"`
	APIKey         string  `json:"api_key,omitempty"         mapstructure:"api_key"`
	APIKeyEnv      string  `json:"api_key_env,omitempty"     mapstructure:"api_key_env"`
	Temperature    float64 `json:"temperature,omitempty"     mapstructure:"temperature"`
	MaxTokens      int     `json:"max_tokens,omitempty"      mapstructure:"max_tokens"`
	TimeoutSeconds int     `json:"timeout_seconds,omitempty" mapstructure:"timeout_seconds"`
}

// ExecutionConfig defines per-test loop budgets.
type ExecutionConfig struct {
	MaxTurns            int  `json:"max_turns"                        mapstructure:"max_turns"`
	DelayBetweenTurnsMs int  `json:"delay_between_turns_ms,omitempty" mapstructure:"delay_between_turns_ms"`
	TurnTimeoutSeconds  int  `json:"turn_timeout_seconds,omitempty"   mapstructure:"turn_timeout_seconds"`
	ContinueOnError     bool `json:"continue_on_error"                mapstructure:"continue_on_error"`
	Concurrency         int  `json:"concurrency,omitempty"            mapstructure:"concurrency"`
}

// EvaluatorConfig controls the semantic evaluator.
type EvaluatorConfig struct {
	Mode          string  `json:"mode"                     mapstructure:"mode"`
	MinConfidence float64 `json:"min_confidence,omitempty" mapstructure:"min_confidence"`
}

// CacheConfig controls the shared LLM result caches.
type CacheConfig struct {
	Enabled    bool `json:"enabled"               mapstructure:"enabled"`
	TTLSeconds int  `json:"ttl_seconds,omitempty" mapstructure:"ttl_seconds"`
	MaxEntries int  `json:"max_entries,omitempty" mapstructure:"max_entries"`
}

// ResponderConfig selects how user utterances are produced.
type ResponderConfig struct {
	Mode string `json:"mode" mapstructure:"mode"`
}

// Evaluator modes.
const (
	ModeRealtime     = "realtime"
	ModeBatch        = "batch"
	ModeFailuresOnly = "failures-only"
)

// Responder modes.
const (
	ResponderTemplate = "template"
	ResponderLLM      = "llm"
)

// Default budgets and knobs applied by ApplyDefaults.
const (
	DefaultMaxTurns        = 20
	DefaultTurnTimeout     = 60 * time.Second
	DefaultChatTimeout     = 30 * time.Second
	DefaultChatRetries     = 3
	DefaultChatRetryDelay  = 500 * time.Millisecond
	DefaultLLMTimeout      = 30 * time.Second
	DefaultLLMMaxTokens    = 1024
	DefaultCacheTTL        = 5 * time.Minute
	DefaultCacheMaxEntries = 1000
	DefaultConcurrency     = 1
	DefaultMinConfidence   = 0.5
)

// ApplyDefaults fills unset values in place.
func (c *Config) ApplyDefaults() {
	if c.Chat.TimeoutSeconds <= 0 {
		c.Chat.TimeoutSeconds = int(DefaultChatTimeout / time.Second)
	}
	if c.Chat.Retries <= 0 {
		c.Chat.Retries = DefaultChatRetries
	}
	if c.Chat.RetryDelayMs <= 0 {
		c.Chat.RetryDelayMs = int(DefaultChatRetryDelay / time.Millisecond)
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = int(DefaultLLMTimeout / time.Second)
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = DefaultLLMMaxTokens
	}
	if c.Execution.MaxTurns <= 0 {
		c.Execution.MaxTurns = DefaultMaxTurns
	}
	if c.Execution.TurnTimeoutSeconds <= 0 {
		c.Execution.TurnTimeoutSeconds = int(DefaultTurnTimeout / time.Second)
	}
	if c.Execution.Concurrency <= 0 {
		c.Execution.Concurrency = DefaultConcurrency
	}
	if c.Evaluator.Mode == "" {
		c.Evaluator.Mode = ModeRealtime
	}
	if c.Evaluator.MinConfidence <= 0 {
		c.Evaluator.MinConfidence = DefaultMinConfidence
	}
	if c.Cache.TTLSeconds <= 0 {
		c.Cache.TTLSeconds = int(DefaultCacheTTL / time.Second)
	}
	if c.Cache.MaxEntries <= 0 {
		c.Cache.MaxEntries = DefaultCacheMaxEntries
	}
	if c.Responder.Mode == "" {
		c.Responder.Mode = ResponderTemplate
	}
}

// ChatTimeout returns the chat call timeout as a duration.
func (c ChatConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RetryDelay returns the base linear-backoff delay.
func (c ChatConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

// Timeout returns the LLM call timeout as a duration.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TurnTimeout returns the per-turn chat budget as a duration.
func (c ExecutionConfig) TurnTimeout() time.Duration {
	return time.Duration(c.TurnTimeoutSeconds) * time.Second
}

// DelayBetweenTurns returns the inter-turn pacing delay.
func (c ExecutionConfig) DelayBetweenTurns() time.Duration {
	return time.Duration(c.DelayBetweenTurnsMs) * time.Millisecond
}

// TTL returns the cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}
