package config

import "testing"

func TestApplyDefaults_FillsUnsetValues(t *testing.T) {
	t.Parallel()

	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.Execution.MaxTurns != DefaultMaxTurns {
		t.Fatalf("max turns = %d, want %d", cfg.Execution.MaxTurns, DefaultMaxTurns)
	}
	if cfg.Evaluator.Mode != ModeRealtime {
		t.Fatalf("evaluator mode = %q, want %q", cfg.Evaluator.Mode, ModeRealtime)
	}
	if cfg.Responder.Mode != ResponderTemplate {
		t.Fatalf("responder mode = %q, want %q", cfg.Responder.Mode, ResponderTemplate)
	}
	if cfg.Cache.TTL() != DefaultCacheTTL {
		t.Fatalf("cache ttl = %v, want %v", cfg.Cache.TTL(), DefaultCacheTTL)
	}
	if cfg.Chat.Retries != DefaultChatRetries {
		t.Fatalf("chat retries = %d, want %d", cfg.Chat.Retries, DefaultChatRetries)
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	t.Parallel()

	cfg := Config{}
	cfg.Execution.MaxTurns = 5
	cfg.Evaluator.Mode = ModeBatch
	cfg.ApplyDefaults()

	if cfg.Execution.MaxTurns != 5 {
		t.Fatalf("max turns = %d, want 5", cfg.Execution.MaxTurns)
	}
	if cfg.Evaluator.Mode != ModeBatch {
		t.Fatalf("evaluator mode = %q, want %q", cfg.Evaluator.Mode, ModeBatch)
	}
}

func TestValidateSettings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		settings map[string]any
		wantErr  bool
	}{
		{
			name: "minimal valid",
			settings: map[string]any{
				"chat": map[string]any{"url": "http://localhost:3000/api/v1/prediction/abc"},
			},
			wantErr: false,
		},
		{
			name:     "missing chat",
			settings: map[string]any{},
			wantErr:  true,
		},
		{
			name: "bad evaluator mode",
			settings: map[string]any{
				"chat":      map[string]any{"url": "http://localhost"},
				"evaluator": map[string]any{"mode": "streaming"},
			},
			wantErr: true,
		},
		{
			name: "concurrency over cap",
			settings: map[string]any{
				"chat":      map[string]any{"url": "http://localhost"},
				"execution": map[string]any{"concurrency": 50},
			},
			wantErr: true,
		},
		{
			name: "full valid",
			settings: map[string]any{
				"chat": map[string]any{
					"url":             "http://localhost",
					"timeout_seconds": 15,
					"retries":         2,
				},
				"llm": map[string]any{
					"enabled":     true,
					"model":       "gpt-4o-mini",
					"temperature": 0.2,
				},
				"execution": map[string]any{"max_turns": 10, "concurrency": 4},
				"evaluator": map[string]any{"mode": "batch", "min_confidence": 0.6},
				"cache":     map[string]any{"enabled": true, "ttl_seconds": 120},
				"responder": map[string]any{"mode": "llm"},
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateSettings(tt.settings)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateSettings error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
