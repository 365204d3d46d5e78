package llm

import "testing"

func TestExtractJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		in     string
		want   string
		wantOK bool
	}{
		{
			name:   "bare object",
			in:     `{"intent":"greeting"}`,
			want:   `{"intent":"greeting"}`,
			wantOK: true,
		},
		{
			name:   "fenced json",
			in:     "Here you go:\n```json\n{\"intent\": \"greeting\"}\n```\n",
			want:   `{"intent": "greeting"}`,
			wantOK: true,
		},
		{
			name:   "fence without language tag",
			in:     "```\n{\"a\":1}\n```",
			want:   `{"a":1}`,
			wantOK: true,
		},
		{
			name:   "prose around object",
			in:     `Sure. The result is {"a":{"b":2}} as requested.`,
			want:   `{"a":{"b":2}}`,
			wantOK: true,
		},
		{
			name:   "braces inside string literals",
			in:     `{"text":"a } inside","n":1}`,
			want:   `{"text":"a } inside","n":1}`,
			wantOK: true,
		},
		{
			name:   "escaped quote inside string",
			in:     `{"text":"she said \"}\"","n":1}`,
			want:   `{"text":"she said \"}\"","n":1}`,
			wantOK: true,
		},
		{
			name:   "no object",
			in:     "I could not produce JSON, sorry.",
			wantOK: false,
		},
		{
			name:   "unbalanced",
			in:     `{"a": {"b": 1}`,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ExtractJSON([]byte(tt.in))
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && string(got) != tt.want {
				t.Fatalf("extracted = %q, want %q", got, tt.want)
			}
		})
	}
}
