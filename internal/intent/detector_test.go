package intent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metalagman/goalpilot/internal/cache"
	"github.com/metalagman/goalpilot/internal/llm"
	"github.com/metalagman/goalpilot/internal/model"
)

type fakeCompleter struct {
	out   string
	err   error
	calls int
}

func (f *fakeCompleter) Complete(_ context.Context, _ llm.CompletionRequest) (llm.CompletionResponse, error) {
	f.calls++
	if f.err != nil {
		return llm.CompletionResponse{}, f.err
	}
	return llm.CompletionResponse{OutputText: f.out}, nil
}

func newCache() *cache.Cache[model.IntentResult] {
	return cache.New[model.IntentResult](time.Minute, 100)
}

func TestDetect_TerminalOverrideBypassesLLM(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{out: `{"primary_intent":"greeting","confidence":0.9}`}
	d := NewDetector(completer, newCache())

	got := d.Detect(context.Background(), "Your appointment has been successfully scheduled for Monday at 10am.", nil, nil)

	assert.Equal(t, model.IntentConfirmingBooking, got.PrimaryIntent)
	assert.Equal(t, 0.95, got.Confidence)
	assert.False(t, got.RequiresUserResponse)
	assert.Zero(t, completer.calls, "override must not reach the LLM")
}

func TestDetect_TransferOverride(t *testing.T) {
	t.Parallel()

	d := NewDetector(nil, nil)
	got := d.Detect(context.Background(), "One moment, I'm transferring you to our front desk.", nil, nil)

	assert.Equal(t, model.IntentInitiatingTransfer, got.PrimaryIntent)
	assert.Equal(t, 0.95, got.Confidence)
	assert.False(t, got.RequiresUserResponse)
}

func TestDetect_CachesLLMResult(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{out: `{"primary_intent":"asking_phone","confidence":0.8,"is_question":true}`}
	d := NewDetector(completer, newCache())

	utterance := "What is the best phone number to reach you?"
	first := d.Detect(context.Background(), utterance, nil, []model.Field{model.FieldPhoneNumber})
	second := d.Detect(context.Background(), utterance, nil, []model.Field{model.FieldPhoneNumber})

	assert.Equal(t, first, second)
	assert.Equal(t, 1, completer.calls)
}

func TestDetect_CacheKeyIncludesPendingFields(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{out: `{"primary_intent":"asking_phone","confidence":0.8}`}
	d := NewDetector(completer, newCache())

	utterance := "What is the best phone number to reach you?"
	d.Detect(context.Background(), utterance, nil, []model.Field{model.FieldPhoneNumber})
	d.Detect(context.Background(), utterance, nil, []model.Field{model.FieldEmail})

	assert.Equal(t, 2, completer.calls)
}

func TestDetect_LLMUnknownIntentCoerced(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{out: `{"primary_intent":"asking_zodiac_sign","confidence":0.99}`}
	d := NewDetector(completer, nil)

	got := d.Detect(context.Background(), "What is your zodiac sign?", nil, nil)
	assert.Equal(t, model.IntentUnknown, got.PrimaryIntent)
}

func TestDetect_LLMConfidenceClamped(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		out  string
		want float64
	}{
		{"over one", `{"primary_intent":"greeting","confidence":3.5}`, 1},
		{"negative", `{"primary_intent":"greeting","confidence":-0.2}`, 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := NewDetector(&fakeCompleter{out: tt.out}, nil)
			got := d.Detect(context.Background(), "Hello and welcome to our office chat.", nil, nil)
			assert.Equal(t, tt.want, got.Confidence)
		})
	}
}

func TestDetect_LLMErrorFallsBack(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{err: errors.New("deadline exceeded")}
	d := NewDetector(completer, nil)

	got := d.Detect(context.Background(), "Could I get your email address?", nil, nil)
	assert.Equal(t, model.IntentAskingEmail, got.PrimaryIntent)
	assert.Equal(t, 1, completer.calls)
}

func TestDetect_MalformedLLMOutputFallsBack(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{out: "I think they want the phone number."}
	d := NewDetector(completer, nil)

	got := d.Detect(context.Background(), "Could I get your email address?", nil, nil)
	assert.Equal(t, model.IntentAskingEmail, got.PrimaryIntent)
}

func TestDetect_KeywordFallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		utterance string
		want      model.Intent
		terminal  bool
	}{
		{"greeting", "Hello! How can I help you today?", model.IntentGreeting, false},
		{"phone", "Could I get a phone number for the account?", model.IntentAskingPhone, false},
		{"insurance id beats insurance", "What is your insurance id?", model.IntentAskingInsuranceID, false},
		{"insurance general", "Do you have dental insurance?", model.IntentAskingInsurance, false},
		{"dob", "What is your child's date of birth?", model.IntentAskingChildDOB, false},
		{"goodbye is terminal", "Alright, goodbye and take care!", model.IntentSayingGoodbye, true},
		{"unmatched", "The weather is lovely this afternoon.", model.IntentUnknown, false},
	}

	d := NewDetector(nil, nil)
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := d.Detect(context.Background(), tt.utterance, nil, nil)
			assert.Equal(t, tt.want, got.PrimaryIntent)
			assert.Equal(t, !tt.terminal, got.RequiresUserResponse)
		})
	}
}

func TestDetect_ResultAlwaysWellFormed(t *testing.T) {
	t.Parallel()

	utterances := []string{
		"Your appointment has been successfully scheduled.",
		"What is your phone number?",
		"gibberish nothing matches here",
		"",
	}
	completers := []*fakeCompleter{
		nil,
		{out: `{"primary_intent":"asking_phone","confidence":0.5}`},
		{err: errors.New("boom")},
		{out: "not json at all"},
	}

	for _, c := range completers {
		var d *Detector
		if c == nil {
			d = NewDetector(nil, nil)
		} else {
			d = NewDetector(c, nil)
		}
		for _, u := range utterances {
			got := d.Detect(context.Background(), u, nil, nil)
			require.True(t, model.ValidIntent(got.PrimaryIntent), "intent %q not in enum", got.PrimaryIntent)
			require.GreaterOrEqual(t, got.Confidence, 0.0)
			require.LessOrEqual(t, got.Confidence, 1.0)
		}
	}
}

func TestLooksLikeQuestion(t *testing.T) {
	t.Parallel()

	assert.True(t, looksLikeQuestion("What time works for you?"))
	assert.True(t, looksLikeQuestion("could you spell that"))
	assert.False(t, looksLikeQuestion("Thanks, that is everything."))
}
