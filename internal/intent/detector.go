// Package intent classifies what the remote agent's latest reply is asking
// for. The classifier never returns an error: when the LLM path is missing
// or misbehaves it degrades to keyword matching.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/metalagman/goalpilot/internal/cache"
	"github.com/metalagman/goalpilot/internal/llm"
	"github.com/metalagman/goalpilot/internal/model"
)

// historyWindow bounds how many recent turns the LLM prompt sees.
const historyWindow = 4

// cacheKeyPrefixLen bounds how much of the utterance feeds the cache key, so
// near-identical re-asks stay cache-warm.
const cacheKeyPrefixLen = 100

const overrideConfidence = 0.95

// Detector classifies agent utterances.
type Detector struct {
	completer llm.Completer // nil means fallback-only
	cache     *cache.Cache[model.IntentResult]
}

// NewDetector constructs a Detector. completer may be nil; cache may be nil.
func NewDetector(completer llm.Completer, c *cache.Cache[model.IntentResult]) *Detector {
	return &Detector{completer: completer, cache: c}
}

// Detect classifies the agent's latest utterance. Order: terminal regex
// override, cache, LLM, keyword fallback. The override beats everything,
// including a configured LLM.
func (d *Detector) Detect(ctx context.Context, utterance string, history []model.Turn, pending []model.Field) model.IntentResult {
	if in, ok := terminalOverride(utterance); ok {
		return model.IntentResult{
			PrimaryIntent:        in,
			Confidence:           overrideConfidence,
			IsQuestion:           looksLikeQuestion(utterance),
			RequiresUserResponse: false,
			Reasoning:            "terminal pattern override",
		}
	}

	key := d.cacheKey(utterance, pending)
	if cached, ok := d.cache.Get(key); ok {
		return cached
	}

	if d.completer != nil {
		if result, err := d.classifyLLM(ctx, utterance, history, pending); err == nil {
			d.cache.Set(key, result)
			return result
		} else {
			log.Debug().Err(err).Msg("intent: llm classification failed, using fallback")
		}
	}

	result := d.classifyFallback(utterance)
	d.cache.Set(key, result)
	return result
}

func (d *Detector) cacheKey(utterance string, pending []model.Field) string {
	prefix := strings.ToLower(utterance)
	if len(prefix) > cacheKeyPrefixLen {
		prefix = prefix[:cacheKeyPrefixLen]
	}
	fields := make([]string, 0, len(pending))
	for _, f := range pending {
		fields = append(fields, string(f))
	}
	sort.Strings(fields)
	return cache.Key(append([]string{prefix}, fields...)...)
}

type llmIntentReply struct {
	PrimaryIntent        string            `json:"primary_intent"`
	Confidence           float64           `json:"confidence"`
	SecondaryIntents     []string          `json:"secondary_intents"`
	IsQuestion           bool              `json:"is_question"`
	RequiresUserResponse *bool             `json:"requires_user_response"`
	ExtractedInfo        map[string]string `json:"extracted_info"`
	Reasoning            string            `json:"reasoning"`
}

func (d *Detector) classifyLLM(ctx context.Context, utterance string, history []model.Turn, pending []model.Field) (model.IntentResult, error) {
	out, err := d.completer.Complete(ctx, llm.CompletionRequest{
		Instructions: intentInstructions(),
		Input:        intentInput(utterance, history, pending),
	})
	if err != nil {
		return model.IntentResult{}, fmt.Errorf("complete: %w", err)
	}

	raw, ok := llm.ExtractJSON([]byte(out.OutputText))
	if !ok {
		return model.IntentResult{}, fmt.Errorf("no JSON object in reply")
	}
	var reply llmIntentReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return model.IntentResult{}, fmt.Errorf("parse reply: %w", err)
	}

	primary := model.Intent(reply.PrimaryIntent)
	if !model.ValidIntent(primary) {
		primary = model.IntentUnknown
	}

	var secondary []model.Intent
	for _, s := range reply.SecondaryIntents {
		if in := model.Intent(s); model.ValidIntent(in) && in != primary {
			secondary = append(secondary, in)
		}
	}

	requires := !model.TerminalIntents[primary]
	if reply.RequiresUserResponse != nil {
		requires = *reply.RequiresUserResponse
	}

	return model.IntentResult{
		PrimaryIntent:        primary,
		Confidence:           clamp01(reply.Confidence),
		SecondaryIntents:     secondary,
		IsQuestion:           reply.IsQuestion,
		RequiresUserResponse: requires,
		ExtractedInfo:        reply.ExtractedInfo,
		Reasoning:            reply.Reasoning,
	}, nil
}

func (d *Detector) classifyFallback(utterance string) model.IntentResult {
	primary, matched := classifyByKeywords(utterance)
	confidence := 0.7
	if !matched {
		confidence = 0.3
	}
	return model.IntentResult{
		PrimaryIntent:        primary,
		Confidence:           confidence,
		IsQuestion:           looksLikeQuestion(utterance),
		RequiresUserResponse: !model.TerminalIntents[primary],
		Reasoning:            "keyword fallback",
	}
}

func intentInstructions() string {
	var b strings.Builder
	b.WriteString("You classify what an appointment-scheduling assistant is asking for.\n")
	b.WriteString("Respond with only a JSON object: {\"primary_intent\", \"confidence\", \"secondary_intents\", \"is_question\", \"requires_user_response\", \"extracted_info\", \"reasoning\"}.\n")
	b.WriteString("confidence is a number in [0,1]. Valid intents:\n")
	for _, in := range model.AllIntents {
		b.WriteString("- ")
		b.WriteString(string(in))
		b.WriteString("\n")
	}
	b.WriteString("Use \"unknown\" when nothing fits.\n")
	return b.String()
}

func intentInput(utterance string, history []model.Turn, pending []model.Field) string {
	var b strings.Builder
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	if len(history) > 0 {
		b.WriteString("Recent turns:\n")
		for _, t := range history {
			b.WriteString(string(t.Role))
			b.WriteString(": ")
			b.WriteString(t.Content)
			b.WriteString("\n")
		}
	}
	if len(pending) > 0 {
		b.WriteString("Still pending fields: ")
		for i, f := range pending {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(string(f))
		}
		b.WriteString("\n")
	}
	b.WriteString("Latest assistant message: ")
	b.WriteString(utterance)
	return b.String()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
