// Package semantic scores individual conversation turns against declared
// expectations, through an LLM when one is configured and through a
// deterministic keyword path otherwise.
package semantic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"

	"github.com/metalagman/goalpilot/internal/cache"
	"github.com/metalagman/goalpilot/internal/llm"
	"github.com/metalagman/goalpilot/internal/model"
)

// subBatchSize bounds how many steps share one combined LLM call.
const subBatchSize = 5

const historyWindow = 4

// Evaluator scores steps. The cache is shared across concurrent executions;
// everything else is read-only after construction.
type Evaluator struct {
	completer     llm.Completer
	cache         *cache.Cache[model.SemanticEvaluation]
	minConfidence float64
}

// NewEvaluator constructs an Evaluator. completer may be nil, in which case
// every evaluation takes the fallback path. cache may be nil to disable
// caching.
func NewEvaluator(completer llm.Completer, c *cache.Cache[model.SemanticEvaluation], minConfidence float64) *Evaluator {
	return &Evaluator{completer: completer, cache: c, minConfidence: minConfidence}
}

// Evaluate scores one step. It never returns an error: LLM trouble of any
// kind degrades to the keyword fallback, which always produces a complete
// evaluation.
func (e *Evaluator) Evaluate(ctx context.Context, step model.StepContext) model.SemanticEvaluation {
	started := time.Now()
	key := stepCacheKey(step)

	if hit, ok := e.cache.Get(key); ok {
		return hit
	}

	if e.completer == nil {
		return fallbackEvaluate(step, started)
	}

	eval, err := e.evaluateLLM(ctx, step, started)
	if err != nil {
		log.Debug().Err(err).Str("step", step.StepID).Msg("semantic: llm evaluation failed, using fallback")
		// not cached: the fallback is cheap to recompute and caching it
		// would pin a degraded result past a transient LLM error
		return fallbackEvaluate(step, started)
	}
	e.cache.Set(key, eval)
	return eval
}

// EvaluateBatch scores many steps in combined LLM calls of at most
// subBatchSize steps each. A failed sub-batch falls back step by step; the
// other sub-batches are unaffected.
func (e *Evaluator) EvaluateBatch(ctx context.Context, steps []model.StepContext) []model.SemanticEvaluation {
	out := make([]model.SemanticEvaluation, len(steps))
	for start := 0; start < len(steps); start += subBatchSize {
		end := start + subBatchSize
		if end > len(steps) {
			end = len(steps)
		}
		e.evaluateSubBatch(ctx, steps[start:end], out[start:end])
	}
	return out
}

func (e *Evaluator) evaluateSubBatch(ctx context.Context, steps []model.StepContext, out []model.SemanticEvaluation) {
	started := time.Now()

	if e.completer != nil {
		if byStep, err := e.evaluateBatchLLM(ctx, steps, started); err == nil {
			for i, s := range steps {
				if eval, ok := byStep[s.StepID]; ok {
					out[i] = eval
					e.cache.Set(stepCacheKey(s), eval)
				} else {
					out[i] = fallbackEvaluate(s, started)
				}
			}
			return
		} else {
			log.Debug().Err(err).Int("steps", len(steps)).Msg("semantic: batch evaluation failed, falling back per step")
		}
	}
	for i, s := range steps {
		out[i] = e.Evaluate(ctx, s)
	}
}

// evaluationWire mirrors SemanticEvaluation minus the locally-set envelope
// fields, plus the step id used to key batch replies.
type evaluationWire struct {
	StepID          string                 `json:"step_id,omitempty"`
	ResponseQuality model.ResponseQuality  `json:"response_quality"`
	Intent          model.IntentAnalysis   `json:"intent"`
	FlowState       model.FlowAnalysis     `json:"flow_state"`
	Validation      model.ValidationResult `json:"validation"`
}

func (e *Evaluator) evaluateLLM(ctx context.Context, step model.StepContext, started time.Time) (model.SemanticEvaluation, error) {
	resp, err := e.completer.Complete(ctx, llm.CompletionRequest{
		Instructions: evaluationInstructions,
		Input:        stepInput(step),
	})
	if err != nil {
		return model.SemanticEvaluation{}, fmt.Errorf("complete: %w", err)
	}
	raw, ok := llm.ExtractJSON([]byte(resp.OutputText))
	if !ok {
		return model.SemanticEvaluation{}, fmt.Errorf("no JSON object in evaluation output")
	}
	if err := validateAgainst(evaluationSchema, raw); err != nil {
		return model.SemanticEvaluation{}, err
	}
	var wire evaluationWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return model.SemanticEvaluation{}, fmt.Errorf("decode evaluation: %w", err)
	}
	eval := e.sanitize(wire, started)
	if eval.Validation.Confidence < e.minConfidence {
		return model.SemanticEvaluation{}, fmt.Errorf("evaluation confidence %.2f below threshold %.2f", eval.Validation.Confidence, e.minConfidence)
	}
	return eval, nil
}

func (e *Evaluator) evaluateBatchLLM(ctx context.Context, steps []model.StepContext, started time.Time) (map[string]model.SemanticEvaluation, error) {
	resp, err := e.completer.Complete(ctx, llm.CompletionRequest{
		Instructions: evaluationInstructions + batchInstructions,
		Input:        batchInput(steps),
	})
	if err != nil {
		return nil, fmt.Errorf("complete: %w", err)
	}
	raw, ok := llm.ExtractJSON([]byte(resp.OutputText))
	if !ok {
		return nil, fmt.Errorf("no JSON object in batch output")
	}
	if err := validateAgainst(batchEvaluationSchema, raw); err != nil {
		return nil, err
	}
	var wrapper struct {
		Evaluations []json.RawMessage `json:"evaluations"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}

	byStep := make(map[string]model.SemanticEvaluation, len(wrapper.Evaluations))
	for _, item := range wrapper.Evaluations {
		if err := validateAgainst(evaluationSchema, item); err != nil {
			continue
		}
		var wire evaluationWire
		if err := json.Unmarshal(item, &wire); err != nil || wire.StepID == "" {
			continue
		}
		byStep[wire.StepID] = e.sanitize(wire, started)
	}
	return byStep, nil
}

// sanitize coerces out-of-vocabulary enum values and clamps confidences so
// a cooperative-but-sloppy model cannot poison downstream consumers.
func (e *Evaluator) sanitize(wire evaluationWire, started time.Time) model.SemanticEvaluation {
	eval := model.SemanticEvaluation{
		ResponseQuality:  wire.ResponseQuality,
		Intent:           wire.Intent,
		FlowState:        wire.FlowState,
		Validation:       wire.Validation,
		Timestamp:        time.Now(),
		EvaluationTimeMs: time.Since(started).Milliseconds(),
	}
	if !model.ValidSemanticIntent(eval.Intent.PrimaryIntent) {
		eval.Intent.PrimaryIntent = model.SemIntentUnknown
	}
	var secondary []model.SemanticIntent
	for _, si := range eval.Intent.SecondaryIntents {
		if model.ValidSemanticIntent(si) && si != eval.Intent.PrimaryIntent {
			secondary = append(secondary, si)
		}
	}
	eval.Intent.SecondaryIntents = secondary
	if !model.ValidFlowState(eval.FlowState.FlowState) {
		eval.FlowState.FlowState = model.FlowGreeting
	}
	eval.ResponseQuality.Confidence = clamp01(eval.ResponseQuality.Confidence)
	eval.Intent.Confidence = clamp01(eval.Intent.Confidence)
	eval.FlowState.Confidence = clamp01(eval.FlowState.Confidence)
	eval.Validation.Confidence = clamp01(eval.Validation.Confidence)
	return eval
}

func validateAgainst(schema string, doc []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("validate evaluation: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("evaluation schema violation: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// stepCacheKey hashes the step identity and both messages; expectations are
// part of the step id's definition and are not re-hashed.
func stepCacheKey(step model.StepContext) string {
	return cache.Key(step.StepID, step.UserMessage, step.AssistantMessage)
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

const evaluationInstructions = `You evaluate one turn of a conversation between a caller and a scheduling assistant.
Return STRICT JSON with keys response_quality, intent, flow_state, validation matching the documented shapes.
No prose outside the JSON object.`

const batchInstructions = `
Evaluate every step and return {"evaluations": [...]} where each item carries its "step_id".`

func stepInput(step model.StepContext) string {
	var b strings.Builder
	b.WriteString("Step: " + step.StepID + "\n")
	history := step.History
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	for _, t := range history {
		b.WriteString(string(t.Role) + ": " + t.Content + "\n")
	}
	b.WriteString("user: " + step.UserMessage + "\n")
	b.WriteString("assistant: " + step.AssistantMessage + "\n")
	if expected := expectedBehaviors(step); len(expected) > 0 {
		b.WriteString("Expected: " + strings.Join(expected, "; ") + "\n")
	}
	if unexpected := unexpectedBehaviors(step); len(unexpected) > 0 {
		b.WriteString("Must not: " + strings.Join(unexpected, "; ") + "\n")
	}
	return b.String()
}

func batchInput(steps []model.StepContext) string {
	parts := make([]string, 0, len(steps))
	for _, s := range steps {
		parts = append(parts, stepInput(s))
	}
	return strings.Join(parts, "\n---\n")
}
