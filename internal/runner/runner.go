// Package runner drives one simulated conversation per test: it sends the
// caller's messages, classifies the agent's replies, and stops the loop at
// the right moment before handing the transcript to the goal evaluator.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/metalagman/goalpilot/internal/chat"
	"github.com/metalagman/goalpilot/internal/config"
	"github.com/metalagman/goalpilot/internal/goals"
	"github.com/metalagman/goalpilot/internal/intent"
	"github.com/metalagman/goalpilot/internal/llm"
	"github.com/metalagman/goalpilot/internal/model"
	"github.com/metalagman/goalpilot/internal/persona"
	"github.com/metalagman/goalpilot/internal/progress"
	"github.com/metalagman/goalpilot/internal/respond"
	"github.com/metalagman/goalpilot/internal/scenario"
	"github.com/metalagman/goalpilot/internal/semantic"
	"github.com/metalagman/goalpilot/internal/store"
)

const historyWindow = 4

// Persister is the storage surface the runner depends on. *store.Store
// satisfies it; tests substitute their own.
type Persister interface {
	SaveTestResult(ctx context.Context, scenarioName string, res model.GoalTestResult) error
	SaveTranscript(ctx context.Context, testID string, transcript []model.Turn) error
	SaveGoalProgressSnapshot(ctx context.Context, testID string, snap model.ProgressState) error
	SaveAPICall(ctx context.Context, call store.APICall) error
}

// Runner executes test scenarios. Shared collaborators (chat client,
// detector, evaluator) are goroutine-safe; per-test state is created inside
// RunTest.
type Runner struct {
	cfg       config.Config
	chat      chat.Sender
	detector  *intent.Detector
	evaluator *semantic.Evaluator
	completer llm.Completer
	resolver  *persona.Resolver
	persister Persister
}

// New constructs a Runner. evaluator, completer, and persister may be nil.
func New(cfg config.Config, sender chat.Sender, detector *intent.Detector, evaluator *semantic.Evaluator, completer llm.Completer, persister Persister) *Runner {
	return &Runner{
		cfg:       cfg,
		chat:      sender,
		detector:  detector,
		evaluator: evaluator,
		completer: completer,
		resolver:  persona.NewResolver(),
		persister: persister,
	}
}

// RunTest executes one scenario and always returns a verdict. Internal
// panics are converted into a failed result with ErrorMessage set; nothing
// escapes this call.
func (r *Runner) RunTest(ctx context.Context, sc scenario.Scenario) (res model.GoalTestResult) {
	started := time.Now()
	testID := uuid.NewString()
	sessionID := uuid.NewString()

	defer func() {
		if rec := recover(); rec != nil {
			res = model.GoalTestResult{
				TestID:       testID,
				Passed:       false,
				ErrorMessage: fmt.Sprintf("internal error: %v", rec),
				DurationMs:   time.Since(started).Milliseconds(),
				Summary:      "test aborted by internal error",
			}
		}
		log.Info().
			Str("test_id", testID).
			Str("scenario", sc.Name).
			Bool("passed", res.Passed).
			Int("turns", res.TurnCount).
			Dur("duration", time.Since(started)).
			Msg("test finished")
	}()

	seed := time.Now().UnixNano()
	if sc.Overrides.Seed != nil {
		seed = *sc.Overrides.Seed
	}
	resolution := r.resolver.Resolve(sc.Persona, seed)

	synth := respond.NewSynthesizer(respond.Mode(r.cfg.Responder.Mode), r.completer)
	tracker := progress.NewTracker(sc.Goals, sc.Constraints)
	maxTurns := r.effectiveMaxTurns(sc)
	continueOnError := r.cfg.Execution.ContinueOnError
	if sc.Overrides.ContinueOnError != nil {
		continueOnError = *sc.Overrides.ContinueOnError
	}

	var (
		transcript []model.Turn
		errorMsg   string
		turnCount  int
	)

	question := sc.InitialMessage
	if question == "" {
		question = synth.Respond(ctx, model.IntentResult{PrimaryIntent: model.IntentGreeting}, resolution.Resolved, nil)
	}

	for turn := 1; ; turn++ {
		transcript = append(transcript, model.Turn{
			Role: model.RoleUser, Content: question, Timestamp: time.Now(),
		})

		reply, elapsed, sendErr := r.send(ctx, testID, sessionID, question)
		turnCount = turn
		if sendErr != nil {
			transcript = append(transcript, model.Turn{
				Role: model.RoleSystem, Content: "send failed: " + sendErr.Error(), Timestamp: time.Now(),
			})
			if !continueOnError {
				errorMsg = sendErr.Error()
				break
			}
			if turn >= maxTurns {
				break
			}
			continue
		}
		transcript = append(transcript, model.Turn{
			Role:           model.RoleAssistant,
			Content:        reply.Text,
			Timestamp:      time.Now(),
			ResponseTimeMs: elapsed,
			StepID:         fmt.Sprintf("%s-%d", testID, turn),
		})

		in := r.detector.Detect(ctx, reply.Text, tail(transcript, historyWindow), tracker.PendingFields())

		if model.TerminalIntents[in.PrimaryIntent] || !in.RequiresUserResponse {
			tracker.Update(in, "", turn)
			r.snapshot(ctx, testID, tracker)
			break
		}

		answer := synth.Respond(ctx, in, resolution.Resolved, transcript)
		tracker.Update(in, answer, turn)
		r.snapshot(ctx, testID, tracker)
		r.evaluateTurn(ctx, testID, turn, question, reply.Text, transcript)

		if tracker.GoalsComplete() {
			break
		}
		if tracker.HasFailedGoals() {
			break
		}
		if turn >= maxTurns {
			break
		}
		if tracker.ShouldAbort() {
			break
		}

		if delay := r.effectiveDelay(sc); delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
			}
		}
		question = answer
	}

	res = goals.Evaluate(tracker.Snapshot(), transcript, sc.Goals, sc.Constraints, turnCount, time.Since(started))
	res.TestID = testID
	res.Seed = seed
	res.ResolvedPersona = &resolution.Resolved
	if errorMsg != "" {
		res.Passed = false
		res.ErrorMessage = errorMsg
		res.Summary = "test failed: " + errorMsg
	}

	r.persist(ctx, sc.Name, res, transcript)
	return res
}

func (r *Runner) effectiveMaxTurns(sc scenario.Scenario) int {
	if sc.Overrides.MaxTurns > 0 {
		return sc.Overrides.MaxTurns
	}
	if r.cfg.Execution.MaxTurns > 0 {
		return r.cfg.Execution.MaxTurns
	}
	return config.DefaultMaxTurns
}

func (r *Runner) effectiveDelay(sc scenario.Scenario) time.Duration {
	if sc.Overrides.DelayBetweenTurnsMs > 0 {
		return time.Duration(sc.Overrides.DelayBetweenTurnsMs) * time.Millisecond
	}
	return r.cfg.Execution.DelayBetweenTurns()
}

// send makes one chat call under the per-turn timeout and records it. The
// second return value is the call duration in milliseconds.
func (r *Runner) send(ctx context.Context, testID, sessionID, question string) (chat.Reply, int64, error) {
	turnCtx := ctx
	if timeout := r.cfg.Execution.TurnTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		turnCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	started := time.Now()
	reply, err := r.chat.Send(turnCtx, sessionID, question)
	elapsed := time.Since(started).Milliseconds()
	call := store.APICall{
		TestID:     testID,
		Kind:       "chat",
		Endpoint:   r.cfg.Chat.URL,
		Status:     "ok",
		DurationMs: elapsed,
	}
	if err != nil {
		call.Status = "error"
		call.Error = err.Error()
	}
	if r.persister != nil {
		if perr := r.persister.SaveAPICall(ctx, call); perr != nil {
			log.Warn().Err(perr).Str("test_id", testID).Msg("runner: api call not persisted")
		}
	}
	return reply, elapsed, err
}

func (r *Runner) snapshot(ctx context.Context, testID string, tracker *progress.Tracker) {
	if r.persister == nil {
		return
	}
	if err := r.persister.SaveGoalProgressSnapshot(ctx, testID, tracker.Snapshot()); err != nil {
		log.Warn().Err(err).Str("test_id", testID).Msg("runner: progress snapshot not persisted")
	}
}

// evaluateTurn scores the exchange in realtime mode. Batch and
// failures-only modes run after the loop, outside the runner.
func (r *Runner) evaluateTurn(ctx context.Context, testID string, turn int, question, reply string, transcript []model.Turn) {
	if r.evaluator == nil || r.cfg.Evaluator.Mode != config.ModeRealtime {
		return
	}
	r.evaluator.Evaluate(ctx, model.StepContext{
		StepID:           fmt.Sprintf("%s-%d", testID, turn),
		UserMessage:      question,
		AssistantMessage: reply,
		History:          tail(transcript, historyWindow),
	})
}

// persist hands the verdict to storage. Failures are logged; the in-memory
// result is returned to the caller regardless.
func (r *Runner) persist(ctx context.Context, scenarioName string, res model.GoalTestResult, transcript []model.Turn) {
	if r.persister == nil {
		return
	}
	if err := r.persister.SaveTestResult(ctx, scenarioName, res); err != nil {
		log.Error().Err(err).Str("test_id", res.TestID).Msg("runner: result not persisted")
		return
	}
	if err := r.persister.SaveTranscript(ctx, res.TestID, transcript); err != nil {
		log.Error().Err(err).Str("test_id", res.TestID).Msg("runner: transcript not persisted")
	}
}

func tail(turns []model.Turn, n int) []model.Turn {
	if len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}
