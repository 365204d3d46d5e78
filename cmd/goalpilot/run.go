package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/metalagman/goalpilot/internal/analysis"
	"github.com/metalagman/goalpilot/internal/cache"
	"github.com/metalagman/goalpilot/internal/chat"
	"github.com/metalagman/goalpilot/internal/config"
	"github.com/metalagman/goalpilot/internal/intent"
	"github.com/metalagman/goalpilot/internal/llm"
	"github.com/metalagman/goalpilot/internal/model"
	"github.com/metalagman/goalpilot/internal/runner"
	"github.com/metalagman/goalpilot/internal/scenario"
	"github.com/metalagman/goalpilot/internal/semantic"
	"github.com/metalagman/goalpilot/internal/store"
)

func runCmd() *cobra.Command {
	var concurrency int
	cmd := &cobra.Command{
		Use:          "run <scenario-file-or-dir>",
		Short:        "Run scenario tests against the configured chat endpoint",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if concurrency > 0 {
				cfg.Execution.Concurrency = concurrency
			}

			scenarios, err := loadScenarios(args[0])
			if err != nil {
				return err
			}
			if len(scenarios) == 0 {
				return fmt.Errorf("no scenario files in %s", args[0])
			}

			st, closeFn, err := openStore()
			if err != nil {
				return err
			}
			defer closeFn()

			completer, err := buildCompleter(cfg)
			if err != nil {
				return err
			}

			var (
				intentCache   *cache.Cache[model.IntentResult]
				semanticCache *cache.Cache[model.SemanticEvaluation]
			)
			if cfg.Cache.Enabled {
				intentCache = cache.New[model.IntentResult](cfg.Cache.TTL(), cfg.Cache.MaxEntries)
				semanticCache = cache.New[model.SemanticEvaluation](cfg.Cache.TTL(), cfg.Cache.MaxEntries)
			}

			detector := intent.NewDetector(completer, intentCache)
			evaluator := semantic.NewEvaluator(completer, semanticCache, cfg.Evaluator.MinConfidence)
			sender := chat.NewClient(cfg.Chat, nil)

			r := runner.New(cfg, sender, detector, evaluator, completer, st)
			pool := runner.NewPool(r, cfg.Execution.Concurrency)

			ctx := cmd.Context()
			results := pool.Run(ctx, scenarios)

			if cfg.Evaluator.Mode != config.ModeRealtime {
				evaluateOffline(ctx, cfg.Evaluator.Mode, evaluator, st, results)
			}

			failed := 0
			for i, res := range results {
				printVerdict(cmd, scenarios[i].Name, res)
				if !res.Passed {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d tests failed", failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of scenarios to run in parallel")
	return cmd
}

func loadScenarios(path string) ([]scenario.Scenario, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return scenario.LoadDir(path)
	}
	sc, err := scenario.Load(path)
	if err != nil {
		return nil, err
	}
	return []scenario.Scenario{sc}, nil
}

func buildCompleter(cfg config.Config) (llm.Completer, error) {
	if !cfg.LLM.Enabled {
		return nil, nil
	}
	client, err := llm.NewClient(llm.Config{
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		APIKeyEnv:   cfg.LLM.APIKeyEnv,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout(),
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("llm client: %w", err)
	}
	return client, nil
}

// evaluateOffline scores transcripts after the run loop. Batch mode covers
// every test; failures-only skips tests that passed.
func evaluateOffline(ctx context.Context, mode string, evaluator *semantic.Evaluator, st *store.Store, results []model.GoalTestResult) {
	var steps []model.StepContext
	testIDByStep := map[string]string{}
	for _, res := range results {
		if mode == config.ModeFailuresOnly && res.Passed {
			continue
		}
		for _, step := range stepsFromTranscript(res.Transcript) {
			testIDByStep[step.StepID] = res.TestID
			steps = append(steps, step)
		}
	}
	if len(steps) == 0 {
		return
	}

	evaluations := evaluator.EvaluateBatch(ctx, steps)

	var findings []analysis.Finding
	for i, ev := range evaluations {
		if f, ok := findingFromEvaluation(steps[i], ev, testIDByStep[steps[i].StepID]); ok {
			findings = append(findings, f)
		}
	}
	for _, f := range analysis.Dedupe(findings) {
		if err := st.SaveFinding(ctx, f); err != nil {
			log.Warn().Err(err).Str("finding_id", f.ID).Msg("finding not persisted")
		}
	}
	log.Info().Int("steps", len(steps)).Int("findings", len(findings)).Msg("offline evaluation finished")
}

func stepsFromTranscript(transcript []model.Turn) []model.StepContext {
	var steps []model.StepContext
	var lastUser string
	for _, turn := range transcript {
		switch turn.Role {
		case model.RoleUser:
			lastUser = turn.Content
		case model.RoleAssistant:
			if turn.StepID == "" {
				continue
			}
			steps = append(steps, model.StepContext{
				StepID:           turn.StepID,
				UserMessage:      lastUser,
				AssistantMessage: turn.Content,
			})
		}
	}
	return steps
}

// findingFromEvaluation turns a problematic evaluation into a finding.
// Clean evaluations produce nothing.
func findingFromEvaluation(step model.StepContext, ev model.SemanticEvaluation, testID string) (analysis.Finding, bool) {
	severity := ev.Validation.Severity
	if severity != model.SeverityCritical && severity != model.SeverityHigh {
		return analysis.Finding{}, false
	}
	phrase := ev.Validation.Reasoning
	if len(ev.Validation.UnexpectedBehaviors) > 0 {
		phrase = strings.Join(ev.Validation.UnexpectedBehaviors, "; ")
	}
	return analysis.Finding{
		ID:          uuid.NewString(),
		Code:        fmt.Sprintf("%s_%s", severity, ev.Intent.PrimaryIntent),
		Phrase:      phrase,
		Location:    step.StepID,
		TestIDs:     []string{testID},
		Occurrences: 1,
	}, true
}

func printVerdict(cmd *cobra.Command, name string, res model.GoalTestResult) {
	status := "PASS"
	if !res.Passed {
		status = "FAIL"
	}
	cmd.Printf("%s  %s  turns=%d  %s\n", status, name, res.TurnCount, res.Summary)
	for _, gr := range res.GoalResults {
		mark := "ok"
		if !gr.Passed {
			mark = "failed"
		}
		cmd.Printf("      goal %s: %s %s\n", gr.GoalID, mark, gr.Message)
	}
	for _, v := range res.ConstraintViolations {
		cmd.Printf("      constraint %s violated: %s\n", v.Constraint.Type, v.Message)
	}
}
