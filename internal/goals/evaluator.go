// Package goals turns final tracker state plus the full transcript into a
// pass/fail verdict. Evaluation is pure: it never fails at runtime and
// missing data defaults to a failed check, not an error.
package goals

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/metalagman/goalpilot/internal/model"
)

// Evaluate computes the verdict for one finished test. Goals and constraints
// are checked independently of each other; the verdict is the conjunction of
// all required goals passing and no critical constraint violation.
func Evaluate(state model.ProgressState, transcript []model.Turn, goalList []model.Goal, constraints []model.Constraint, turnCount int, duration time.Duration) model.GoalTestResult {
	res := model.GoalTestResult{
		TurnCount:  turnCount,
		DurationMs: duration.Milliseconds(),
		Issues:     state.Issues,
		Transcript: transcript,
	}

	goalList = byPriority(goalList)
	for _, g := range goalList {
		res.GoalResults = append(res.GoalResults, evaluateGoal(g, state))
	}
	for _, c := range constraints {
		if v, violated := checkConstraint(c, transcript, turnCount); violated {
			res.ConstraintViolations = append(res.ConstraintViolations, v)
		}
	}

	res.Passed = verdict(goalList, res.GoalResults, res.ConstraintViolations)
	res.Summary = summarize(res)
	return res
}

// byPriority returns the goals sorted by ascending priority, lower first.
// The sort is stable so equal priorities keep authoring order.
func byPriority(goalList []model.Goal) []model.Goal {
	sorted := make([]model.Goal, len(goalList))
	copy(sorted, goalList)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})
	return sorted
}

func evaluateGoal(g model.Goal, state model.ProgressState) model.GoalResult {
	out := model.GoalResult{GoalID: g.ID, Type: g.Type}
	switch g.Type {
	case model.GoalDataCollection:
		var missing []string
		for _, f := range g.RequiredFields {
			if _, ok := state.CollectedFields[f]; !ok {
				missing = append(missing, string(f))
			}
		}
		if len(missing) == 0 {
			out.Passed = true
			out.Message = fmt.Sprintf("all %d required fields collected", len(g.RequiredFields))
		} else {
			out.Message = "missing fields: " + strings.Join(missing, ", ")
			out.Details = map[string]any{"missing_fields": missing}
		}
	case model.GoalBookingConfirmed:
		out.Passed = intentObserved(state, model.IntentConfirmingBooking)
		out.Message = observedMessage(out.Passed, "booking confirmation")
	case model.GoalTransferInitiated:
		out.Passed = intentObserved(state, model.IntentInitiatingTransfer)
		out.Message = observedMessage(out.Passed, "transfer")
	case model.GoalConversationEnded:
		out.Passed = intentObserved(state, model.IntentSayingGoodbye) ||
			intentObserved(state, model.IntentClosing)
		out.Message = observedMessage(out.Passed, "conversation close")
	case model.GoalErrorHandled:
		recovered := intentObserved(state, model.IntentErrorMessage) && state.FlowState != model.FlowErrorRecovery
		out.Passed = recovered && !hasCritical(state.Issues)
		out.Message = observedMessage(out.Passed, "error recovery")
	default:
		out.Message = fmt.Sprintf("unknown goal type %q", g.Type)
	}
	return out
}

func intentObserved(state model.ProgressState, in model.Intent) bool {
	for _, o := range state.ObservedIntents {
		if o == in {
			return true
		}
	}
	return false
}

func observedMessage(passed bool, what string) string {
	if passed {
		return what + " observed"
	}
	return what + " never observed"
}

func hasCritical(issues []model.Issue) bool {
	for _, i := range issues {
		if i.Severity == model.SeverityCritical {
			return true
		}
	}
	return false
}

func checkConstraint(c model.Constraint, transcript []model.Turn, turnCount int) (model.ConstraintViolation, bool) {
	switch c.Type {
	case model.ConstraintMaxTurns:
		if c.MaxTurns > 0 && turnCount > c.MaxTurns {
			return model.ConstraintViolation{
				Constraint: c,
				Message:    fmt.Sprintf("conversation took %d turns, limit is %d", turnCount, c.MaxTurns),
			}, true
		}
	case model.ConstraintMustHappen:
		if !anyTurnMatches(transcript, c.Behavior) {
			return model.ConstraintViolation{
				Constraint: c,
				Message:    fmt.Sprintf("no turn matched required behavior %q", c.Behavior),
			}, true
		}
	case model.ConstraintMustNotHappen:
		if anyTurnMatches(transcript, c.Behavior) {
			return model.ConstraintViolation{
				Constraint: c,
				Message:    fmt.Sprintf("a turn matched forbidden behavior %q", c.Behavior),
			}, true
		}
	}
	return model.ConstraintViolation{}, false
}

// anyTurnMatches checks the behavior against every turn. A behavior written
// as /pattern/flags is compiled as a regex; anything else is a
// case-insensitive substring.
func anyTurnMatches(transcript []model.Turn, behavior string) bool {
	if behavior == "" {
		return false
	}
	match := substringMatcher(behavior)
	if re, ok := compileSlashPattern(behavior); ok {
		match = re.MatchString
	}
	for _, t := range transcript {
		if match(t.Content) {
			return true
		}
	}
	return false
}

func substringMatcher(needle string) func(string) bool {
	lower := strings.ToLower(needle)
	return func(s string) bool {
		return strings.Contains(strings.ToLower(s), lower)
	}
}

// compileSlashPattern parses /pattern/flags syntax. Only the i flag is
// honored; an invalid pattern falls back to substring matching.
func compileSlashPattern(behavior string) (*regexp.Regexp, bool) {
	if len(behavior) < 2 || !strings.HasPrefix(behavior, "/") {
		return nil, false
	}
	end := strings.LastIndex(behavior[1:], "/") + 1
	if end <= 0 {
		return nil, false
	}
	pattern, flags := behavior[1:end], behavior[end+1:]
	if strings.Contains(flags, "i") {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, false
	}
	return re, true
}

func verdict(goalList []model.Goal, results []model.GoalResult, violations []model.ConstraintViolation) bool {
	for i, g := range goalList {
		if g.Required && !results[i].Passed {
			return false
		}
	}
	for _, v := range violations {
		if v.Constraint.Severity == model.SeverityCritical {
			return false
		}
	}
	return true
}

func summarize(res model.GoalTestResult) string {
	var parts []string
	for _, g := range res.GoalResults {
		if !g.Passed {
			parts = append(parts, fmt.Sprintf("goal %s failed: %s", g.GoalID, g.Message))
		}
	}
	for _, v := range res.ConstraintViolations {
		parts = append(parts, fmt.Sprintf("constraint %s violated: %s", v.Constraint.Type, v.Message))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("all goals met in %d turns", res.TurnCount)
	}
	return strings.Join(parts, "; ")
}
