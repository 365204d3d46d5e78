package semantic

import (
	"regexp"
	"strings"
	"time"

	"github.com/metalagman/goalpilot/internal/model"
)

// hardErrorPattern catches raw failure tokens leaking into user-facing text.
var hardErrorPattern = regexp.MustCompile(`(?i)\b(error|exception|null|undefined|nan)\b`)

// softWarningPhrases lower the quality score without failing the turn.
var softWarningPhrases = []string{
	"sorry",
	"unfortunately",
	"i can't",
	"i cannot",
	"unable to",
	"not sure",
	"something went wrong",
}

const fallbackConfidence = 0.5

// fallbackEvaluate scores a step with regex and keyword checks only. It
// always returns a fully-populated evaluation with IsFallback set.
func fallbackEvaluate(step model.StepContext, started time.Time) model.SemanticEvaluation {
	msg := step.AssistantMessage
	lower := strings.ToLower(msg)

	hardError := hardErrorPattern.FindString(msg)
	softWarning := ""
	for _, p := range softWarningPhrases {
		if strings.Contains(lower, p) {
			softWarning = p
			break
		}
	}

	var matched, unmatched []string
	for _, e := range expectedBehaviors(step) {
		if behaviorMatches(msg, e) {
			matched = append(matched, e)
		} else {
			unmatched = append(unmatched, e)
		}
	}
	var unexpected []string
	for _, e := range unexpectedBehaviors(step) {
		if behaviorMatches(msg, e) {
			unexpected = append(unexpected, e)
		}
	}

	severity := model.SeverityNone
	switch {
	case hardError != "":
		severity = model.SeverityCritical
	case len(unexpected) > 0:
		severity = model.SeverityHigh
	case len(unmatched) > 0:
		severity = model.SeverityMedium
	case softWarning != "":
		severity = model.SeverityLow
	}

	uncertainty := "low"
	if softWarning != "" {
		uncertainty = "medium"
	}
	if hardError != "" {
		uncertainty = "high"
	}

	eval := model.SemanticEvaluation{
		ResponseQuality: model.ResponseQuality{
			IsHelpful:        hardError == "" && len(unexpected) == 0,
			IsOnTopic:        hardError == "",
			HasError:         hardError != "",
			UncertaintyLevel: uncertainty,
			ProfessionalTone: hardError == "",
			Confidence:       fallbackConfidence,
			Reasoning:        "keyword evaluation",
		},
		Intent: model.IntentAnalysis{
			PrimaryIntent: classifySemanticIntent(msg),
			Confidence:    fallbackConfidence,
		},
		FlowState: model.FlowAnalysis{
			FlowState:              guessFlowState(lower),
			IsProgressingCorrectly: severity == model.SeverityNone || severity == model.SeverityLow,
			Confidence:             fallbackConfidence,
		},
		Validation: model.ValidationResult{
			Passed:                severity == model.SeverityNone || severity == model.SeverityLow,
			MatchedExpectations:   orEmpty(matched),
			UnmatchedExpectations: orEmpty(unmatched),
			UnexpectedBehaviors:   orEmpty(unexpected),
			Severity:              severity,
			Confidence:            fallbackConfidence,
		},
		Timestamp:        time.Now(),
		EvaluationTimeMs: time.Since(started).Milliseconds(),
		IsFallback:       true,
	}
	if hardError != "" {
		eval.ResponseQuality.ErrorType = "hard_error_token"
		eval.Validation.Reasoning = "hard error token " + strings.ToLower(hardError) + " present in response"
	}
	return eval
}

func expectedBehaviors(step model.StepContext) []string {
	out := append([]string(nil), step.ExpectedBehaviors...)
	for _, e := range step.SemanticExpectations {
		out = append(out, e.Description)
	}
	return out
}

func unexpectedBehaviors(step model.StepContext) []string {
	out := append([]string(nil), step.UnexpectedBehaviors...)
	for _, e := range step.NegativeExpectations {
		out = append(out, e.Description)
	}
	return out
}

// behaviorMatches interprets /pattern/flags as a regex and anything else as
// a case-insensitive substring.
func behaviorMatches(msg, behavior string) bool {
	if behavior == "" {
		return false
	}
	if re, ok := compileSlashPattern(behavior); ok {
		return re.MatchString(msg)
	}
	return strings.Contains(strings.ToLower(msg), strings.ToLower(behavior))
}

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

func classifySemanticIntent(msg string) model.SemanticIntent {
	lower := strings.ToLower(msg)
	switch {
	case hardErrorPattern.MatchString(msg):
		return model.SemIntentErrorReport
	case strings.Contains(lower, "transfer") || strings.Contains(lower, "connect you"):
		return model.SemIntentTransferRequest
	case strings.Contains(lower, "goodbye") || strings.Contains(lower, "bye") || strings.Contains(lower, "take care"):
		return model.SemIntentFarewell
	case strings.Contains(lower, "hello") || strings.Contains(lower, "hi there") || strings.Contains(lower, "welcome"):
		return model.SemIntentGreeting
	case strings.Contains(lower, "appointment") || strings.Contains(lower, "schedule") || strings.Contains(lower, "booking"):
		return model.SemIntentSchedulingRequest
	case strings.Contains(lower, "confirm") || strings.Contains(lower, "that's correct"):
		return model.SemIntentConfirmation
	case strings.HasSuffix(strings.TrimSpace(msg), "?"):
		return model.SemIntentQuestion
	case lower == "":
		return model.SemIntentUnknown
	default:
		return model.SemIntentProvidingInformation
	}
}

func guessFlowState(lower string) model.FlowState {
	switch {
	case strings.Contains(lower, "transfer"):
		return model.FlowTransferRequested
	case strings.Contains(lower, "confirm"):
		return model.FlowConfirming
	case strings.Contains(lower, "available") || strings.Contains(lower, "opening"):
		return model.FlowSearchingAvailability
	case strings.Contains(lower, "insurance"):
		return model.FlowCheckingInsurance
	case strings.Contains(lower, "goodbye") || strings.Contains(lower, "bye"):
		return model.FlowClosing
	case strings.Contains(lower, "name") || strings.Contains(lower, "phone") || strings.Contains(lower, "email"):
		return model.FlowCollectingParentInfo
	default:
		return model.FlowGreeting
	}
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
