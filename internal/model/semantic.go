package model

import "time"

// SemanticIntent classifies one response in a turn-quality evaluation. This
// is a separate vocabulary from the agent Intent enum.
type SemanticIntent string

// Semantic intents.
const (
	SemIntentQuestion             SemanticIntent = "question"
	SemIntentAnswer               SemanticIntent = "answer"
	SemIntentConfirmation         SemanticIntent = "confirmation"
	SemIntentDenial               SemanticIntent = "denial"
	SemIntentGreeting             SemanticIntent = "greeting"
	SemIntentFarewell             SemanticIntent = "farewell"
	SemIntentSchedulingRequest    SemanticIntent = "scheduling_request"
	SemIntentProvidingInformation SemanticIntent = "providing_information"
	SemIntentSeekingInformation   SemanticIntent = "seeking_information"
	SemIntentErrorReport          SemanticIntent = "error_report"
	SemIntentTransferRequest      SemanticIntent = "transfer_request"
	SemIntentSmallTalk            SemanticIntent = "small_talk"
	SemIntentUnknown              SemanticIntent = "unknown"
)

// AllSemanticIntents lists the 13-value semantic intent vocabulary.
var AllSemanticIntents = []SemanticIntent{
	SemIntentQuestion,
	SemIntentAnswer,
	SemIntentConfirmation,
	SemIntentDenial,
	SemIntentGreeting,
	SemIntentFarewell,
	SemIntentSchedulingRequest,
	SemIntentProvidingInformation,
	SemIntentSeekingInformation,
	SemIntentErrorReport,
	SemIntentTransferRequest,
	SemIntentSmallTalk,
	SemIntentUnknown,
}

// ValidSemanticIntent reports whether v belongs to the semantic intent enum.
func ValidSemanticIntent(v SemanticIntent) bool {
	for _, si := range AllSemanticIntents {
		if si == v {
			return true
		}
	}
	return false
}

// ResponseQuality scores one assistant response.
type ResponseQuality struct {
	IsHelpful        bool    `json:"is_helpful"`
	IsOnTopic        bool    `json:"is_on_topic"`
	HasError         bool    `json:"has_error"`
	ErrorType        string  `json:"error_type,omitempty"`
	UncertaintyLevel string  `json:"uncertainty_level"`
	ProfessionalTone bool    `json:"professional_tone"`
	Confidence       float64 `json:"confidence"`
	Reasoning        string  `json:"reasoning,omitempty"`
}

// IntentAnalysis is the semantic-intent portion of an evaluation.
type IntentAnalysis struct {
	PrimaryIntent     SemanticIntent    `json:"primary_intent"`
	Confidence        float64           `json:"confidence"`
	SecondaryIntents  []SemanticIntent  `json:"secondary_intents,omitempty"`
	ExtractedEntities map[string]string `json:"extracted_entities,omitempty"`
}

// FlowAnalysis is the conversation-flow portion of an evaluation.
type FlowAnalysis struct {
	FlowState              FlowState `json:"flow_state"`
	IsProgressingCorrectly bool      `json:"is_progressing_correctly"`
	IsStuck                bool      `json:"is_stuck"`
	IsRepeating            bool      `json:"is_repeating"`
	MissingInformation     []string  `json:"missing_information,omitempty"`
	Confidence             float64   `json:"confidence"`
}

// ValidationResult is the expectation-match portion of an evaluation.
type ValidationResult struct {
	Passed                bool     `json:"passed"`
	MatchedExpectations   []string `json:"matched_expectations"`
	UnmatchedExpectations []string `json:"unmatched_expectations"`
	UnexpectedBehaviors   []string `json:"unexpected_behaviors"`
	Severity              Severity `json:"severity"`
	Confidence            float64  `json:"confidence"`
	Reasoning             string   `json:"reasoning,omitempty"`
	SuggestedAction       string   `json:"suggested_action,omitempty"`
}

// SemanticEvaluation is a fully-populated turn assessment. Fallback paths
// fill every sub-object; consumers never see a partial evaluation.
type SemanticEvaluation struct {
	ResponseQuality  ResponseQuality  `json:"response_quality"`
	Intent           IntentAnalysis   `json:"intent"`
	FlowState        FlowAnalysis     `json:"flow_state"`
	Validation       ValidationResult `json:"validation"`
	Timestamp        time.Time        `json:"timestamp"`
	EvaluationTimeMs int64            `json:"evaluation_time_ms"`
	IsFallback       bool             `json:"is_fallback"`
}

// Expectation is a structured semantic expectation attached to a step.
type Expectation struct {
	Description string   `json:"description" yaml:"description"`
	Required    bool     `json:"required" yaml:"required"`
	Severity    Severity `json:"severity,omitempty" yaml:"severity,omitempty"`
	Weight      float64  `json:"weight,omitempty" yaml:"weight,omitempty"`
}

// StepContext is the input to one semantic evaluation.
type StepContext struct {
	StepID               string        `json:"step_id"`
	UserMessage          string        `json:"user_message"`
	AssistantMessage     string        `json:"assistant_message"`
	History              []Turn        `json:"history,omitempty"`
	ExpectedBehaviors    []string      `json:"expected_behaviors,omitempty"`
	UnexpectedBehaviors  []string      `json:"unexpected_behaviors,omitempty"`
	SemanticExpectations []Expectation `json:"semantic_expectations,omitempty"`
	NegativeExpectations []Expectation `json:"negative_expectations,omitempty"`
}
