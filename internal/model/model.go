// Package model defines the shared domain types for goalpilot test executions.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role identifies the author of a conversation turn.
type Role string

// Conversation roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is a single entry in a transcript. Transcripts are append-only.
type Turn struct {
	Role             Role      `json:"role"`
	Content          string    `json:"content"`
	Timestamp        time.Time `json:"timestamp"`
	ResponseTimeMs   int64     `json:"response_time_ms,omitempty"`
	StepID           string    `json:"step_id,omitempty"`
	ValidationPassed *bool     `json:"validation_passed,omitempty"`
}

// ToolCall is the normalized record of a tool invocation reported by the
// remote agent, regardless of which vendor shape carried it.
type ToolCall struct {
	ToolName string `json:"tool_name"`
	Input    string `json:"input,omitempty"`
	Output   string `json:"output,omitempty"`
	Status   string `json:"status,omitempty"`
}

// Field identifies a collectable persona field.
type Field string

// Collectable fields.
const (
	FieldParentFirstName    Field = "parent_first_name"
	FieldParentLastName     Field = "parent_last_name"
	FieldPhoneNumber        Field = "phone_number"
	FieldEmail              Field = "email"
	FieldChildFirstName     Field = "child_first_name"
	FieldChildLastName      Field = "child_last_name"
	FieldChildDOB           Field = "child_dob"
	FieldNewPatientStatus   Field = "new_patient_status"
	FieldPreviousVisit      Field = "previous_visit"
	FieldBracesHistory      Field = "braces_history"
	FieldInsuranceProvider  Field = "insurance_provider"
	FieldInsuranceMemberID  Field = "insurance_member_id"
	FieldSpecialNeeds       Field = "special_needs"
	FieldLocationPreference Field = "location_preference"
	FieldTimePreference     Field = "time_preference"
)

// FieldType names a dynamic value generator.
type FieldType string

// Dynamic field generator types.
const (
	TypeFirstName FieldType = "first_name"
	TypeLastName  FieldType = "last_name"
	TypeFullName  FieldType = "full_name"
	TypePhone     FieldType = "phone"
	TypeEmail     FieldType = "email"
	TypeDate      FieldType = "date"
	TypeBool      FieldType = "bool"
	TypeCategory  FieldType = "category"
	TypeID        FieldType = "id"
)

// FieldSpec describes how to generate a dynamic field value.
type FieldSpec struct {
	Type        FieldType         `json:"type" yaml:"type"`
	Constraints map[string]string `json:"constraints,omitempty" yaml:"constraints,omitempty"`
	Options     []string          `json:"options,omitempty" yaml:"options,omitempty"`
	Seed        *int64            `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// FieldValue is either a concrete value or a generator spec. The zero value
// is "unset" and resolves to an empty string.
type FieldValue struct {
	set      bool
	dynamic  bool
	concrete string
	spec     FieldSpec
}

// Concrete wraps a fixed value.
func Concrete(v string) FieldValue {
	return FieldValue{set: true, concrete: v}
}

// Generated wraps a dynamic field spec.
func Generated(spec FieldSpec) FieldValue {
	return FieldValue{set: true, dynamic: true, spec: spec}
}

// IsZero reports whether the field was never supplied.
func (f FieldValue) IsZero() bool { return !f.set }

// IsDynamic reports whether the value must be generated at resolution time.
func (f FieldValue) IsDynamic() bool { return f.set && f.dynamic }

// Value returns the concrete value. Empty for unset or dynamic fields.
func (f FieldValue) Value() string {
	if !f.set || f.dynamic {
		return ""
	}
	return f.concrete
}

// Spec returns the generator spec for dynamic fields.
func (f FieldValue) Spec() (FieldSpec, bool) {
	if !f.set || !f.dynamic {
		return FieldSpec{}, false
	}
	return f.spec, true
}

type fieldValueWire struct {
	Generate *FieldSpec `json:"generate" yaml:"generate"`
}

// MarshalJSON writes concrete values as plain strings and dynamic values as
// {"generate": {...}} objects.
func (f FieldValue) MarshalJSON() ([]byte, error) {
	if !f.set {
		return []byte("null"), nil
	}
	if f.dynamic {
		return json.Marshal(fieldValueWire{Generate: &f.spec})
	}
	return json.Marshal(f.concrete)
}

// UnmarshalJSON accepts a plain string, null, or a {"generate": {...}} object.
func (f *FieldValue) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = FieldValue{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = Concrete(s)
		return nil
	}
	var wire fieldValueWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("field value: %w", err)
	}
	if wire.Generate == nil {
		return fmt.Errorf("field value object missing generate key")
	}
	*f = Generated(*wire.Generate)
	return nil
}

// UnmarshalYAML mirrors UnmarshalJSON for scenario files.
func (f *FieldValue) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err == nil {
		*f = Concrete(s)
		return nil
	}
	var wire fieldValueWire
	if err := unmarshal(&wire); err != nil {
		return fmt.Errorf("field value: %w", err)
	}
	if wire.Generate == nil {
		return fmt.Errorf("field value object missing generate key")
	}
	*f = Generated(*wire.Generate)
	return nil
}

// ChildData holds one child's patient data in a persona template.
type ChildData struct {
	FirstName       FieldValue `json:"first_name" yaml:"first_name"`
	LastName        FieldValue `json:"last_name" yaml:"last_name"`
	DateOfBirth     FieldValue `json:"date_of_birth" yaml:"date_of_birth"`
	IsNewPatient    FieldValue `json:"is_new_patient" yaml:"is_new_patient"`
	HadBracesBefore FieldValue `json:"had_braces_before,omitempty" yaml:"had_braces_before,omitempty"`
	SpecialNeeds    FieldValue `json:"special_needs,omitempty" yaml:"special_needs,omitempty"`
}

// DataInventory holds everything a simulated caller can supply.
type DataInventory struct {
	ParentFirstName   FieldValue  `json:"parent_first_name" yaml:"parent_first_name"`
	ParentLastName    FieldValue  `json:"parent_last_name" yaml:"parent_last_name"`
	Phone             FieldValue  `json:"phone" yaml:"phone"`
	Email             FieldValue  `json:"email" yaml:"email"`
	Children          []ChildData `json:"children,omitempty" yaml:"children,omitempty"`
	InsuranceProvider FieldValue  `json:"insurance_provider,omitempty" yaml:"insurance_provider,omitempty"`
	InsuranceMemberID FieldValue  `json:"insurance_member_id,omitempty" yaml:"insurance_member_id,omitempty"`
	PreferredLocation FieldValue  `json:"preferred_location,omitempty" yaml:"preferred_location,omitempty"`
	PreferredTime     FieldValue  `json:"preferred_time,omitempty" yaml:"preferred_time,omitempty"`
	HasVisitedBefore  FieldValue  `json:"has_visited_before,omitempty" yaml:"has_visited_before,omitempty"`
}

// PersonaTraits controls how the simulated caller phrases responses.
type PersonaTraits struct {
	Verbosity         string `json:"verbosity" yaml:"verbosity"`
	ProvidesExtraInfo bool   `json:"provides_extra_info" yaml:"provides_extra_info"`
	Patience          string `json:"patience" yaml:"patience"`
	TechSavviness     string `json:"tech_savviness" yaml:"tech_savviness"`
	MakesTypos        bool   `json:"makes_typos,omitempty" yaml:"makes_typos,omitempty"`
	SelfCorrects      bool   `json:"self_corrects,omitempty" yaml:"self_corrects,omitempty"`
	ResponseDelayMs   int    `json:"response_delay_ms,omitempty" yaml:"response_delay_ms,omitempty"`
}

// PersonaTemplate is a caller profile as authored, possibly with dynamic fields.
type PersonaTemplate struct {
	Name        string        `json:"name" yaml:"name"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Data        DataInventory `json:"data" yaml:"data"`
	Traits      PersonaTraits `json:"traits" yaml:"traits"`
}

// ResolvedChild is a child record with every field concrete.
type ResolvedChild struct {
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	DateOfBirth     string `json:"date_of_birth"`
	IsNewPatient    bool   `json:"is_new_patient"`
	HadBracesBefore bool   `json:"had_braces_before"`
	SpecialNeeds    string `json:"special_needs"`
}

// ResolvedInventory is a data inventory with every field concrete.
type ResolvedInventory struct {
	ParentFirstName   string          `json:"parent_first_name"`
	ParentLastName    string          `json:"parent_last_name"`
	Phone             string          `json:"phone"`
	Email             string          `json:"email"`
	Children          []ResolvedChild `json:"children,omitempty"`
	InsuranceProvider string          `json:"insurance_provider,omitempty"`
	InsuranceMemberID string          `json:"insurance_member_id,omitempty"`
	PreferredLocation string          `json:"preferred_location,omitempty"`
	PreferredTime     string          `json:"preferred_time,omitempty"`
	HasVisitedBefore  bool            `json:"has_visited_before"`
}

// ResolvedPersona is a persona with zero dynamic fields remaining.
type ResolvedPersona struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Data        ResolvedInventory `json:"data"`
	Traits      PersonaTraits     `json:"traits"`
}

// GoalType classifies what a goal checks.
type GoalType string

// Goal types.
const (
	GoalDataCollection    GoalType = "data_collection"
	GoalBookingConfirmed  GoalType = "booking_confirmed"
	GoalTransferInitiated GoalType = "transfer_initiated"
	GoalConversationEnded GoalType = "conversation_ended"
	GoalErrorHandled      GoalType = "error_handled"
)

// Goal is a declared success criterion for a test.
type Goal struct {
	ID             string   `json:"id" yaml:"id"`
	Type           GoalType `json:"type" yaml:"type"`
	Description    string   `json:"description,omitempty" yaml:"description,omitempty"`
	RequiredFields []Field  `json:"required_fields,omitempty" yaml:"required_fields,omitempty"`
	Priority       int      `json:"priority" yaml:"priority"`
	Required       bool     `json:"required" yaml:"required"`
}

// ConstraintType classifies a boundary condition.
type ConstraintType string

// Constraint types.
const (
	ConstraintMaxTurns      ConstraintType = "max_turns"
	ConstraintMustHappen    ConstraintType = "must_happen"
	ConstraintMustNotHappen ConstraintType = "must_not_happen"
)

// Severity grades issues and constraint violations.
type Severity string

// Severity levels. SeverityNone only appears in validation results.
const (
	SeverityNone     Severity = "none"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Constraint is a boundary condition independent of goal completion.
type Constraint struct {
	Type        ConstraintType `json:"type" yaml:"type"`
	Severity    Severity       `json:"severity" yaml:"severity"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	MaxTurns    int            `json:"max_turns,omitempty" yaml:"max_turns,omitempty"`
	Behavior    string         `json:"behavior,omitempty" yaml:"behavior,omitempty"`
}

// CollectedValue records one field handed over during the conversation.
type CollectedValue struct {
	Value            string `json:"value"`
	CollectedAtTurn  int    `json:"collected_at_turn"`
	ConfirmedByAgent bool   `json:"confirmed_by_agent"`
	UserResponse     string `json:"user_response,omitempty"`
}

// IssueType classifies a detected conversation problem.
type IssueType string

// Issue types.
const (
	IssueStuck    IssueType = "stuck"
	IssueRepeat   IssueType = "repeating"
	IssueOffTopic IssueType = "off_topic"
	IssueError    IssueType = "error"
)

// Issue is one detected conversation problem.
type Issue struct {
	Type        IssueType `json:"type"`
	Description string    `json:"description"`
	TurnNumber  int       `json:"turn_number"`
	Severity    Severity  `json:"severity"`
	Context     string    `json:"context,omitempty"`
}

// GoalResult is the per-goal outcome inside a GoalTestResult.
type GoalResult struct {
	GoalID  string         `json:"goal_id"`
	Type    GoalType       `json:"type"`
	Passed  bool           `json:"passed"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ConstraintViolation pairs a violated constraint with an explanation.
type ConstraintViolation struct {
	Constraint Constraint `json:"constraint"`
	Message    string     `json:"message"`
}

// GoalTestResult is the final verdict for one test execution.
type GoalTestResult struct {
	TestID               string                `json:"test_id"`
	Passed               bool                  `json:"passed"`
	GoalResults          []GoalResult          `json:"goal_results"`
	ConstraintViolations []ConstraintViolation `json:"constraint_violations,omitempty"`
	Issues               []Issue               `json:"issues,omitempty"`
	TurnCount            int                   `json:"turn_count"`
	DurationMs           int64                 `json:"duration_ms"`
	Summary              string                `json:"summary"`
	ErrorMessage         string                `json:"error_message,omitempty"`
	Transcript           []Turn                `json:"transcript,omitempty"`
	ResolvedPersona      *ResolvedPersona      `json:"resolved_persona,omitempty"`
	Seed                 int64                 `json:"seed,omitempty"`
}

// ProgressState is a point-in-time snapshot of one running test: collected
// fields, goal sets, flow state, and detected issues.
type ProgressState struct {
	CollectedFields map[Field]CollectedValue `json:"collected_fields"`
	PendingFields   []Field                  `json:"pending_fields"`
	ActiveGoals     []string                 `json:"active_goals"`
	CompletedGoals  []string                 `json:"completed_goals"`
	FailedGoals     []string                 `json:"failed_goals"`
	FlowState       FlowState                `json:"flow_state"`
	Issues          []Issue                  `json:"issues"`
	ObservedIntents []Intent                 `json:"observed_intents,omitempty"`
	LastAgentIntent Intent                   `json:"last_agent_intent,omitempty"`
	TurnNumber      int                      `json:"turn_number"`
	UpdatedAt       time.Time                `json:"updated_at"`
}
