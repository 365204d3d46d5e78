// Package progress tracks one running test: collected fields, goal sets,
// flow state, and detected conversation issues. A Tracker is private to one
// execution and is never shared.
package progress

import (
	"fmt"
	"sort"
	"time"

	"github.com/metalagman/goalpilot/internal/model"
)

// Detector thresholds.
const (
	// DefaultStuckThreshold is how many turns the flow state may sit
	// unchanged before the conversation counts as stuck.
	DefaultStuckThreshold = 5
	// DefaultMaxRepetition is how often the same primary intent may appear
	// in the recent window before it counts as repeating.
	DefaultMaxRepetition = 3

	intentHistoryWindow = 8
)

// fieldForIntent maps an agent intent to the zero-or-one field the user's
// answer supplies.
var fieldForIntent = map[model.Intent]model.Field{
	model.IntentAskingParentName:      model.FieldParentFirstName,
	model.IntentAskingParentFirstName: model.FieldParentFirstName,
	model.IntentAskingParentLastName:  model.FieldParentLastName,
	model.IntentAskingPhone:           model.FieldPhoneNumber,
	model.IntentAskingEmail:           model.FieldEmail,
	model.IntentAskingChildName:       model.FieldChildFirstName,
	model.IntentAskingChildDOB:        model.FieldChildDOB,
	model.IntentAskingChildAge:        model.FieldChildDOB,
	model.IntentAskingNewPatient:      model.FieldNewPatientStatus,
	model.IntentAskingPreviousVisit:   model.FieldPreviousVisit,
	model.IntentAskingBracesHistory:   model.FieldBracesHistory,
	model.IntentAskingInsurance:       model.FieldInsuranceProvider,
	model.IntentAskingInsuranceID:     model.FieldInsuranceMemberID,
	model.IntentAskingSpecialNeeds:    model.FieldSpecialNeeds,
	model.IntentAskingLocation:        model.FieldLocationPreference,
	model.IntentAskingTimePreference:  model.FieldTimePreference,
	model.IntentAskingDayPreference:   model.FieldTimePreference,
}

// flowForIntent is the fixed intent to flow-state lookup. Intents absent
// from the table leave the flow state untouched.
var flowForIntent = map[model.Intent]model.FlowState{
	model.IntentGreeting:              model.FlowGreeting,
	model.IntentAskingParentName:      model.FlowCollectingParentInfo,
	model.IntentAskingParentFirstName: model.FlowCollectingParentInfo,
	model.IntentAskingParentLastName:  model.FlowCollectingParentInfo,
	model.IntentAskingPhone:           model.FlowCollectingParentInfo,
	model.IntentAskingEmail:           model.FlowCollectingParentInfo,
	model.IntentAskingChildName:       model.FlowCollectingChildInfo,
	model.IntentAskingChildDOB:        model.FlowCollectingChildInfo,
	model.IntentAskingChildAge:        model.FlowCollectingChildInfo,
	model.IntentAskingNewPatient:      model.FlowCheckingPreviousVisits,
	model.IntentAskingPreviousVisit:   model.FlowCheckingPreviousVisits,
	model.IntentAskingBracesHistory:   model.FlowCheckingPreviousVisits,
	model.IntentAskingInsurance:       model.FlowCheckingInsurance,
	model.IntentAskingInsuranceID:     model.FlowCheckingInsurance,
	model.IntentAskingSpecialNeeds:    model.FlowCheckingSpecialNeeds,
	model.IntentAskingLocation:        model.FlowCollectingPreferences,
	model.IntentAskingTimePreference:  model.FlowCollectingPreferences,
	model.IntentAskingDayPreference:   model.FlowCollectingPreferences,
	model.IntentCheckingAvailability:  model.FlowSearchingAvailability,
	model.IntentPresentingOptions:     model.FlowPresentingOptions,
	model.IntentProposingTime:         model.FlowScheduling,
	model.IntentAskingConfirmation:    model.FlowConfirming,
	model.IntentConfirmingDetails:     model.FlowConfirming,
	model.IntentConfirmingBooking:     model.FlowClosing,
	model.IntentSayingGoodbye:         model.FlowClosing,
	model.IntentClosing:               model.FlowClosing,
	model.IntentInitiatingTransfer:    model.FlowTransferRequested,
	model.IntentRequestingCallback:    model.FlowTransferRequested,
	model.IntentErrorMessage:          model.FlowErrorRecovery,
	model.IntentOffTopic:              model.FlowOffTopic,
}

// Tracker is the per-test progress state machine.
type Tracker struct {
	goals       []model.Goal
	constraints []model.Constraint

	collected map[model.Field]model.CollectedValue
	required  map[model.Field]bool

	active    map[string]bool
	completed map[string]bool
	failed    map[string]bool

	flowState        model.FlowState
	flowStateSince   int
	enteredRecovery  bool
	observedIntents  []model.Intent
	observedTerminal map[model.Intent]bool
	issues           []model.Issue
	turn             int
	updatedAt        time.Time

	stuckThreshold int
	maxRepetition  int
}

// NewTracker builds a tracker with every goal active and every data_collection
// required field pending.
func NewTracker(goals []model.Goal, constraints []model.Constraint) *Tracker {
	ordered := make([]model.Goal, len(goals))
	copy(ordered, goals)
	// lower priority evaluates first; stable keeps authoring order for ties
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})
	t := &Tracker{
		goals:            ordered,
		constraints:      constraints,
		collected:        make(map[model.Field]model.CollectedValue),
		required:         make(map[model.Field]bool),
		active:           make(map[string]bool),
		completed:        make(map[string]bool),
		failed:           make(map[string]bool),
		flowState:        model.FlowGreeting,
		observedTerminal: make(map[model.Intent]bool),
		stuckThreshold:   DefaultStuckThreshold,
		maxRepetition:    DefaultMaxRepetition,
	}
	for _, g := range goals {
		t.active[g.ID] = true
		if g.Type == model.GoalDataCollection {
			for _, f := range g.RequiredFields {
				t.required[f] = true
			}
		}
	}
	return t
}

// SetThresholds overrides the issue-detector thresholds. Zero values keep
// the defaults.
func (t *Tracker) SetThresholds(stuck, repetition int) {
	if stuck > 0 {
		t.stuckThreshold = stuck
	}
	if repetition > 0 {
		t.maxRepetition = repetition
	}
}

// Update consumes one (intent, user response) pair. It records a collected
// field when the intent maps to one, advances the flow state, runs the
// issue detectors, and re-evaluates the goal sets.
func (t *Tracker) Update(in model.IntentResult, userResponse string, turn int) {
	t.turn = turn

	if f, ok := fieldForIntent[in.PrimaryIntent]; ok && userResponse != "" {
		if _, seen := t.collected[f]; !seen {
			value := userResponse
			if v, ok := in.ExtractedInfo[string(f)]; ok && v != "" {
				value = v
			}
			t.collected[f] = model.CollectedValue{
				Value:           value,
				CollectedAtTurn: turn,
				UserResponse:    userResponse,
			}
		}
	}

	if next, ok := flowForIntent[in.PrimaryIntent]; ok && next != t.flowState {
		t.flowState = next
		t.flowStateSince = turn
		if next == model.FlowErrorRecovery {
			t.enteredRecovery = true
		}
	}

	if model.TerminalIntents[in.PrimaryIntent] {
		t.observedTerminal[in.PrimaryIntent] = true
	}
	t.observedIntents = append(t.observedIntents, in.PrimaryIntent)
	t.updatedAt = time.Now()

	t.detectIssues(in, turn)
	t.reevaluateGoals()
}

func (t *Tracker) reevaluateGoals() {
	for _, g := range t.goals {
		if t.completed[g.ID] || t.failed[g.ID] {
			continue
		}
		switch g.Type {
		case model.GoalDataCollection:
			if t.fieldsCollected(g.RequiredFields) {
				t.complete(g.ID)
			}
		case model.GoalBookingConfirmed:
			if t.observedTerminal[model.IntentConfirmingBooking] {
				t.complete(g.ID)
			}
		case model.GoalTransferInitiated:
			if t.observedTerminal[model.IntentInitiatingTransfer] {
				t.complete(g.ID)
			}
		case model.GoalConversationEnded:
			if t.observedTerminal[model.IntentSayingGoodbye] || t.observedTerminal[model.IntentClosing] {
				t.complete(g.ID)
			}
		case model.GoalErrorHandled:
			if t.enteredRecovery {
				if t.hasCriticalIssue() {
					t.fail(g.ID)
				} else if t.flowState != model.FlowErrorRecovery {
					t.complete(g.ID)
				}
			}
		}
	}
}

func (t *Tracker) complete(id string) {
	delete(t.active, id)
	delete(t.failed, id)
	t.completed[id] = true
}

func (t *Tracker) fail(id string) {
	delete(t.active, id)
	delete(t.completed, id)
	t.failed[id] = true
}

func (t *Tracker) fieldsCollected(fields []model.Field) bool {
	for _, f := range fields {
		if _, ok := t.collected[f]; !ok {
			return false
		}
	}
	return true
}

// detectIssues runs the stuck, repetition, and off-topic detectors. Each
// issue type is recorded at most once per turn.
func (t *Tracker) detectIssues(in model.IntentResult, turn int) {
	seen := make(map[model.IssueType]bool)
	record := func(issue model.Issue) {
		if seen[issue.Type] {
			return
		}
		seen[issue.Type] = true
		issue.TurnNumber = turn
		t.issues = append(t.issues, issue)
	}

	if turn-t.flowStateSince > t.stuckThreshold {
		record(model.Issue{
			Type:        model.IssueStuck,
			Severity:    model.SeverityCritical,
			Description: fmt.Sprintf("flow state %q unchanged for %d turns", t.flowState, turn-t.flowStateSince),
		})
	}

	if n := t.recentRepetitions(in.PrimaryIntent); n > t.maxRepetition {
		sev := model.SeverityMedium
		if in.PrimaryIntent == model.IntentErrorMessage {
			sev = model.SeverityCritical
		}
		record(model.Issue{
			Type:        model.IssueRepeat,
			Severity:    sev,
			Description: fmt.Sprintf("intent %q repeated %d times in recent turns", in.PrimaryIntent, n),
		})
	}

	if in.PrimaryIntent == model.IntentOffTopic {
		record(model.Issue{
			Type:        model.IssueOffTopic,
			Severity:    model.SeverityLow,
			Description: "agent reply is off topic",
			Context:     in.Reasoning,
		})
	}

	if in.PrimaryIntent == model.IntentErrorMessage {
		record(model.Issue{
			Type:        model.IssueError,
			Severity:    model.SeverityMedium,
			Description: "agent reported an error",
			Context:     in.Reasoning,
		})
	}
}

func (t *Tracker) recentRepetitions(in model.Intent) int {
	window := t.observedIntents
	if len(window) > intentHistoryWindow {
		window = window[len(window)-intentHistoryWindow:]
	}
	n := 0
	for _, o := range window {
		if o == in {
			n++
		}
	}
	return n
}

func (t *Tracker) hasCriticalIssue() bool {
	for _, i := range t.issues {
		if i.Severity == model.SeverityCritical {
			return true
		}
	}
	return false
}

// ShouldAbort reports whether a critical-severity issue exists.
func (t *Tracker) ShouldAbort() bool {
	return t.hasCriticalIssue()
}

// GoalsComplete reports whether every required goal is in the completed set.
func (t *Tracker) GoalsComplete() bool {
	for _, g := range t.goals {
		if g.Required && !t.completed[g.ID] {
			return false
		}
	}
	return true
}

// HasFailedGoals reports whether any goal is in the failed set.
func (t *Tracker) HasFailedGoals() bool {
	return len(t.failed) > 0
}

// PendingFields lists required fields not yet collected, sorted for stable
// cache keys downstream.
func (t *Tracker) PendingFields() []model.Field {
	var pending []model.Field
	for f := range t.required {
		if _, ok := t.collected[f]; !ok {
			pending = append(pending, f)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i] < pending[j] })
	return pending
}

// FlowState returns the current flow state.
func (t *Tracker) FlowState() model.FlowState {
	return t.flowState
}

// Snapshot copies the current state for evaluation and persistence.
func (t *Tracker) Snapshot() model.ProgressState {
	s := model.ProgressState{
		CollectedFields: make(map[model.Field]model.CollectedValue, len(t.collected)),
		PendingFields:   t.PendingFields(),
		FlowState:       t.flowState,
		Issues:          append([]model.Issue(nil), t.issues...),
		ObservedIntents: append([]model.Intent(nil), t.observedIntents...),
		TurnNumber:      t.turn,
		UpdatedAt:       t.updatedAt,
	}
	if n := len(t.observedIntents); n > 0 {
		s.LastAgentIntent = t.observedIntents[n-1]
	}
	for f, v := range t.collected {
		s.CollectedFields[f] = v
	}
	s.ActiveGoals = sortedKeys(t.active)
	s.CompletedGoals = sortedKeys(t.completed)
	s.FailedGoals = sortedKeys(t.failed)
	return s
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
