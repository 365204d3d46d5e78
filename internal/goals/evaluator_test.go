package goals

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metalagman/goalpilot/internal/model"
)

func stateWith(intents []model.Intent, fields ...model.Field) model.ProgressState {
	s := model.ProgressState{
		CollectedFields: make(map[model.Field]model.CollectedValue),
		ObservedIntents: intents,
		FlowState:       model.FlowGreeting,
	}
	for i, f := range fields {
		s.CollectedFields[f] = model.CollectedValue{Value: "v", CollectedAtTurn: i + 1}
	}
	return s
}

func transcriptOf(contents ...string) []model.Turn {
	turns := make([]model.Turn, 0, len(contents))
	for i, c := range contents {
		role := model.RoleAssistant
		if i%2 == 0 {
			role = model.RoleUser
		}
		turns = append(turns, model.Turn{Role: role, Content: c})
	}
	return turns
}

func TestEvaluate_DataCollectionGoal(t *testing.T) {
	goal := model.Goal{
		ID:             "contact",
		Type:           model.GoalDataCollection,
		RequiredFields: []model.Field{model.FieldParentFirstName, model.FieldPhoneNumber},
		Required:       true,
	}

	t.Run("all fields collected", func(t *testing.T) {
		state := stateWith(nil, model.FieldParentFirstName, model.FieldPhoneNumber)
		res := Evaluate(state, nil, []model.Goal{goal}, nil, 4, time.Second)
		assert.True(t, res.Passed)
		require.Len(t, res.GoalResults, 1)
		assert.True(t, res.GoalResults[0].Passed)
	})

	t.Run("missing field fails and is named", func(t *testing.T) {
		state := stateWith(nil, model.FieldParentFirstName)
		res := Evaluate(state, nil, []model.Goal{goal}, nil, 4, time.Second)
		assert.False(t, res.Passed)
		assert.Contains(t, res.GoalResults[0].Message, "phone_number")
		assert.Contains(t, res.Summary, "contact")
	})
}

func TestEvaluate_TerminalGoals(t *testing.T) {
	tests := []struct {
		name     string
		goalType model.GoalType
		observed model.Intent
		pass     bool
	}{
		{"booking confirmed", model.GoalBookingConfirmed, model.IntentConfirmingBooking, true},
		{"booking missing", model.GoalBookingConfirmed, model.IntentSayingGoodbye, false},
		{"transfer initiated", model.GoalTransferInitiated, model.IntentInitiatingTransfer, true},
		{"conversation ended", model.GoalConversationEnded, model.IntentSayingGoodbye, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			goal := model.Goal{ID: "g", Type: tc.goalType, Required: true}
			state := stateWith([]model.Intent{model.IntentGreeting, tc.observed})
			res := Evaluate(state, nil, []model.Goal{goal}, nil, 2, time.Second)
			assert.Equal(t, tc.pass, res.Passed)
		})
	}
}

func TestEvaluate_ConversationEndedNeedsCloseIntent(t *testing.T) {
	goal := model.Goal{ID: "ended", Type: model.GoalConversationEnded, Required: true}

	// A booking confirmation moves the flow into closing, but the goal is
	// about the agent actually wrapping up. Flow state alone must not pass it.
	state := stateWith([]model.Intent{model.IntentGreeting, model.IntentConfirmingBooking})
	state.FlowState = model.FlowClosing
	res := Evaluate(state, nil, []model.Goal{goal}, nil, 2, time.Second)
	assert.False(t, res.Passed)
	assert.False(t, res.GoalResults[0].Passed)

	state.ObservedIntents = append(state.ObservedIntents, model.IntentClosing)
	res = Evaluate(state, nil, []model.Goal{goal}, nil, 3, time.Second)
	assert.True(t, res.Passed)
}

func TestEvaluate_GoalResultsOrderedByPriority(t *testing.T) {
	goalList := []model.Goal{
		{ID: "late", Type: model.GoalBookingConfirmed, Priority: 9},
		{ID: "early", Type: model.GoalConversationEnded, Priority: 1},
	}
	state := stateWith([]model.Intent{model.IntentConfirmingBooking, model.IntentSayingGoodbye})

	res := Evaluate(state, nil, goalList, nil, 2, time.Second)
	require.Len(t, res.GoalResults, 2)
	assert.Equal(t, "early", res.GoalResults[0].GoalID)
	assert.Equal(t, "late", res.GoalResults[1].GoalID)
	assert.True(t, res.Passed)
}

func TestEvaluate_ErrorHandledGoal(t *testing.T) {
	goal := model.Goal{ID: "recovers", Type: model.GoalErrorHandled, Required: true}

	t.Run("recovered cleanly", func(t *testing.T) {
		state := stateWith([]model.Intent{model.IntentErrorMessage, model.IntentAskingPhone})
		state.FlowState = model.FlowCollectingParentInfo
		res := Evaluate(state, nil, []model.Goal{goal}, nil, 2, time.Second)
		assert.True(t, res.Passed)
	})

	t.Run("critical issue left unresolved", func(t *testing.T) {
		state := stateWith([]model.Intent{model.IntentErrorMessage, model.IntentAskingPhone})
		state.FlowState = model.FlowCollectingParentInfo
		state.Issues = []model.Issue{{Type: model.IssueError, Severity: model.SeverityCritical}}
		res := Evaluate(state, nil, []model.Goal{goal}, nil, 2, time.Second)
		assert.False(t, res.Passed)
	})
}

func TestEvaluate_MaxTurnsConstraint(t *testing.T) {
	c := model.Constraint{Type: model.ConstraintMaxTurns, MaxTurns: 5, Severity: model.SeverityCritical}

	res := Evaluate(stateWith(nil), nil, nil, []model.Constraint{c}, 6, time.Second)
	require.Len(t, res.ConstraintViolations, 1)
	assert.False(t, res.Passed)

	res = Evaluate(stateWith(nil), nil, nil, []model.Constraint{c}, 5, time.Second)
	assert.Empty(t, res.ConstraintViolations)
	assert.True(t, res.Passed)
}

func TestEvaluate_MustHappenConstraint(t *testing.T) {
	c := model.Constraint{Type: model.ConstraintMustHappen, Behavior: "insurance", Severity: model.SeverityCritical}

	res := Evaluate(stateWith(nil), transcriptOf("hello", "Do you have Insurance?"), nil, []model.Constraint{c}, 2, time.Second)
	assert.True(t, res.Passed, "case-insensitive substring should match")

	res = Evaluate(stateWith(nil), transcriptOf("hello", "what time works?"), nil, []model.Constraint{c}, 2, time.Second)
	assert.False(t, res.Passed)
}

func TestEvaluate_MustNotHappenRegex(t *testing.T) {
	c := model.Constraint{
		Type:     model.ConstraintMustNotHappen,
		Behavior: `/price|cost/i`,
		Severity: model.SeverityCritical,
	}

	res := Evaluate(stateWith(nil), transcriptOf("hi", "The Cost is $50."), nil, []model.Constraint{c}, 2, time.Second)
	require.Len(t, res.ConstraintViolations, 1)
	assert.False(t, res.Passed)

	res = Evaluate(stateWith(nil), transcriptOf("hi", "See you Monday."), nil, []model.Constraint{c}, 2, time.Second)
	assert.True(t, res.Passed)
}

func TestEvaluate_NonCriticalViolationDoesNotFailVerdict(t *testing.T) {
	c := model.Constraint{Type: model.ConstraintMaxTurns, MaxTurns: 1, Severity: model.SeverityMedium}
	res := Evaluate(stateWith(nil), nil, nil, []model.Constraint{c}, 3, time.Second)
	require.Len(t, res.ConstraintViolations, 1)
	assert.True(t, res.Passed)
	assert.Contains(t, res.Summary, "max_turns")
}

func TestEvaluate_OptionalGoalDoesNotFailVerdict(t *testing.T) {
	optional := model.Goal{ID: "nice-to-have", Type: model.GoalBookingConfirmed, Required: false}
	res := Evaluate(stateWith(nil), nil, []model.Goal{optional}, nil, 2, time.Second)
	assert.True(t, res.Passed)
	assert.False(t, res.GoalResults[0].Passed)
}

func TestEvaluate_VerdictConjunction(t *testing.T) {
	goal := model.Goal{ID: "booked", Type: model.GoalBookingConfirmed, Required: true}
	c := model.Constraint{Type: model.ConstraintMaxTurns, MaxTurns: 10, Severity: model.SeverityCritical}
	state := stateWith([]model.Intent{model.IntentConfirmingBooking})

	res := Evaluate(state, nil, []model.Goal{goal}, []model.Constraint{c}, 12, time.Second)
	assert.False(t, res.Passed, "passing goal plus critical violation must fail")

	res = Evaluate(state, nil, []model.Goal{goal}, []model.Constraint{c}, 8, time.Second)
	assert.True(t, res.Passed)
	assert.Contains(t, res.Summary, "all goals met")
}

func TestEvaluate_DurationAndTurnCountCarried(t *testing.T) {
	res := Evaluate(stateWith(nil), nil, nil, nil, 7, 1500*time.Millisecond)
	assert.Equal(t, 7, res.TurnCount)
	assert.Equal(t, int64(1500), res.DurationMs)
}
