// Package respond produces the simulated caller's next utterance from the
// classified agent intent and the resolved persona.
package respond

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/metalagman/goalpilot/internal/llm"
	"github.com/metalagman/goalpilot/internal/model"
)

// Mode selects how utterances are produced.
type Mode string

// Synthesis modes.
const (
	ModeTemplate Mode = "template"
	ModeLLM      Mode = "llm"
)

// historyWindow bounds how many turns the LLM generation prompt sees.
const historyWindow = 6

// Synthesizer builds user utterances. It keeps per-execution state: which
// facts were already volunteered and which child is currently being
// discussed. Reset clears both for reuse across tests.
type Synthesizer struct {
	mode      Mode
	completer llm.Completer

	volunteered map[model.Field]bool
	childIndex  int
}

// NewSynthesizer constructs a Synthesizer. completer is only used in LLM
// mode and may be nil otherwise; LLM-mode failures degrade to template mode.
func NewSynthesizer(mode Mode, completer llm.Completer) *Synthesizer {
	return &Synthesizer{
		mode:        mode,
		completer:   completer,
		volunteered: make(map[model.Field]bool),
	}
}

// Reset clears volunteered-fact tracking and the child cursor.
func (s *Synthesizer) Reset() {
	s.volunteered = make(map[model.Field]bool)
	s.childIndex = 0
}

// NextChild advances the child cursor for multi-child personas.
func (s *Synthesizer) NextChild() {
	s.childIndex++
}

// ChildIndex returns the current child cursor position.
func (s *Synthesizer) ChildIndex() int {
	return s.childIndex
}

// Respond produces the next user utterance. It never fails: LLM problems
// fall back to the deterministic template path.
func (s *Synthesizer) Respond(ctx context.Context, in model.IntentResult, persona model.ResolvedPersona, history []model.Turn) string {
	if s.mode == ModeLLM && s.completer != nil {
		if text, err := s.respondLLM(ctx, in, persona, history); err == nil {
			return text
		} else {
			log.Debug().Err(err).Msg("respond: llm generation failed, using template")
		}
	}
	return s.respondTemplate(in, persona)
}

func (s *Synthesizer) respondLLM(ctx context.Context, in model.IntentResult, persona model.ResolvedPersona, history []model.Turn) (string, error) {
	out, err := s.completer.Complete(ctx, llm.CompletionRequest{
		Instructions: generationInstructions(persona),
		Input:        generationInput(in, history),
	})
	if err != nil {
		return "", fmt.Errorf("complete: %w", err)
	}
	text := strings.TrimSpace(out.OutputText)
	if text == "" {
		return "", fmt.Errorf("empty generation")
	}
	return text, nil
}

// respondTemplate formats a deterministic utterance from persona data. The
// verbosity trait controls how many extra facts get volunteered when the
// persona provides extra info.
func (s *Synthesizer) respondTemplate(in model.IntentResult, persona model.ResolvedPersona) string {
	base := s.answerFor(in.PrimaryIntent, persona)
	if !persona.Traits.ProvidesExtraInfo {
		return base
	}
	extras := s.pickExtras(in.PrimaryIntent, persona)
	if len(extras) == 0 {
		return base
	}
	return base + " " + strings.Join(extras, " ")
}

func (s *Synthesizer) child(persona model.ResolvedPersona) (model.ResolvedChild, bool) {
	if s.childIndex >= len(persona.Data.Children) {
		return model.ResolvedChild{}, false
	}
	return persona.Data.Children[s.childIndex], true
}

func (s *Synthesizer) answerFor(in model.Intent, persona model.ResolvedPersona) string {
	d := persona.Data
	child, hasChild := s.child(persona)

	switch in {
	case model.IntentGreeting:
		s.volunteered[model.FieldChildFirstName] = hasChild
		if hasChild {
			return fmt.Sprintf("Hi, I'd like to schedule an appointment for my child %s.", child.FirstName)
		}
		return "Hi, I'd like to schedule an appointment."
	case model.IntentAskingParentName:
		s.volunteered[model.FieldParentFirstName] = true
		s.volunteered[model.FieldParentLastName] = true
		return fmt.Sprintf("My name is %s %s.", d.ParentFirstName, d.ParentLastName)
	case model.IntentAskingParentFirstName:
		s.volunteered[model.FieldParentFirstName] = true
		return fmt.Sprintf("It's %s.", d.ParentFirstName)
	case model.IntentAskingParentLastName:
		s.volunteered[model.FieldParentLastName] = true
		return fmt.Sprintf("The last name is %s.", d.ParentLastName)
	case model.IntentAskingPhone:
		s.volunteered[model.FieldPhoneNumber] = true
		return fmt.Sprintf("You can reach me at %s.", d.Phone)
	case model.IntentAskingEmail:
		s.volunteered[model.FieldEmail] = true
		return fmt.Sprintf("My email is %s.", d.Email)
	case model.IntentAskingChildName:
		s.volunteered[model.FieldChildFirstName] = true
		s.volunteered[model.FieldChildLastName] = true
		if hasChild {
			return fmt.Sprintf("Her name is %s %s.", child.FirstName, child.LastName)
		}
		return "I'm calling for myself, actually."
	case model.IntentAskingChildDOB, model.IntentAskingChildAge:
		s.volunteered[model.FieldChildDOB] = true
		if hasChild {
			return fmt.Sprintf("%s was born on %s.", child.FirstName, child.DateOfBirth)
		}
		return "I'd rather not say."
	case model.IntentAskingNewPatient:
		s.volunteered[model.FieldNewPatientStatus] = true
		if hasChild && !child.IsNewPatient {
			return "No, we've been in before."
		}
		return "Yes, this would be the first visit."
	case model.IntentAskingPreviousVisit:
		s.volunteered[model.FieldPreviousVisit] = true
		if d.HasVisitedBefore {
			return "Yes, we've visited your office before."
		}
		return "No, we've never been in."
	case model.IntentAskingBracesHistory:
		s.volunteered[model.FieldBracesHistory] = true
		if hasChild && child.HadBracesBefore {
			return "Yes, there was a round of braces a while back."
		}
		return "No, no braces before."
	case model.IntentAskingInsurance:
		s.volunteered[model.FieldInsuranceProvider] = true
		if d.InsuranceProvider == "" {
			return "We don't have dental insurance."
		}
		return fmt.Sprintf("We're with %s.", d.InsuranceProvider)
	case model.IntentAskingInsuranceID:
		s.volunteered[model.FieldInsuranceMemberID] = true
		if d.InsuranceMemberID == "" {
			return "I don't have the member id handy."
		}
		return fmt.Sprintf("The member id is %s.", d.InsuranceMemberID)
	case model.IntentAskingSpecialNeeds:
		s.volunteered[model.FieldSpecialNeeds] = true
		if hasChild && child.SpecialNeeds != "" && child.SpecialNeeds != "None" {
			return fmt.Sprintf("Yes, please note: %s.", child.SpecialNeeds)
		}
		return "No, nothing special to note."
	case model.IntentAskingLocation:
		s.volunteered[model.FieldLocationPreference] = true
		if d.PreferredLocation == "" {
			return "Whichever location is closest works."
		}
		return fmt.Sprintf("The %s location, please.", d.PreferredLocation)
	case model.IntentAskingTimePreference, model.IntentAskingDayPreference:
		s.volunteered[model.FieldTimePreference] = true
		if d.PreferredTime == "" {
			return "We're pretty flexible on timing."
		}
		return fmt.Sprintf("%s would be best for us.", capitalize(d.PreferredTime))
	case model.IntentPresentingOptions, model.IntentProposingTime:
		return "The first option you mentioned works for us."
	case model.IntentAskingConfirmation, model.IntentConfirmingDetails:
		return "Yes, that's all correct."
	case model.IntentCheckingAvailability:
		return "Sure, I'll hold on."
	case model.IntentClarifying:
		return "Sorry, let me repeat that."
	case model.IntentErrorMessage:
		return "No problem, should we try that again?"
	case model.IntentClosing:
		return "No, that's everything. Thank you!"
	default:
		return "Okay."
	}
}

// extraFacts lists what a chatty persona may volunteer alongside an answer,
// in priority order.
func (s *Synthesizer) pickExtras(asked model.Intent, persona model.ResolvedPersona) []string {
	budget := extraBudget(persona.Traits.Verbosity)
	if budget == 0 {
		return nil
	}
	d := persona.Data
	child, hasChild := s.child(persona)

	type fact struct {
		field model.Field
		text  string
		ok    bool
	}
	candidates := []fact{
		{model.FieldPhoneNumber, fmt.Sprintf("By the way, my number is %s.", d.Phone), d.Phone != "" && asked != model.IntentAskingPhone},
		{model.FieldEmail, fmt.Sprintf("My email is %s if that's easier.", d.Email), d.Email != "" && asked != model.IntentAskingEmail},
		{model.FieldInsuranceProvider, fmt.Sprintf("We have %s insurance, in case that matters.", d.InsuranceProvider), d.InsuranceProvider != "" && asked != model.IntentAskingInsurance},
		{model.FieldTimePreference, fmt.Sprintf("Oh, and %s suit us best.", d.PreferredTime), d.PreferredTime != "" && asked != model.IntentAskingTimePreference},
		{model.FieldChildDOB, func() string {
			if hasChild {
				return fmt.Sprintf("%s's birthday is %s.", child.FirstName, child.DateOfBirth)
			}
			return ""
		}(), hasChild && asked != model.IntentAskingChildDOB},
	}

	var extras []string
	for _, c := range candidates {
		if len(extras) >= budget {
			break
		}
		if !c.ok || c.text == "" || s.volunteered[c.field] {
			continue
		}
		s.volunteered[c.field] = true
		extras = append(extras, c.text)
	}
	return extras
}

func extraBudget(verbosity string) int {
	switch strings.ToLower(verbosity) {
	case "terse":
		return 0
	case "chatty", "high":
		return 2
	default:
		return 1
	}
}

func generationInstructions(persona model.ResolvedPersona) string {
	var b strings.Builder
	b.WriteString("You are role-playing a parent calling a dental office to schedule an appointment.\n")
	b.WriteString("Answer only as the caller, one short conversational message, no narration.\n")
	b.WriteString(fmt.Sprintf("Caller: %s %s, phone %s, email %s.\n",
		persona.Data.ParentFirstName, persona.Data.ParentLastName, persona.Data.Phone, persona.Data.Email))
	for i, c := range persona.Data.Children {
		b.WriteString(fmt.Sprintf("Child %d: %s %s, born %s.\n", i+1, c.FirstName, c.LastName, c.DateOfBirth))
	}
	if persona.Data.InsuranceProvider != "" {
		b.WriteString("Insurance: " + persona.Data.InsuranceProvider + ".\n")
	}
	b.WriteString(fmt.Sprintf("Personality: verbosity=%s, patience=%s.\n", persona.Traits.Verbosity, persona.Traits.Patience))
	return b.String()
}

func generationInput(in model.IntentResult, history []model.Turn) string {
	var b strings.Builder
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	for _, t := range history {
		b.WriteString(string(t.Role))
		b.WriteString(": ")
		b.WriteString(t.Content)
		b.WriteString("\n")
	}
	b.WriteString("The assistant's intent is ")
	b.WriteString(string(in.PrimaryIntent))
	b.WriteString(". Write the caller's next message.")
	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
