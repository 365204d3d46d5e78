package intent

import (
	"regexp"
	"strings"

	"github.com/metalagman/goalpilot/internal/model"
)

// terminalOverrides are high-precision checks for unambiguous terminal
// phrasing. When one matches, the classifier returns immediately with
// confidence 0.95 and skips the cache, the LLM, and the keyword fallback.
// Ordering and precedence are load-bearing; do not generalize.
var terminalOverrides = []struct {
	intent model.Intent
	re     *regexp.Regexp
}{
	{model.IntentConfirmingBooking, regexp.MustCompile(`(?i)\b(appointment|booking|visit)\b[^.?!]*\b(confirmed|booked|scheduled)\b`)},
	{model.IntentConfirmingBooking, regexp.MustCompile(`(?i)successfully\s+(scheduled|booked)`)},
	{model.IntentConfirmingBooking, regexp.MustCompile(`(?i)you(?:'re| are)\s+all\s+set`)},
	{model.IntentInitiatingTransfer, regexp.MustCompile(`(?i)transfer(?:ring)?\s+you\b`)},
	{model.IntentInitiatingTransfer, regexp.MustCompile(`(?i)connect(?:ing)?\s+you\s+(?:with|to)\b`)},
}

// terminalOverride returns the matched terminal intent, if any.
func terminalOverride(utterance string) (model.Intent, bool) {
	for _, ov := range terminalOverrides {
		if ov.re.MatchString(utterance) {
			return ov.intent, true
		}
	}
	return "", false
}

// keywordRule maps substrings to an intent. Rules run in order; the first
// rule with a matching substring wins.
type keywordRule struct {
	intent   model.Intent
	keywords []string
}

var keywordRules = []keywordRule{
	{model.IntentConfirmingBooking, []string{"confirmed", "booked", "all set"}},
	{model.IntentInitiatingTransfer, []string{"transfer", "connect you"}},
	{model.IntentSayingGoodbye, []string{"goodbye", "bye for now", "have a great day", "thank you for calling"}},
	{model.IntentErrorMessage, []string{"something went wrong", "technical difficulties", "an error occurred", "unable to process"}},
	{model.IntentRequestingCallback, []string{"call you back", "callback"}},
	{model.IntentAskingParentFirstName, []string{"first name"}},
	{model.IntentAskingParentLastName, []string{"last name", "surname"}},
	{model.IntentAskingParentName, []string{"your name", "full name", "who am i speaking"}},
	{model.IntentAskingPhone, []string{"phone", "contact number", "number to reach"}},
	{model.IntentAskingEmail, []string{"email", "e-mail"}},
	{model.IntentAskingChildDOB, []string{"date of birth", "birthday", "born"}},
	{model.IntentAskingChildAge, []string{"how old"}},
	{model.IntentAskingChildName, []string{"child's name", "your child", "patient's name", "your son", "your daughter"}},
	{model.IntentAskingNewPatient, []string{"new patient", "first visit", "first time"}},
	{model.IntentAskingPreviousVisit, []string{"been here before", "visited us", "previous visit", "seen us before"}},
	{model.IntentAskingBracesHistory, []string{"braces", "orthodontic"}},
	{model.IntentAskingInsuranceID, []string{"member id", "policy number", "insurance id"}},
	{model.IntentAskingInsurance, []string{"insurance", "coverage", "dental plan"}},
	{model.IntentAskingSpecialNeeds, []string{"special need", "accommodation", "anything we should know"}},
	{model.IntentAskingLocation, []string{"which location", "which office", "preferred location"}},
	{model.IntentAskingDayPreference, []string{"which day", "what day", "day of the week"}},
	{model.IntentAskingTimePreference, []string{"what time", "morning or afternoon", "time works", "preferred time"}},
	{model.IntentCheckingAvailability, []string{"check availability", "let me check", "checking our schedule"}},
	{model.IntentPresentingOptions, []string{"we have", "available", "openings", "options"}},
	{model.IntentProposingTime, []string{"how about", "would that work"}},
	{model.IntentConfirmingDetails, []string{"just to confirm", "to recap", "let me make sure"}},
	{model.IntentAskingConfirmation, []string{"shall i", "would you like me to", "is that correct", "confirm"}},
	{model.IntentClarifying, []string{"could you repeat", "didn't catch", "what do you mean"}},
	{model.IntentClosing, []string{"anything else", "is there anything else"}},
	{model.IntentGreeting, []string{"hello", "hi there", "welcome", "how can i help", "how may i help"}},
}

// classifyByKeywords is the deterministic fallback classifier.
func classifyByKeywords(utterance string) (model.Intent, bool) {
	lower := strings.ToLower(utterance)
	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.intent, true
			}
		}
	}
	return model.IntentUnknown, false
}

var interrogatives = []string{
	"what", "when", "where", "who", "which", "how", "why",
	"can", "could", "would", "will", "shall", "may",
	"do", "does", "did", "is", "are", "was", "were",
}

// looksLikeQuestion derives the is-question flag from punctuation and
// leading interrogative words.
func looksLikeQuestion(utterance string) bool {
	if strings.Contains(utterance, "?") {
		return true
	}
	words := strings.Fields(strings.ToLower(utterance))
	if len(words) == 0 {
		return false
	}
	first := strings.Trim(words[0], ".,!:;")
	for _, w := range interrogatives {
		if first == w {
			return true
		}
	}
	return false
}
