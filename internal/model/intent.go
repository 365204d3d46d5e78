package model

// Intent classifies what the remote agent's latest reply is asking for or
// signaling.
type Intent string

// Agent intents. The classifier never emits a value outside this set;
// anything unrecognized is coerced to IntentUnknown.
const (
	IntentGreeting               Intent = "greeting"
	IntentAskingParentName       Intent = "asking_parent_name"
	IntentAskingParentFirstName  Intent = "asking_parent_first_name"
	IntentAskingParentLastName   Intent = "asking_parent_last_name"
	IntentAskingPhone            Intent = "asking_phone"
	IntentAskingEmail            Intent = "asking_email"
	IntentAskingChildName        Intent = "asking_child_name"
	IntentAskingChildDOB         Intent = "asking_child_dob"
	IntentAskingChildAge         Intent = "asking_child_age"
	IntentAskingNewPatient       Intent = "asking_new_patient"
	IntentAskingPreviousVisit    Intent = "asking_previous_visit"
	IntentAskingBracesHistory    Intent = "asking_braces_history"
	IntentAskingInsurance        Intent = "asking_insurance"
	IntentAskingInsuranceID      Intent = "asking_insurance_id"
	IntentAskingSpecialNeeds     Intent = "asking_special_needs"
	IntentAskingLocation         Intent = "asking_location_preference"
	IntentAskingTimePreference   Intent = "asking_time_preference"
	IntentAskingDayPreference    Intent = "asking_day_preference"
	IntentCheckingAvailability   Intent = "checking_availability"
	IntentPresentingOptions      Intent = "presenting_options"
	IntentProposingTime          Intent = "proposing_time"
	IntentAskingConfirmation     Intent = "asking_confirmation"
	IntentConfirmingDetails      Intent = "confirming_details"
	IntentConfirmingBooking      Intent = "confirming_booking"
	IntentInitiatingTransfer     Intent = "initiating_transfer"
	IntentRequestingCallback     Intent = "requesting_callback"
	IntentSayingGoodbye          Intent = "saying_goodbye"
	IntentClosing                Intent = "closing"
	IntentErrorMessage           Intent = "error_message"
	IntentOffTopic               Intent = "off_topic"
	IntentClarifying             Intent = "clarifying"
	IntentUnknown                Intent = "unknown"
)

// AllIntents lists every valid agent intent, in the order the LLM prompt
// enumerates them.
var AllIntents = []Intent{
	IntentGreeting,
	IntentAskingParentName,
	IntentAskingParentFirstName,
	IntentAskingParentLastName,
	IntentAskingPhone,
	IntentAskingEmail,
	IntentAskingChildName,
	IntentAskingChildDOB,
	IntentAskingChildAge,
	IntentAskingNewPatient,
	IntentAskingPreviousVisit,
	IntentAskingBracesHistory,
	IntentAskingInsurance,
	IntentAskingInsuranceID,
	IntentAskingSpecialNeeds,
	IntentAskingLocation,
	IntentAskingTimePreference,
	IntentAskingDayPreference,
	IntentCheckingAvailability,
	IntentPresentingOptions,
	IntentProposingTime,
	IntentAskingConfirmation,
	IntentConfirmingDetails,
	IntentConfirmingBooking,
	IntentInitiatingTransfer,
	IntentRequestingCallback,
	IntentSayingGoodbye,
	IntentClosing,
	IntentErrorMessage,
	IntentOffTopic,
	IntentClarifying,
	IntentUnknown,
}

// ValidIntent reports whether v is a member of the agent intent enum.
func ValidIntent(v Intent) bool {
	for _, in := range AllIntents {
		if in == v {
			return true
		}
	}
	return false
}

// TerminalIntents end the conversation loop once detected.
var TerminalIntents = map[Intent]bool{
	IntentConfirmingBooking:  true,
	IntentInitiatingTransfer: true,
	IntentSayingGoodbye:      true,
	IntentClosing:            true,
}

// IntentResult is the classification of one agent utterance.
type IntentResult struct {
	PrimaryIntent        Intent            `json:"primary_intent"`
	Confidence           float64           `json:"confidence"`
	SecondaryIntents     []Intent          `json:"secondary_intents,omitempty"`
	IsQuestion           bool              `json:"is_question"`
	RequiresUserResponse bool              `json:"requires_user_response"`
	ExtractedInfo        map[string]string `json:"extracted_info,omitempty"`
	Reasoning            string            `json:"reasoning,omitempty"`
}

// FlowState names where the conversation currently sits in the scheduling flow.
type FlowState string

// Flow states.
const (
	FlowGreeting               FlowState = "greeting"
	FlowCollectingParentInfo   FlowState = "collecting_parent_info"
	FlowCollectingChildInfo    FlowState = "collecting_child_info"
	FlowCheckingPreviousVisits FlowState = "checking_previous_visits"
	FlowCheckingInsurance      FlowState = "checking_insurance"
	FlowCheckingSpecialNeeds   FlowState = "checking_special_needs"
	FlowCollectingPreferences  FlowState = "collecting_preferences"
	FlowSearchingAvailability  FlowState = "searching_availability"
	FlowPresentingOptions      FlowState = "presenting_options"
	FlowScheduling             FlowState = "scheduling"
	FlowConfirming             FlowState = "confirming"
	FlowClosing                FlowState = "closing"
	FlowErrorRecovery          FlowState = "error_recovery"
	FlowTransferRequested      FlowState = "transfer_requested"
	FlowOffTopic               FlowState = "off_topic"
)

// AllFlowStates lists every flow state.
var AllFlowStates = []FlowState{
	FlowGreeting,
	FlowCollectingParentInfo,
	FlowCollectingChildInfo,
	FlowCheckingPreviousVisits,
	FlowCheckingInsurance,
	FlowCheckingSpecialNeeds,
	FlowCollectingPreferences,
	FlowSearchingAvailability,
	FlowPresentingOptions,
	FlowScheduling,
	FlowConfirming,
	FlowClosing,
	FlowErrorRecovery,
	FlowTransferRequested,
	FlowOffTopic,
}

// ValidFlowState reports whether v is a member of the flow-state enum.
func ValidFlowState(v FlowState) bool {
	for _, fs := range AllFlowStates {
		if fs == v {
			return true
		}
	}
	return false
}
