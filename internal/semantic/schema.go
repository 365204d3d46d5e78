package semantic

// evaluationSchema is the contract every LLM evaluation object must satisfy
// before it is trusted. Anything that fails validation routes to the
// deterministic fallback.
const evaluationSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "response_quality": {
      "type": "object",
      "properties": {
        "is_helpful": { "type": "boolean" },
        "is_on_topic": { "type": "boolean" },
        "has_error": { "type": "boolean" },
        "error_type": { "type": "string" },
        "uncertainty_level": { "type": "string", "enum": ["low", "medium", "high"] },
        "professional_tone": { "type": "boolean" },
        "confidence": { "type": "number" },
        "reasoning": { "type": "string" }
      },
      "required": ["is_helpful", "is_on_topic", "has_error", "uncertainty_level", "professional_tone", "confidence"]
    },
    "intent": {
      "type": "object",
      "properties": {
        "primary_intent": { "type": "string" },
        "confidence": { "type": "number" },
        "secondary_intents": { "type": "array", "items": { "type": "string" } },
        "extracted_entities": { "type": "object" }
      },
      "required": ["primary_intent", "confidence"]
    },
    "flow_state": {
      "type": "object",
      "properties": {
        "flow_state": { "type": "string" },
        "is_progressing_correctly": { "type": "boolean" },
        "is_stuck": { "type": "boolean" },
        "is_repeating": { "type": "boolean" },
        "missing_information": { "type": "array", "items": { "type": "string" } },
        "confidence": { "type": "number" }
      },
      "required": ["flow_state", "is_progressing_correctly", "is_stuck", "is_repeating", "confidence"]
    },
    "validation": {
      "type": "object",
      "properties": {
        "passed": { "type": "boolean" },
        "matched_expectations": { "type": "array", "items": { "type": "string" } },
        "unmatched_expectations": { "type": "array", "items": { "type": "string" } },
        "unexpected_behaviors": { "type": "array", "items": { "type": "string" } },
        "severity": { "type": "string", "enum": ["none", "low", "medium", "high", "critical"] },
        "confidence": { "type": "number" },
        "reasoning": { "type": "string" },
        "suggested_action": { "type": "string" }
      },
      "required": ["passed", "severity", "confidence"]
    }
  },
  "required": ["response_quality", "intent", "flow_state", "validation"]
}`

// batchEvaluationSchema wraps the per-step schema for combined calls.
const batchEvaluationSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "evaluations": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "step_id": { "type": "string" }
        },
        "required": ["step_id"]
      }
    }
  },
  "required": ["evaluations"]
}`
