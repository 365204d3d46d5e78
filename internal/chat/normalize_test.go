package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unmarshalMap(t *testing.T, raw string) map[string]any {
	t.Helper()
	var obj map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &obj))
	return obj
}

func TestNormalizeToolCalls_PayloadMarker(t *testing.T) {
	t.Parallel()

	text := `Let me check. PAYLOAD: {"tool":"availability_search","input":{"day":"monday"},"status":"success"} Found slots.`
	calls := NormalizeToolCalls(text, map[string]any{})

	require.Len(t, calls, 1)
	assert.Equal(t, "availability_search", calls[0].ToolName)
	assert.JSONEq(t, `{"day":"monday"}`, calls[0].Input)
	assert.Equal(t, "success", calls[0].Status)
}

func TestNormalizeToolCalls_AgentReasoningNestedUsedTools(t *testing.T) {
	t.Parallel()

	obj := unmarshalMap(t, `{
		"agentReasoning": [
			{"usedTools": [{"tool": "calendar_lookup", "toolInput": {"week": 12}, "toolOutput": "3 slots"}]},
			{"tool": "booking_create", "toolInput": "slot-2", "status": "done"}
		]
	}`)
	calls := NormalizeToolCalls("", obj)

	require.Len(t, calls, 2)
	assert.Equal(t, "calendar_lookup", calls[0].ToolName)
	assert.Equal(t, "3 slots", calls[0].Output)
	assert.Equal(t, "booking_create", calls[1].ToolName)
	assert.Equal(t, "slot-2", calls[1].Input)
}

func TestNormalizeToolCalls_ToolCallsArray(t *testing.T) {
	t.Parallel()

	obj := unmarshalMap(t, `{
		"tool_calls": [
			{"function": {"name": "slot_finder", "arguments": "{\"time\":\"10am\"}"}, "output": "ok", "status": "success"}
		]
	}`)
	calls := NormalizeToolCalls("", obj)

	require.Len(t, calls, 1)
	assert.Equal(t, "slot_finder", calls[0].ToolName)
	assert.Equal(t, `{"time":"10am"}`, calls[0].Input)
	assert.Equal(t, "ok", calls[0].Output)
}

func TestNormalizeToolCalls_SingleFunctionCall(t *testing.T) {
	t.Parallel()

	obj := unmarshalMap(t, `{"function_call": {"name": "transfer", "arguments": {"queue": "front-desk"}}}`)
	calls := NormalizeToolCalls("", obj)

	require.Len(t, calls, 1)
	assert.Equal(t, "transfer", calls[0].ToolName)
	assert.JSONEq(t, `{"queue":"front-desk"}`, calls[0].Input)
}

func TestNormalizeToolCalls_TopLevelUsedTools(t *testing.T) {
	t.Parallel()

	obj := unmarshalMap(t, `{"usedTools": [{"toolName": "insurance_check", "toolOutput": {"covered": true}}]}`)
	calls := NormalizeToolCalls("", obj)

	require.Len(t, calls, 1)
	assert.Equal(t, "insurance_check", calls[0].ToolName)
	assert.JSONEq(t, `{"covered":true}`, calls[0].Output)
}

func TestNormalizeToolCalls_SourceDocuments(t *testing.T) {
	t.Parallel()

	obj := unmarshalMap(t, `{"sourceDocuments": [{"pageContent": "office hours"}]}`)
	calls := NormalizeToolCalls("", obj)

	require.Len(t, calls, 1)
	assert.Equal(t, "document_retrieval", calls[0].ToolName)
	assert.Equal(t, "success", calls[0].Status)
}

func TestNormalizeToolCalls_UnrecognizedShapeYieldsEmpty(t *testing.T) {
	t.Parallel()

	obj := unmarshalMap(t, `{"text": "hello", "metadata": {"foo": "bar"}}`)
	assert.Empty(t, NormalizeToolCalls("hello", obj))
}

func TestNormalizeToolCalls_DetectorOrder(t *testing.T) {
	t.Parallel()

	// A payload marker in the text wins over a top-level usedTools array.
	obj := unmarshalMap(t, `{"usedTools": [{"toolName": "later"}]}`)
	calls := NormalizeToolCalls(`PAYLOAD: {"tool":"first"}`, obj)

	require.Len(t, calls, 1)
	assert.Equal(t, "first", calls[0].ToolName)
}
