package chat

import (
	"encoding/json"
	"strings"

	"github.com/metalagman/goalpilot/internal/llm"
	"github.com/metalagman/goalpilot/internal/model"
)

// shapeDetector inspects one vendor response layout and extracts tool calls.
// Detectors run in a fixed order; the first one that finds anything wins.
type shapeDetector func(text string, obj map[string]any) []model.ToolCall

var detectors = []shapeDetector{
	detectPayloadMarker,
	detectAgentReasoning,
	detectToolCallsArray,
	detectFunctionCall,
	detectUsedTools,
	detectSourceDocuments,
}

// NormalizeToolCalls converts any of the recognized vendor shapes into the
// uniform tool-call list. Unrecognized shapes yield an empty list.
func NormalizeToolCalls(text string, obj map[string]any) []model.ToolCall {
	for _, detect := range detectors {
		if calls := detect(text, obj); len(calls) > 0 {
			return calls
		}
	}
	return nil
}

// detectPayloadMarker extracts an embedded "PAYLOAD: { ... }" marker from the
// assistant text using balanced-brace extraction.
func detectPayloadMarker(text string, _ map[string]any) []model.ToolCall {
	idx := strings.Index(text, "PAYLOAD:")
	if idx < 0 {
		return nil
	}
	raw, ok := llm.ExtractJSON([]byte(text[idx+len("PAYLOAD:"):]))
	if !ok {
		return nil
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}
	name := stringAt(payload, "tool", "toolName", "name")
	if name == "" {
		name = "payload"
	}
	return []model.ToolCall{{
		ToolName: name,
		Input:    stringify(payload["input"]),
		Output:   stringify(payload["output"]),
		Status:   stringAt(payload, "status"),
	}}
}

func detectAgentReasoning(_ string, obj map[string]any) []model.ToolCall {
	steps, ok := obj["agentReasoning"].([]any)
	if !ok {
		return nil
	}
	var calls []model.ToolCall
	for _, step := range steps {
		m, ok := step.(map[string]any)
		if !ok {
			continue
		}
		if used, ok := m["usedTools"].([]any); ok {
			calls = append(calls, usedToolsList(used)...)
			continue
		}
		// A reasoning step may carry a single tool inline.
		if name := stringAt(m, "tool", "toolName"); name != "" {
			calls = append(calls, model.ToolCall{
				ToolName: name,
				Input:    stringify(m["toolInput"]),
				Output:   stringify(m["toolOutput"]),
				Status:   stringAt(m, "status"),
			})
		}
	}
	return calls
}

func detectToolCallsArray(_ string, obj map[string]any) []model.ToolCall {
	arr, ok := obj["tool_calls"].([]any)
	if !ok {
		return nil
	}
	var calls []model.ToolCall
	for _, item := range arr {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		fn, _ := m["function"].(map[string]any)
		if fn == nil {
			fn = m
		}
		name := stringAt(fn, "name")
		if name == "" {
			continue
		}
		calls = append(calls, model.ToolCall{
			ToolName: name,
			Input:    stringify(fn["arguments"]),
			Output:   stringify(m["output"]),
			Status:   stringAt(m, "status"),
		})
	}
	return calls
}

func detectFunctionCall(_ string, obj map[string]any) []model.ToolCall {
	fc, ok := obj["function_call"].(map[string]any)
	if !ok {
		return nil
	}
	name := stringAt(fc, "name")
	if name == "" {
		return nil
	}
	return []model.ToolCall{{
		ToolName: name,
		Input:    stringify(fc["arguments"]),
		Output:   stringify(fc["output"]),
		Status:   stringAt(fc, "status"),
	}}
}

func detectUsedTools(_ string, obj map[string]any) []model.ToolCall {
	used, ok := obj["usedTools"].([]any)
	if !ok {
		return nil
	}
	return usedToolsList(used)
}

// detectSourceDocuments treats retrieval results as a synthetic
// document_retrieval tool call.
func detectSourceDocuments(_ string, obj map[string]any) []model.ToolCall {
	docs, ok := obj["sourceDocuments"].([]any)
	if !ok || len(docs) == 0 {
		return nil
	}
	return []model.ToolCall{{
		ToolName: "document_retrieval",
		Output:   stringify(docs),
		Status:   "success",
	}}
}

func usedToolsList(used []any) []model.ToolCall {
	var calls []model.ToolCall
	for _, item := range used {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name := stringAt(m, "tool", "toolName", "name")
		if name == "" {
			continue
		}
		calls = append(calls, model.ToolCall{
			ToolName: name,
			Input:    stringify(m["toolInput"]),
			Output:   stringify(m["toolOutput"]),
			Status:   stringAt(m, "status"),
		})
	}
	return calls
}

func stringAt(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
