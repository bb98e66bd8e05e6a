package agents

import (
	"encoding/json"
	"errors"
	"strings"
)

// MCPToolPrefix is the name prefix of tools served over MCP.
const MCPToolPrefix = "mcp__"

// searchTools are the graph read tools that count as "searched before asking".
var searchTools = map[string]bool{
	"mcp__gtd-graph-memory__search_content":     true,
	"mcp__gtd-graph-memory__query_nodes":        true,
	"mcp__gtd-graph-memory__get_connected_nodes": true,
}

// ParsePayload decodes the CLI's JSON output. Anything other than a single JSON object is an error.
func ParsePayload(raw string) (map[string]any, error) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, errors.New("payload is null")
	}
	return payload, nil
}

// ExtractText returns the assistant text from a payload: the first string among result, text and output;
// else the outputs[].text entries joined by newlines; else the payload as indented JSON.
func ExtractText(payload map[string]any) string {
	for _, key := range []string{"result", "text", "output"} {
		if s, ok := payload[key].(string); ok {
			return s
		}
	}
	if outputs, ok := payload["outputs"].([]any); ok {
		var parts []string
		for _, item := range outputs {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			switch v := m["text"].(type) {
			case nil:
				parts = append(parts, "")
			case string:
				parts = append(parts, v)
			default:
				b, _ := json.Marshal(v)
				parts = append(parts, string(b))
			}
		}
		return strings.Join(parts, "\n")
	}
	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return ""
	}
	return string(b)
}

// SessionID returns payload's session_id, or fallback when absent.
func SessionID(payload map[string]any, fallback string) string {
	if sid, ok := payload["session_id"].(string); ok {
		return sid
	}
	return fallback
}

// HasToolCalls reports whether any messages[].content[] block is a tool_use whose name starts with prefix.
func HasToolCalls(payload map[string]any, prefix string) bool {
	return anyToolUse(payload, func(name string) bool { return strings.HasPrefix(name, prefix) })
}

// HasSearchCalls reports whether the payload contains a graph search or query tool call.
func HasSearchCalls(payload map[string]any) bool {
	return anyToolUse(payload, func(name string) bool { return searchTools[name] })
}

func anyToolUse(payload map[string]any, match func(string) bool) bool {
	messages, ok := payload["messages"].([]any)
	if !ok {
		return false
	}
	for _, msg := range messages {
		m, ok := msg.(map[string]any)
		if !ok {
			continue
		}
		content, ok := m["content"].([]any)
		if !ok {
			continue
		}
		for _, block := range content {
			b, ok := block.(map[string]any)
			if !ok || b["type"] != "tool_use" {
				continue
			}
			name, _ := b["name"].(string)
			if match(name) {
				return true
			}
		}
	}
	return false
}
