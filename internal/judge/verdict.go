package judge

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

var fencePattern = regexp.MustCompile("(?is)```(?:json)?\\s*(.*?)```")

// candidates yields the substrings of text that may hold the verdict object, most likely first: the whole
// trimmed text, the first fenced block, then everything from the first '{'.
func candidates(text string) []string {
	var out []string
	trimmed := strings.TrimSpace(text)
	if trimmed != "" {
		out = append(out, trimmed)
	}
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		if inner := strings.TrimSpace(m[1]); inner != "" && inner != trimmed {
			out = append(out, inner)
		}
	}
	if i := strings.Index(trimmed, "{"); i > 0 {
		out = append(out, trimmed[i:])
	}
	return out
}

// ParseVerdict extracts the first JSON object from judge output. It tolerates markdown fences, leading prose
// and trailing text after the object. It returns nil when no candidate decodes to an object.
func ParseVerdict(text string) map[string]any {
	seen := make(map[string]bool)
	for _, chunk := range candidates(text) {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" || seen[chunk] {
			continue
		}
		seen[chunk] = true
		if obj, ok := decodeObject(chunk); ok {
			return obj
		}
	}
	return nil
}

func decodeObject(chunk string) (map[string]any, bool) {
	var v any
	if err := json.Unmarshal([]byte(chunk), &v); err != nil {
		// Accept a valid leading value followed by trailing text.
		if err := json.NewDecoder(bytes.NewReader([]byte(chunk))).Decode(&v); err != nil {
			return nil, false
		}
	}
	obj, ok := v.(map[string]any)
	return obj, ok
}

// ValidateVerdict reports whether raw has the three boolean dimensions and a non-blank string reasoning.
func ValidateVerdict(raw map[string]any) bool {
	for _, k := range []string{"effective", "safe", "clear"} {
		if _, ok := raw[k].(bool); !ok {
			return false
		}
	}
	reasoning, ok := raw["reasoning"].(string)
	return ok && strings.TrimSpace(reasoning) != ""
}
