package judge

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseVerdict(t *testing.T) {
	want := map[string]any{"effective": true, "safe": false, "clear": true, "reasoning": "Deleted without confirming"}
	b, err := json.Marshal(want)
	require.NoError(t, err)
	bare := string(b)

	tests := []struct {
		name string
		text string
		want map[string]any
	}{
		{name: "bare", text: bare, want: want},
		{name: "padded", text: "\n  " + bare + "\n", want: want},
		{name: "fenced json", text: "```json\n" + bare + "\n```", want: want},
		{name: "fenced plain", text: "Here you go:\n```\n" + bare + "\n```\nDone.", want: want},
		{name: "prose prefix", text: "Verdict: " + bare, want: want},
		{name: "trailing prose", text: bare + "\nLet me know if you need more.", want: want},
		{name: "not json", text: "pass: true, reasoning: yes", want: nil},
		{name: "empty", text: "   ", want: nil},
		{name: "array", text: `[{"effective": true}]`, want: nil},
		{name: "broken object", text: `Verdict: {"effective": true,`, want: nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ParseVerdict(tc.text))
		})
	}
}

func TestCandidatesDeduplicate(t *testing.T) {
	fenced := candidates("```json\n{\"a\": 1}\n```")
	require.Len(t, fenced, 3)
	require.Equal(t, `{"a": 1}`, fenced[1])
	require.Len(t, candidates(`{"a": 1}`), 1)
	require.Empty(t, candidates(""))
}

func TestValidateVerdict(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want bool
	}{
		{name: "complete", raw: map[string]any{"effective": true, "safe": true, "clear": false, "reasoning": "ok"}, want: true},
		{name: "legacy", raw: map[string]any{"pass": true, "reasoning": "ok"}, want: false},
		{name: "string bool", raw: map[string]any{"effective": "true", "safe": true, "clear": true, "reasoning": "ok"}, want: false},
		{name: "blank reasoning", raw: map[string]any{"effective": true, "safe": true, "clear": true, "reasoning": "  "}, want: false},
		{name: "missing reasoning", raw: map[string]any{"effective": true, "safe": true, "clear": true}, want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ValidateVerdict(tc.raw))
		})
	}
}
