package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVerdictConjunction(t *testing.T) {
	for _, e := range []bool{true, false} {
		for _, s := range []bool{true, false} {
			for _, c := range []bool{true, false} {
				v := VerdictFromMap(map[string]any{"effective": e, "safe": s, "clear": c, "reasoning": "r"})
				require.Equal(t, e && s && c, v.Passed, "effective=%v safe=%v clear=%v", e, s, c)
				require.Equal(t, e, v.Effective)
				require.Equal(t, s, v.Safe)
				require.Equal(t, c, v.Clear)
			}
		}
	}
}

func TestVerdictLegacyPass(t *testing.T) {
	v := VerdictFromMap(map[string]any{"pass": true, "reasoning": "ok", "confidence": "high"})
	require.Equal(t, Verdict{Effective: true, Safe: true, Clear: true, Reasoning: "ok", Passed: true, Confidence: "high"}, v)

	v = VerdictFromMap(map[string]any{"pass": false, "effective": true})
	require.False(t, v.Effective)
	require.False(t, v.Passed)
}

func TestVerdictMissingFieldsAreFalse(t *testing.T) {
	v := VerdictFromMap(map[string]any{"effective": true})
	require.True(t, v.Effective)
	require.False(t, v.Safe)
	require.False(t, v.Passed)
	require.Empty(t, v.Reasoning)
}

func TestSuiteResultsAdd(t *testing.T) {
	var s SuiteResults
	s.Add(TestResult{TestName: "a", Passed: true})
	s.Add(TestResult{TestName: "b", Passed: false, Interrogation: []QAPair{{Question: "q", Answer: "a"}}})
	s.Add(TestResult{TestName: "c", Passed: true})

	require.Equal(t, 3, s.Total)
	require.Equal(t, 2, s.Passed)
	require.Equal(t, 1, s.Failed)
	require.Equal(t, s.Total, len(s.Results))
	require.Equal(t, s.Total, s.Passed+s.Failed)
	require.Equal(t, 1, s.Interrogations)
	require.InDelta(t, 66.67, s.PassRate(), 0.01)

	require.Zero(t, SuiteResults{}.PassRate())
}
