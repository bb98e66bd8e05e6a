package types

import "encoding/json"

// Verdict is the judge's three-dimension ruling on one transcript.
type Verdict struct {
	Effective  bool   `json:"effective"`
	Safe       bool   `json:"safe"`
	Clear      bool   `json:"clear"`
	Reasoning  string `json:"reasoning"`
	Passed     bool   `json:"passed"`
	Confidence string `json:"confidence,omitempty"`
}

// NewVerdict builds a verdict whose Passed is the conjunction of the three dimensions.
func NewVerdict(effective, safe, clear bool, reasoning string) Verdict {
	return Verdict{
		Effective: effective,
		Safe:      safe,
		Clear:     clear,
		Reasoning: reasoning,
		Passed:    effective && safe && clear,
	}
}

// VerdictFromMap converts a decoded judge object into a Verdict. A legacy "pass" key sets all three
// dimensions to its value. Non-bool dimension values are read for truthiness.
func VerdictFromMap(data map[string]any) Verdict {
	reasoning, _ := data["reasoning"].(string)
	var v Verdict
	if raw, ok := data["pass"]; ok {
		passed := truthy(raw)
		v = NewVerdict(passed, passed, passed, reasoning)
	} else {
		v = NewVerdict(truthy(data["effective"]), truthy(data["safe"]), truthy(data["clear"]), reasoning)
	}
	if c, ok := data["confidence"].(string); ok {
		v.Confidence = c
	}
	return v
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case json.Number:
		f, err := x.Float64()
		return err == nil && f != 0
	case string:
		return x != ""
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	default:
		return true
	}
}

// QAPair is one interrogation question and its answer. Error is set when the question could not be answered.
type QAPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Error    string `json:"error,omitempty"`
}

// ConversationTurn is one user message and the assistant's reply.
type ConversationTurn struct {
	TurnNumber        int     `json:"turn_number"`
	UserMessage       string  `json:"user_message"`
	AssistantResponse string  `json:"assistant_response"`
	FullOutput        string  `json:"full_output"`
	SessionID         string  `json:"session_id"`
	MCPCallsMade      bool    `json:"mcp_calls_made"`
	DurationSeconds   float64 `json:"duration"`
}

// TestResult is the outcome of executing one test case once.
type TestResult struct {
	TestName          string   `json:"test_name"`
	Category          string   `json:"category"`
	RunNumber         int      `json:"run_number"`
	Passed            bool     `json:"passed"`
	ExpectedPass      bool     `json:"expected_pass"`
	ActualPass        bool     `json:"actual_pass"`
	Reason            string   `json:"reason"`
	Verdict           *Verdict `json:"verdict,omitempty"`
	AssistantResponse string   `json:"assistant_response"`
	FullTranscript    string   `json:"full_transcript"`
	Interrogation     []QAPair `json:"interrogation,omitempty"`
	DurationSeconds   float64  `json:"duration"`
	RetryCount        int      `json:"retry_count"`
	SessionID         string   `json:"session_id,omitempty"`
}

// SuiteResults aggregates every TestResult of one suite execution.
type SuiteResults struct {
	Total           int          `json:"total"`
	Passed          int          `json:"passed"`
	Failed          int          `json:"failed"`
	Results         []TestResult `json:"results"`
	Interrogations  int          `json:"interrogations"`
	DurationSeconds float64      `json:"duration"`
}

// Add appends r and keeps the counters consistent with Results.
func (s *SuiteResults) Add(r TestResult) {
	s.Results = append(s.Results, r)
	s.Total++
	if r.Passed {
		s.Passed++
	} else {
		s.Failed++
	}
	if len(r.Interrogation) > 0 {
		s.Interrogations++
	}
}

// PassRate is Passed/Total as a percentage, 0 for an empty suite.
func (s SuiteResults) PassRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Passed) / float64(s.Total) * 100
}
