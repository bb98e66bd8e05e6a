package judge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codalotl/agentjudge/internal/cases"
	"github.com/codalotl/agentjudge/internal/conversation"
)

func TestBuildPromptDefaults(t *testing.T) {
	c := cases.Case{Name: "capture_simple", Category: "Capture", Prompt: "Remind me to call the dentist"}
	got, err := BuildPrompt(c, "Created task", "")
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(got, "User's request: Remind me to call the dentist\n\n"))
	require.Contains(t, got, "Assistant's full response (including MCP tool calls): Created task\n")
	require.Contains(t, got, "- Category: Capture\n- Mode: Live MCP\n- Test scenario: User capture scenario\n")
	require.Contains(t, got, "Expected behavior: Not specified\n\n\nNote: The response includes")
	require.NotContains(t, got, "Initial Graph State")
	require.True(t, strings.HasSuffix(got, "Evaluate using the three dimensions (EFFECTIVE, SAFE, CLEAR).\n"))
}

func TestBuildPromptSections(t *testing.T) {
	conv := conversation.DefaultConfig()
	conv.Enabled = true
	conv.MaxTurns = 4
	conv.SuccessCriteria = []string{"Correct proposal completed"}
	c := cases.Case{
		Name:             "conv_ambiguous",
		Category:         "Update",
		Prompt:           "Mark the proposal done",
		ExpectedBehavior: "Asks which proposal",
		GraphSetup: &cases.GraphSetup{
			Tasks: []cases.Task{{Content: "Draft proposal"}, {Content: "Send proposal", IsComplete: true, ResponsibleParty: "Sam"}},
		},
		Conversational: &conv,
	}
	got, err := BuildPrompt(c, "text", "full transcript")
	require.NoError(t, err)

	require.Contains(t, got, "Assistant's full response (including MCP tool calls): full transcript\n")
	require.Contains(t, got, "- Test scenario: Asks which proposal\n")
	require.Contains(t, got, "Expected behavior: Asks which proposal\n\n"+
		"Initial Graph State:\nTasks:\n - 'Draft proposal', incomplete\n - 'Send proposal', complete, responsible: Sam\n\n"+
		"Success Criteria:\n - Correct proposal completed\n\n"+
		"Validation Requirements:\n"+
		" - MUST search/query graph BEFORE asking questions\n"+
		" - MUST use MCP tools to gather information before asking user\n"+
		" - Should complete within 4 conversation turns\n\n\n"+
		"Note:")

	c.JudgeScenario = "Three proposals exist"
	got, err = BuildPrompt(c, "text", "")
	require.NoError(t, err)
	require.Contains(t, got, "- Test scenario: Three proposals exist\n")
	require.Contains(t, got, "(including MCP tool calls): text\n")
}

func TestFormatGraphSetup(t *testing.T) {
	require.Empty(t, FormatGraphSetup(nil))
	require.Empty(t, FormatGraphSetup(&cases.GraphSetup{}))

	got := FormatGraphSetup(&cases.GraphSetup{
		Contexts: []cases.Context{{Content: "@office", IsTrue: true}, {Content: "@home"}},
		States:   []cases.State{{Content: "Weather is good", IsTrue: true}, {Content: "Office open"}},
	})
	require.Equal(t, "Initial Graph State:\n"+
		"Contexts:\n - '@office', available\n - '@home', unavailable\n\n"+
		"States:\n - 'Weather is good', true\n - 'Office open', false", got)
}

func TestFormatValidationRequirements(t *testing.T) {
	require.Empty(t, FormatValidationRequirements(nil))
	require.Empty(t, FormatValidationRequirements(&conversation.Config{}))
	require.Equal(t, "Validation Requirements:\n - Should complete within 2 conversation turns",
		FormatValidationRequirements(&conversation.Config{MaxTurns: 2}))

	require.Empty(t, FormatSuccessCriteria(nil))
	require.Empty(t, FormatSuccessCriteria(&conversation.Config{}))
}

func TestRubric(t *testing.T) {
	r := Rubric()
	require.True(t, strings.HasPrefix(r, "You are evaluating a GTD assistant's conversational response."))
	require.Contains(t, r, "1. EFFECTIVE:")
	require.Contains(t, r, "2. SAFE:")
	require.Contains(t, r, "3. CLEAR:")
	require.Contains(t, r, `"reasoning": "1-3 sentence summary explaining the ratings"`)
}
