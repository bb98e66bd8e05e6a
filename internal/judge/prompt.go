package judge

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/codalotl/agentjudge/internal/cases"
	"github.com/codalotl/agentjudge/internal/conversation"
)

//go:embed rubric.md
var rubric string

//go:embed prompt.tmpl
var promptTmpl string

var promptTemplate = template.Must(template.New("judge").Parse(promptTmpl))

// Mode is the environment label shown to the judge.
const Mode = "Live MCP"

// Rubric returns the judge system prompt.
func Rubric() string {
	return rubric
}

type promptData struct {
	Request                string
	Response               string
	Category               string
	Mode                   string
	Scenario               string
	ExpectedBehavior       string
	GraphSetup             string
	SuccessCriteria        string
	ValidationRequirements string
}

// BuildPrompt renders the per-case evaluation prompt. fullOutput is preferred over assistantText so tool
// call evidence reaches the judge.
func BuildPrompt(c cases.Case, assistantText, fullOutput string) (string, error) {
	response := fullOutput
	if response == "" {
		response = assistantText
	}
	category := c.Category
	if category == "" {
		category = "Unknown"
	}
	scenario := c.JudgeScenario
	if scenario == "" {
		scenario = c.ExpectedBehavior
	}
	if scenario == "" {
		scenario = fmt.Sprintf("User %s scenario", strings.ToLower(c.Category))
	}
	expected := c.ExpectedBehavior
	if expected == "" {
		expected = "Not specified"
	}

	data := promptData{
		Request:                c.Prompt,
		Response:               response,
		Category:               category,
		Mode:                   Mode,
		Scenario:               scenario,
		ExpectedBehavior:       expected,
		GraphSetup:             section(FormatGraphSetup(c.GraphSetup)),
		SuccessCriteria:        section(FormatSuccessCriteria(c.Conversational)),
		ValidationRequirements: section(FormatValidationRequirements(c.Conversational)),
	}
	var sb strings.Builder
	if err := promptTemplate.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render judge prompt: %w", err)
	}
	return sb.String(), nil
}

func section(s string) string {
	if s == "" {
		return ""
	}
	return s + "\n\n"
}

// FormatGraphSetup describes the initial graph state, or returns "" when there is none.
func FormatGraphSetup(g *cases.GraphSetup) string {
	if g.Empty() {
		return ""
	}
	var sections []string
	if len(g.Tasks) > 0 {
		lines := make([]string, 0, len(g.Tasks))
		for _, t := range g.Tasks {
			parts := []string{quote(t.Content)}
			if t.IsComplete {
				parts = append(parts, "complete")
			} else {
				parts = append(parts, "incomplete")
			}
			if t.ResponsibleParty != "" {
				parts = append(parts, "responsible: "+t.ResponsibleParty)
			}
			lines = append(lines, " - "+strings.Join(parts, ", "))
		}
		sections = append(sections, "Tasks:\n"+strings.Join(lines, "\n"))
	}
	if len(g.Contexts) > 0 {
		lines := make([]string, 0, len(g.Contexts))
		for _, c := range g.Contexts {
			state := "unavailable"
			if c.Available() {
				state = "available"
			}
			lines = append(lines, " - "+quote(c.Content)+", "+state)
		}
		sections = append(sections, "Contexts:\n"+strings.Join(lines, "\n"))
	}
	if len(g.States) > 0 {
		lines := make([]string, 0, len(g.States))
		for _, s := range g.States {
			lines = append(lines, fmt.Sprintf(" - %s, %t", quote(s.Content), s.IsTrue))
		}
		sections = append(sections, "States:\n"+strings.Join(lines, "\n"))
	}
	return "Initial Graph State:\n" + strings.Join(sections, "\n\n")
}

// FormatSuccessCriteria lists the conversation's success criteria, or returns "".
func FormatSuccessCriteria(cfg *conversation.Config) string {
	if cfg == nil || len(cfg.SuccessCriteria) == 0 {
		return ""
	}
	return "Success Criteria:\n" + bullets(cfg.SuccessCriteria)
}

// FormatValidationRequirements lists the behavioral requirements implied by the conversation config, or returns "".
func FormatValidationRequirements(cfg *conversation.Config) string {
	if cfg == nil {
		return ""
	}
	var reqs []string
	if cfg.RequireSearchFirst {
		reqs = append(reqs, "MUST search/query graph BEFORE asking questions")
	}
	if cfg.ValidateMCPBeforeAsk {
		reqs = append(reqs, "MUST use MCP tools to gather information before asking user")
	}
	if cfg.MaxTurns > 0 {
		reqs = append(reqs, fmt.Sprintf("Should complete within %d conversation turns", cfg.MaxTurns))
	}
	if len(reqs) == 0 {
		return ""
	}
	return "Validation Requirements:\n" + bullets(reqs)
}

func bullets(items []string) string {
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = " - " + it
	}
	return strings.Join(lines, "\n")
}

func quote(s string) string {
	return "'" + s + "'"
}
