// Package cases loads and filters the declarative test-case list.
package cases

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/codalotl/agentjudge/internal/conversation"
)

// Case is one test scenario.
type Case struct {
	Name     string `json:"name" yaml:"name"`
	Category string `json:"category" yaml:"category"`
	Prompt   string `json:"prompt" yaml:"prompt"`
	// ExpectedPass is what the judge should conclude. Nil means true.
	ExpectedPass     *bool  `json:"expected_pass,omitempty" yaml:"expected_pass,omitempty"`
	ExpectedBehavior string `json:"expected_behavior,omitempty" yaml:"expected_behavior,omitempty"`
	JudgeScenario    string `json:"judge_scenario,omitempty" yaml:"judge_scenario,omitempty"`

	// AssistantOverride replaces the agent call with a canned response. Used by judge negative controls.
	AssistantOverride *string `json:"assistant_override,omitempty" yaml:"assistant_override,omitempty"`

	GraphSetup     *GraphSetup          `json:"graph_setup,omitempty" yaml:"graph_setup,omitempty"`
	Conversational *conversation.Config `json:"conversational,omitempty" yaml:"conversational,omitempty"`
}

// ExpectsPass reports the case's expected judge outcome.
func (c Case) ExpectsPass() bool {
	return c.ExpectedPass == nil || *c.ExpectedPass
}

// IsConversational reports whether the case runs as a multi-turn conversation.
func (c Case) IsConversational() bool {
	return c.Conversational != nil && c.Conversational.Enabled
}

// HasOverride reports whether the case supplies a canned assistant response.
func (c Case) HasOverride() bool {
	return c.AssistantOverride != nil
}

// ConversationScenario projects the case onto what the conversation engine needs.
func (c Case) ConversationScenario() conversation.Scenario {
	cfg := conversation.DefaultConfig()
	if c.Conversational != nil {
		cfg = *c.Conversational
	}
	return conversation.Scenario{
		Name:             c.Name,
		Category:         c.Category,
		Prompt:           c.Prompt,
		ExpectedBehavior: c.ExpectedBehavior,
		Config:           cfg,
	}
}

// IsJudgeSuite reports whether the case is a judge negative control.
func (c Case) IsJudgeSuite() bool {
	return strings.HasPrefix(c.Name, "judge_")
}

// GraphSetup is the declarative initial graph state of a case.
type GraphSetup struct {
	Tasks    []Task    `json:"tasks,omitempty" yaml:"tasks,omitempty"`
	Contexts []Context `json:"contexts,omitempty" yaml:"contexts,omitempty"`
	States   []State   `json:"states,omitempty" yaml:"states,omitempty"`
}

// Empty reports whether there is nothing to set up.
func (g *GraphSetup) Empty() bool {
	return g == nil || (len(g.Tasks) == 0 && len(g.Contexts) == 0 && len(g.States) == 0)
}

type Task struct {
	ID               string     `json:"id,omitempty" yaml:"id,omitempty"`
	Content          string     `json:"content" yaml:"content"`
	IsComplete       bool       `json:"isComplete" yaml:"isComplete"`
	ResponsibleParty string     `json:"responsibleParty,omitempty" yaml:"responsibleParty,omitempty"`
	DependsOn        StringList `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
}

// Context availability may be written as isAvailable or isTrue.
type Context struct {
	Content     string `json:"content" yaml:"content"`
	IsAvailable bool   `json:"isAvailable,omitempty" yaml:"isAvailable,omitempty"`
	IsTrue      bool   `json:"isTrue,omitempty" yaml:"isTrue,omitempty"`
}

// Available reports whether the context starts out available.
func (c Context) Available() bool {
	return c.IsAvailable || c.IsTrue
}

type State struct {
	Content string `json:"content" yaml:"content"`
	IsTrue  bool   `json:"isTrue" yaml:"isTrue"`
}

// StringList accepts a string or a list of strings.
type StringList []string

// UnmarshalYAML makes StringList accept a string or a slice.
func (s *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var v string
		if err := value.Decode(&v); err != nil {
			return err
		}
		if v != "" {
			*s = []string{v}
		}
		return nil
	case yaml.SequenceNode:
		var vals []string
		if err := value.Decode(&vals); err != nil {
			return err
		}
		*s = vals
		return nil
	case 0:
		return nil
	default:
		return fmt.Errorf("expected string or list, got %v", value.Kind)
	}
}

// UnmarshalJSON makes StringList accept a string or an array.
func (s *StringList) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		if one != "" {
			*s = []string{one}
		}
		return nil
	}
	var vals []string
	if err := json.Unmarshal(b, &vals); err != nil {
		return fmt.Errorf("expected string or list: %w", err)
	}
	*s = vals
	return nil
}
