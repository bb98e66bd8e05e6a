package cases

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Suite selector values.
const (
	SuiteAll       = "all"
	SuiteAssistant = "assistant"
	SuiteJudge     = "judge"
)

// Load reads a case list from path. Files ending in .yml or .yaml are YAML; anything else is JSON. The
// document must be a list.
func Load(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cs, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cs, nil
}

// Parse decodes a case list. ext selects the format as in Load.
func Parse(data []byte, ext string) ([]Case, error) {
	switch strings.ToLower(ext) {
	case ".yml", ".yaml":
		var node yaml.Node
		if err := yaml.Unmarshal(data, &node); err != nil {
			return nil, err
		}
		if len(node.Content) == 0 {
			return nil, nil
		}
		if node.Content[0].Kind != yaml.SequenceNode {
			return nil, errors.New("test cases file must contain a list")
		}
		var cs []Case
		if err := node.Content[0].Decode(&cs); err != nil {
			return nil, err
		}
		return cs, nil
	default:
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) == 0 || trimmed[0] != '[' {
			return nil, errors.New("test cases file must contain a list")
		}
		var cs []Case
		if err := json.Unmarshal(trimmed, &cs); err != nil {
			return nil, err
		}
		return cs, nil
	}
}

// Validate checks required fields and name uniqueness. All problems are reported together.
func Validate(cs []Case) error {
	var errs []error
	seen := make(map[string]int, len(cs))
	for i, c := range cs {
		label := fmt.Sprintf("case %d", i)
		if c.Name != "" {
			label = fmt.Sprintf("case %q", c.Name)
		}
		if strings.TrimSpace(c.Name) == "" {
			errs = append(errs, fmt.Errorf("%s: name is required", label))
		} else if prev, dup := seen[c.Name]; dup {
			errs = append(errs, fmt.Errorf("%s: duplicate name (first at index %d)", label, prev))
		} else {
			seen[c.Name] = i
		}
		if strings.TrimSpace(c.Category) == "" {
			errs = append(errs, fmt.Errorf("%s: category is required", label))
		}
		if strings.TrimSpace(c.Prompt) == "" {
			errs = append(errs, fmt.Errorf("%s: prompt is required", label))
		}
		if conv := c.Conversational; conv != nil && conv.Enabled && conv.MaxTurns < 1 {
			errs = append(errs, fmt.Errorf("%s: conversational.max_turns must be >= 1", label))
		}
		if c.GraphSetup != nil {
			for j, task := range c.GraphSetup.Tasks {
				if strings.TrimSpace(task.Content) == "" {
					errs = append(errs, fmt.Errorf("%s: graph_setup.tasks[%d].content is required", label, j))
				}
			}
		}
	}
	return errors.Join(errs...)
}

// Filter narrows a case list. Empty fields match everything.
type Filter struct {
	Category string
	Name     string
	// Suite is all, assistant (excludes judge_ cases) or judge (only judge_ cases).
	Suite string
}

// Apply returns the cases matching f, preserving order. The result is never nil.
func (f Filter) Apply(cs []Case) []Case {
	out := make([]Case, 0, len(cs))
	for _, c := range cs {
		if f.Category != "" && c.Category != f.Category {
			continue
		}
		if f.Name != "" && c.Name != f.Name {
			continue
		}
		switch f.Suite {
		case SuiteAssistant:
			if c.IsJudgeSuite() {
				continue
			}
		case SuiteJudge:
			if !c.IsJudgeSuite() {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}
