// Package report renders suite results and stored history for the terminal.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/codalotl/agentjudge/internal/cases"
	"github.com/codalotl/agentjudge/internal/output"
	"github.com/codalotl/agentjudge/internal/types"
)

// MaxListedFailures caps the failure list in Summary.
const MaxListedFailures = 20

var rule = strings.Repeat("=", 70)

// CategoryCount is the pass tally of one category within a suite.
type CategoryCount struct {
	Category string
	Passed   int
	Total    int
}

// Rate is the pass percentage.
func (c CategoryCount) Rate() float64 {
	return percent(c.Passed, c.Total)
}

// ByCategory tallies results per category, sorted by category name.
func ByCategory(rs []types.TestResult) []CategoryCount {
	idx := map[string]int{}
	var out []CategoryCount
	for _, r := range rs {
		i, ok := idx[r.Category]
		if !ok {
			i = len(out)
			idx[r.Category] = i
			out = append(out, CategoryCount{Category: r.Category})
		}
		out[i].Total++
		if r.Passed {
			out[i].Passed++
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// Summary writes the end-of-suite summary. The title block is a heading.
func Summary(p *output.Printer, s types.SuiteResults, mode string) error {
	if err := p.App(""); err != nil {
		return err
	}
	if err := p.Heading(rule + "\nTEST SUITE SUMMARY\n" + rule); err != nil {
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Mode: %s\n", mode)
	fmt.Fprintf(&b, "Total tests: %d\n", s.Total)
	fmt.Fprintf(&b, "Passed: %d (%.1f%%)\n", s.Passed, s.PassRate())
	fmt.Fprintf(&b, "Failed: %d\n", s.Failed)
	fmt.Fprintf(&b, "Duration: %.1fs\n", s.DurationSeconds)
	if s.Interrogations > 0 {
		fmt.Fprintf(&b, "Interrogations: %d\n", s.Interrogations)
	}

	if cats := ByCategory(s.Results); len(cats) > 0 {
		b.WriteString("\nBy Category:\n")
		for _, c := range cats {
			fmt.Fprintf(&b, "  %s: %d/%d (%.1f%%)\n", c.Category, c.Passed, c.Total, c.Rate())
		}
	}

	var failures []types.TestResult
	for _, r := range s.Results {
		if !r.Passed {
			failures = append(failures, r)
		}
	}
	if len(failures) > 0 {
		b.WriteString("\nFailed Tests:\n")
		for i, f := range failures {
			if i == MaxListedFailures {
				fmt.Fprintf(&b, "  ... and %d more\n", len(failures)-MaxListedFailures)
				break
			}
			fmt.Fprintf(&b, "  - %s (run %d): %s\n", f.TestName, f.RunNumber, truncate(f.Reason, 100))
		}
	}
	return p.App(b.String())
}

// Failure writes the inline notice for a failed test as a heading. The assistant response is included when
// withResponse is set.
func Failure(p *output.Printer, r types.TestResult, withResponse bool) error {
	if err := p.Heading(fmt.Sprintf("FAIL %s (run %d): %s", r.TestName, r.RunNumber, r.Reason)); err != nil {
		return err
	}
	if !withResponse || r.AssistantResponse == "" {
		return nil
	}
	return p.Appf("--- assistant response ---\n%s\n--- end ---", strings.TrimSpace(r.AssistantResponse))
}

// List writes one "name (category)" line per case.
func List(w io.Writer, cs []cases.Case) error {
	for _, c := range cs {
		if _, err := fmt.Fprintf(w, "%s (%s)\n", c.Name, c.Category); err != nil {
			return err
		}
	}
	return nil
}

// InterrogationEntry is one interrogated result in the interrogation log.
type InterrogationEntry struct {
	TestName      string         `json:"test_name"`
	Category      string         `json:"category"`
	RunNumber     int            `json:"run_number"`
	Passed        bool           `json:"passed"`
	ActualPass    bool           `json:"actual_pass"`
	Interrogation []types.QAPair `json:"interrogation"`
}

// InterrogationLog collects the interrogated results of a suite in order.
func InterrogationLog(rs []types.TestResult) []InterrogationEntry {
	out := []InterrogationEntry{}
	for _, r := range rs {
		if len(r.Interrogation) == 0 {
			continue
		}
		out = append(out, InterrogationEntry{
			TestName:      r.TestName,
			Category:      r.Category,
			RunNumber:     r.RunNumber,
			Passed:        r.Passed,
			ActualPass:    r.ActualPass,
			Interrogation: r.Interrogation,
		})
	}
	return out
}

// WriteInterrogationLog writes InterrogationLog(rs) to path as indented JSON.
func WriteInterrogationLog(path string, rs []types.TestResult) error {
	data, err := json.MarshalIndent(InterrogationLog(rs), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(n) / float64(total)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
