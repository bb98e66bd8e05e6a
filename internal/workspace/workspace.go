// Package workspace resolves the conventional file layout of a project under test.
package workspace

import (
	"os"
	"path/filepath"
)

// EnvVarRoot overrides the project root. When unset the working directory is used.
const EnvVarRoot = "AGENTJUDGE_ROOT"

// Root returns the project root.
func Root() string {
	if r := os.Getenv(EnvVarRoot); r != "" {
		return r
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// SystemPromptFile is the assistant's full system prompt.
func SystemPromptFile(root string) string {
	return filepath.Join(root, "src", "conversational-layer", "system-prompt-full.md")
}

// TestCasesFile is the default case list.
func TestCasesFile(root string) string {
	return filepath.Join(root, "tests", "test_cases_refactored.json")
}

// MCPConfigFile is the default MCP server config.
func MCPConfigFile(root string) string {
	return filepath.Join(root, "tests", "mcp-config.json")
}

// FixturesDir holds the system prompt overlays next to a case list.
func FixturesDir(testCasesPath string) string {
	return filepath.Join(filepath.Dir(testCasesPath), "fixtures")
}

// Overlay file names inside FixturesDir.
const (
	TestOverlay    = "system-prompt-test-overlay.md"
	LiveMCPOverlay = "system-prompt-live-mcp-overlay.md"
	NoMCPOverlay   = "system-prompt-no-mcp-overlay.md"
)

// EnsureDir makes sure dir exists.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}

// EnsureParent makes sure the directory containing path exists.
func EnsureParent(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return EnsureDir(dir)
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
