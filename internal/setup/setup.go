// Package setup prepares and resets the graph the agent works against. Every operation is a one-shot agent
// call with an inline system prompt against the MCP server.
package setup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/codalotl/agentjudge/internal/agents"
	"github.com/codalotl/agentjudge/internal/cases"
)

// PingTimeout bounds the MCP health check.
const PingTimeout = 10 * time.Second

// ErrNoMCPConfig is returned when a graph operation is requested without an MCP config.
var ErrNoMCPConfig = errors.New("MCP config path is required for graph operations")

const (
	setupSystem = `You are a test fixture setup utility for a GTD system.
Your job is to create nodes and connections as requested.

Execute all setup commands precisely, then confirm completion.
Be concise - just create what's needed and confirm when done.`

	cleanupSystem = `You are a graph cleanup utility. Your job is to delete all nodes in the graph.
Use query_nodes with no filters to find all nodes, then delete each one.
Be concise - just do the cleanup and confirm when done.`

	cleanupPrompt = `Delete all nodes in the graph to prepare for the next test.

Steps:
1. Query all nodes (no filters)
2. Delete each node (connections will cascade automatically)
3. Confirm the graph is empty

Be thorough - we need a completely clean slate for test isolation.`

	pingSystem = "You are a health check utility. Just confirm the system is working."
	pingPrompt = "Ping - respond if you can access the graph memory."
)

// Graph runs fixture operations through Agent.
type Graph struct {
	Agent         agents.Invoker
	MCPConfigPath string
	// Timeout bounds Setup and Clean.
	Timeout time.Duration
}

// Instructions translates a declarative graph setup into natural-language steps, one per line.
func Instructions(g *cases.GraphSetup) []string {
	if g.Empty() {
		return nil
	}
	var out []string
	for _, t := range g.Tasks {
		if t.IsComplete {
			out = append(out, fmt.Sprintf("Create a completed task: '%s'", t.Content))
		} else {
			out = append(out, fmt.Sprintf("Create an incomplete task: '%s'", t.Content))
		}
		if t.ID != "" {
			out = append(out, fmt.Sprintf("  (Store this task ID as '%s' for later reference)", t.ID))
		}
		for _, dep := range t.DependsOn {
			out = append(out, "  Make this task depend on: "+dep)
		}
	}
	for _, c := range g.Contexts {
		avail := "unavailable"
		if c.Available() {
			avail = "available"
		}
		out = append(out, fmt.Sprintf("Create context %s (currently %s)", c.Content, avail))
	}
	for _, s := range g.States {
		out = append(out, fmt.Sprintf("Create manual state: '%s' (currently %t)", s.Content, s.IsTrue))
	}
	return out
}

// Prompt is the setup request sent to the agent for instructions.
func Prompt(instructions []string) string {
	return "Set up the following test data:\n\n" + strings.Join(instructions, "\n")
}

// Setup creates the nodes described by g. An empty setup is a no-op.
func (g *Graph) Setup(ctx context.Context, fixture *cases.GraphSetup) error {
	log := clog.FromContext(ctx)
	instructions := Instructions(fixture)
	if len(instructions) == 0 {
		log.Debug("No fixture data to set up")
		return nil
	}
	if g.MCPConfigPath == "" {
		return ErrNoMCPConfig
	}
	log.Infof("Setting up fixture with %d instructions", len(instructions))
	if err := g.call(ctx, "Graph setup", setupSystem, Prompt(instructions), g.Timeout); err != nil {
		return err
	}
	log.Info("Fixture setup completed successfully")
	return nil
}

// Clean deletes every node in the graph.
func (g *Graph) Clean(ctx context.Context) error {
	if g.MCPConfigPath == "" {
		return ErrNoMCPConfig
	}
	log := clog.FromContext(ctx)
	log.Info("Cleaning graph state...")
	if err := g.call(ctx, "Graph cleanup", cleanupSystem, cleanupPrompt, g.Timeout); err != nil {
		return err
	}
	log.Info("Graph cleanup completed successfully")
	return nil
}

// Ping checks that the agent can reach the MCP server.
func (g *Graph) Ping(ctx context.Context) error {
	if g.MCPConfigPath == "" {
		return ErrNoMCPConfig
	}
	clog.FromContext(ctx).Debugf("Verifying MCP server at %s", g.MCPConfigPath)
	if err := g.call(ctx, "MCP health check", pingSystem, pingPrompt, PingTimeout); err != nil {
		return err
	}
	clog.FromContext(ctx).Info("MCP server health check passed")
	return nil
}

func (g *Graph) call(ctx context.Context, label, system, prompt string, timeout time.Duration) error {
	res := g.Agent.Invoke(ctx, agents.Request{
		Label:         label,
		Prompt:        prompt,
		SystemPrompt:  system,
		MCPConfigPath: g.MCPConfigPath,
		Timeout:       timeout,
	})
	if !res.Succeeded() {
		return fmt.Errorf("%s failed: %s", strings.ToLower(label), res.Reason)
	}
	return nil
}
