package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/codalotl/agentjudge/internal/agents"
	"github.com/codalotl/agentjudge/internal/outcome"
	"github.com/codalotl/agentjudge/internal/types"
)

const (
	// UserProxyTimeout bounds one simulated-user generation call.
	UserProxyTimeout = 120 * time.Second

	fallbackOnError     = "Yes, that sounds good."
	fallbackOnMalformed = "Yes, please proceed with that."

	historyPreviewChars = 500
)

// UserSimulator produces the next user message given what the assistant just said.
type UserSimulator interface {
	Reply(ctx context.Context, sc Scenario, assistantMessage string, history []types.ConversationTurn) string
}

// LLMUser role-plays the user with a second model call. It never fails: errors yield a neutral confirmation.
type LLMUser struct {
	Agent agents.Invoker
}

func (u LLMUser) Reply(ctx context.Context, sc Scenario, assistantMessage string, history []types.ConversationTurn) string {
	log := clog.FromContext(ctx).With("test", sc.Name)
	model := sc.Config.UserProxyModel
	if model == "" {
		model = DefaultUserProxyModel
	}
	res := u.Agent.Invoke(ctx, agents.Request{
		Label:         "User proxy",
		Prompt:        fmt.Sprintf("The assistant just said:\n\n%s\n\nHow do you respond?", assistantMessage),
		Model:         model,
		AppendPrompts: []string{UserProxySystemPrompt(sc, history)},
		Timeout:       UserProxyTimeout,
	})
	switch {
	case res.Succeeded():
		if text := strings.TrimSpace(res.Value.Text); text != "" {
			return text
		}
		return fallbackOnMalformed
	case res.Kind == outcome.KindMalformedOutput:
		log.Errorf("Failed to parse user-proxy response: %s", res.Reason)
		return fallbackOnMalformed
	default:
		log.Errorf("User-proxy LLM failed: %s", res.Reason)
		return fallbackOnError
	}
}

// UserProxySystemPrompt is the role-play brief for the simulated user.
func UserProxySystemPrompt(sc Scenario, history []types.ConversationTurn) string {
	category := sc.Category
	if category == "" {
		category = "Unknown"
	}
	criteria := "- Complete the requested task"
	if len(sc.Config.SuccessCriteria) > 0 {
		lines := make([]string, len(sc.Config.SuccessCriteria))
		for i, c := range sc.Config.SuccessCriteria {
			lines[i] = "- " + c
		}
		criteria = strings.Join(lines, "\n")
	}
	goal := sc.Config.GoalSummary
	if goal == "" {
		goal = sc.ExpectedBehavior
	}
	historyText := formatHistory(history)
	if historyText == "" {
		historyText = "This is the first turn after your initial request."
	}

	var b strings.Builder
	fmt.Fprintf(&b, `# You are Playing the Role of a User

You are roleplaying a **real user** who needs help from a GTD (Getting Things Done) productivity assistant.

**What is being tested**: The GTD assistant's ability to understand and complete your request.
**Your role**: Act as a natural, realistic user trying to get your task done.
**Your goal**: Work with the assistant to accomplish what you asked for, ideally within %d conversational turns.

## Your Scenario

**Category**: %s
**What you want to accomplish**: %s
**How this should resolve**: %s

## Your Original Request

You originally said to the assistant: "%s"

The assistant is now responding or asking you questions. Your job is to answer naturally and help move toward completing your goal.

## What Success Looks Like for You

By the end of this conversation, you should have:
%s
`, sc.Config.MaxTurns, category, goal, sc.ExpectedBehavior, sc.Prompt, criteria)

	fmt.Fprintf(&b, `
## How to Respond

1. **Be Natural and Realistic**
   - Respond like a real person would, not a script
   - Use conversational language
   - Be specific when you can, vague when that's realistic
   - Show natural human uncertainty or clarification needs

2. **Stay Focused on Your Goal**
   - Remember what you originally asked for
   - Help the assistant achieve: %s
   - If the assistant's questions are helping, answer them honestly
   - If the assistant seems confused, try to clarify

3. **Recognize When Done**
   - If the assistant has successfully completed your request, acknowledge it
   - Say something like "That looks good, thanks!" or "Perfect, that's what I needed"
   - Don't introduce new requirements once your goal is achieved

4. **Avoid Common Pitfalls**
   - Don't introduce unrelated requirements
   - Don't contradict what you said before
   - Don't be overly pedantic or difficult
   - Stay in character as a busy professional, not a tester

5. **Provide Context When Asked**
   - If asked about priority, deadlines, or dependencies, give realistic details
   - If you don't know something, it's okay to say "I'm not sure" or "whatever makes sense"
   - Be helpful, not obstructive

## Context from Previous Turns

%s
`, goal, historyText)

	b.WriteString(`
## Example Responses

**Good responses:**
- "Yes, I need those three sub-tasks done in order - metrics first, then the narrative, then slides."
- "Oh, I didn't realize I already had a similar task. Let's update that one instead."
- "That works! Thanks for setting that up."
- "The finalize task is different from the review task - they're for different contracts."

**Avoid responses like:**
- "Actually, now I also want X, Y, and Z..." (introducing new requirements)
- "No, that's wrong, I said..." (unless assistant truly misunderstood)
- "Can you also..." (piling on unrelated tasks)

## Important Guidelines

- Respond ONLY as the user, never break character
- Keep responses concise (1-3 sentences usually is plenty)
- Be honest about what you know and don't know
- If the assistant has met your goal, say so and end positively
- Your responses should feel natural, not robotic or test-like

Now respond naturally to whatever the assistant just said or asked.`)
	return b.String()
}

func formatHistory(history []types.ConversationTurn) string {
	if len(history) == 0 {
		return ""
	}
	var parts []string
	for _, turn := range history {
		reply := turn.AssistantResponse
		if len(reply) > historyPreviewChars {
			reply = reply[:historyPreviewChars] + "..."
		}
		parts = append(parts,
			fmt.Sprintf("[Turn %d - You said]", turn.TurnNumber),
			turn.UserMessage,
			fmt.Sprintf("\n[Turn %d - Assistant responded]", turn.TurnNumber),
			reply,
			"",
		)
	}
	return strings.Join(parts, "\n")
}
