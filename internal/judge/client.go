package judge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"

	"github.com/codalotl/agentjudge/internal/agents"
	"github.com/codalotl/agentjudge/internal/outcome"
)

// Backend names.
const (
	BackendCLI       = "cli"
	BackendAnthropic = "anthropic"
	BackendOpenAI    = "openai"
)

// Default models for the API backends.
const (
	DefaultAnthropicModel = "claude-sonnet-4-5-20250929"
	DefaultOpenAIModel    = "gpt-4o-mini"
)

// Client sends one rubric-plus-prompt evaluation and returns the judge's raw text.
type Client interface {
	Complete(ctx context.Context, system, prompt string) outcome.Result[string]
}

// CLIClient judges through the claude CLI. With an MCP config the judge can inspect graph state itself.
type CLIClient struct {
	Agent         agents.Invoker
	Model         string
	MCPConfigPath string
	Timeout       time.Duration
}

func (c *CLIClient) Complete(ctx context.Context, system, prompt string) outcome.Result[string] {
	model := c.Model
	if model == "" {
		model = "sonnet"
	}
	res := c.Agent.Invoke(ctx, agents.Request{
		Label:         "Judge",
		Prompt:        prompt,
		Model:         model,
		AppendPrompts: []string{system},
		MCPConfigPath: c.MCPConfigPath,
		Timeout:       c.Timeout,
	})
	if !res.Succeeded() {
		return outcome.Convert[agents.Response, string](res)
	}
	return outcome.OK(res.Value.Text)
}

// AnthropicClient judges through the Anthropic Messages API.
type AnthropicClient struct {
	client    anthropic.Client
	Model     string
	MaxTokens int64
	Timeout   time.Duration
}

// NewAnthropicClient builds a client for apiKey. An empty model selects DefaultAnthropicModel.
func NewAnthropicClient(apiKey, model string, timeout time.Duration) *AnthropicClient {
	if model == "" {
		model = DefaultAnthropicModel
	}
	return &AnthropicClient{
		client:    anthropic.NewClient(anthropicoption.WithAPIKey(apiKey)),
		Model:     model,
		MaxTokens: 1024,
		Timeout:   timeout,
	}
}

func (c *AnthropicClient) Complete(ctx context.Context, system, prompt string) outcome.Result[string] {
	ctx, cancel := withTimeout(ctx, c.Timeout)
	defer cancel()

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.Model),
		MaxTokens: c.MaxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		Temperature: anthropic.Float(0),
	})
	if err != nil {
		return apiFailure(ctx, err, c.Timeout)
	}
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return outcome.OK(sb.String())
}

// OpenAIClient judges through the OpenAI chat completions API.
type OpenAIClient struct {
	client  openai.Client
	Model   string
	Timeout time.Duration
}

// NewOpenAIClient builds a client for apiKey. An empty model selects DefaultOpenAIModel.
func NewOpenAIClient(apiKey, model string, timeout time.Duration) *OpenAIClient {
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIClient{
		client:  openai.NewClient(openaioption.WithAPIKey(apiKey)),
		Model:   model,
		Timeout: timeout,
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, system, prompt string) outcome.Result[string] {
	ctx, cancel := withTimeout(ctx, c.Timeout)
	defer cancel()

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		return apiFailure(ctx, err, c.Timeout)
	}
	if len(resp.Choices) == 0 {
		return outcome.Retryable[string](outcome.KindMalformedOutput, "Judge returned no choices")
	}
	return outcome.OK(resp.Choices[0].Message.Content)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// apiFailure classifies an API error. Rate limits, overload and gateway errors are retryable; other HTTP
// statuses are fatal. Errors without a status fall back to text classification.
func apiFailure(ctx context.Context, err error, timeout time.Duration) outcome.Result[string] {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return outcome.Retryable[string](outcome.KindTimeout, "Judge timeout (%ds)", int(timeout.Seconds()))
	}
	if code := statusCode(err); code != 0 {
		reason := fmt.Sprintf("Judge API error (HTTP %d): %v", code, err)
		switch code {
		case 429, 503, 504, 529:
			return outcome.Retryable[string](outcome.KindProcessError, "%s", reason)
		default:
			return outcome.Fatal[string](outcome.KindProcessError, "%s", reason)
		}
	}
	return outcome.FromFailure[string](outcome.Classify(err, 0, ""))
}

func statusCode(err error) int {
	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return anthropicErr.StatusCode
	}
	var openaiErr *openai.Error
	if errors.As(err, &openaiErr) {
		return openaiErr.StatusCode
	}
	return 0
}
