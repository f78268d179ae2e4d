// Package llm implements the completion boundary on top of the OpenAI
// chat-completions API, including tool/function calling.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/wanderrhodes/wander/internal/chat"
)

// Client is a chat.CompletionClient backed by OpenAI.
type Client struct {
	api         *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// Config carries everything the client needs; nothing is read from the
// environment here.
type Config struct {
	APIKey      string
	BaseURL     string // optional, for compatible endpoints
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// NewClient builds a client with a bounded request timeout. A timed-out or
// otherwise failed completion surfaces as an error to the caller; retry
// policy belongs here, not in the orchestration loop, and requests are safe
// to retry because the conversation log is append-only.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	conf := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		conf.BaseURL = cfg.BaseURL
	}
	conf.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &Client{
		api:         openai.NewClientWithConfig(conf),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Complete sends the sanitized turn sequence plus tool declarations and
// returns the model's content and any requested tool calls.
func (c *Client) Complete(ctx context.Context, turns []chat.Turn, tools []chat.ToolSchema) (chat.Completion, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toMessages(turns),
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	if len(tools) > 0 {
		req.Tools = toTools(tools)
		req.ToolChoice = "auto"
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return chat.Completion{}, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return chat.Completion{}, fmt.Errorf("no choices in response")
	}

	msg := resp.Choices[0].Message
	out := chat.Completion{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, chat.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return out, nil
}

func toMessages(turns []chat.Turn) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, t := range turns {
		msg := openai.ChatCompletionMessage{
			Role:    t.Role,
			Content: t.Text(),
		}
		for _, tc := range t.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			})
		}
		if t.Role == chat.RoleTool {
			msg.ToolCallID = t.ToolCallID
			msg.Name = t.ToolName
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

func toTools(schemas []chat.ToolSchema) []openai.Tool {
	tools := make([]openai.Tool, 0, len(schemas))
	for _, s := range schemas {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.Parameters,
			},
		})
	}
	return tools
}
