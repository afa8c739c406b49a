// Package openai implements llm.Client on the OpenAI chat completions API.
package openai

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/becomeliminal/nim-memory/core"
	"github.com/becomeliminal/nim-memory/llm"
)

// DefaultModel is used when a request does not name a model.
const DefaultModel = openai.GPT4oMini

// Client wraps the go-openai client.
type Client struct {
	client *openai.Client
}

// New creates a Client authenticated with apiKey. baseURL may be empty.
func New(apiKey, baseURL string, timeout time.Duration) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if timeout <= 0 {
		timeout = 150 * time.Second
	}
	config.HTTPClient = &http.Client{Timeout: timeout}
	return &Client{client: openai.NewClientWithConfig(config)}
}

// NewFromClient wraps an existing go-openai client.
func NewFromClient(c *openai.Client) *Client {
	return &Client{client: c}
}

// API exposes the underlying client, e.g. for embeddings.
func (c *Client) API() *openai.Client {
	return c.client
}

// Complete implements llm.Client.
func (c *Client) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	model := req.Model
	if model == "" {
		model = DefaultModel
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: toChatMessages(req.System, req.Messages),
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = int(req.MaxTokens)
	}
	if req.Temperature != nil {
		chatReq.Temperature = temperature(*req.Temperature)
	}
	if req.JSONMode {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	for _, def := range req.Tools {
		chatReq.Tools = append(chatReq.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.ToolName,
				Description: def.ToolDescription,
				Parameters:  def.InputSchema,
			},
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("openai API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai API error: no choices returned")
	}

	choice := resp.Choices[0]
	out := &llm.Response{
		Text:       choice.Message.Content,
		StopReason: string(choice.FinishReason),
		Usage: core.TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}
	for _, call := range choice.Message.ToolCalls {
		input := call.Function.Arguments
		if input == "" {
			input = "{}"
		}
		out.ToolCalls = append(out.ToolCalls, core.ToolCall{
			ID:    call.ID,
			Name:  call.Function.Name,
			Input: []byte(input),
		})
	}
	return out, nil
}

// temperature converts t for the request. go-openai omits a zero
// temperature, so an explicit 0 is sent as the smallest positive float32.
func temperature(t float64) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}

func toChatMessages(system string, messages []core.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, msg := range messages {
		switch msg.Role {
		case core.RoleAssistant:
			m := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: msg.Content,
			}
			for _, call := range msg.ToolCalls {
				m.ToolCalls = append(m.ToolCalls, openai.ToolCall{
					ID:   call.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      call.Name,
						Arguments: string(call.Input),
					},
				})
			}
			out = append(out, m)
		case core.RoleTool:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    msg.Content,
				ToolCallID: msg.ToolCallID,
			})
		default:
			out = append(out, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: msg.Content,
			})
		}
	}
	return out
}
