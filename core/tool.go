package core

import (
	"context"

	"github.com/goccy/go-json"
)

// Tool is a capability the agent can invoke.
type Tool interface {
	Name() string
	Description() string
	Schema() map[string]interface{}
	Execute(ctx context.Context, params *ToolParams) (*ToolResult, error)
}

// ToolParams carries the input and caller identity for a tool execution.
type ToolParams struct {
	// UserID is the user the agent is acting for. Memory tools use it to
	// resolve namespace templates.
	UserID string

	// ConversationID identifies the conversation, if any.
	ConversationID string

	// Input is the raw JSON input produced by the model.
	Input json.RawMessage

	// RequestID correlates the execution with an agent run.
	RequestID string
}

// ToolResult is the outcome of a tool execution.
// A result with Success=false is reported back to the model as an error;
// it does not abort the agent run.
type ToolResult struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ToolDefinition describes a tool to the model.
type ToolDefinition struct {
	ToolName        string                 `json:"name"`
	ToolDescription string                 `json:"description"`
	InputSchema     map[string]interface{} `json:"input_schema"`
}

// ToolHandler is the function signature for tool implementations.
type ToolHandler func(ctx context.Context, params *ToolParams) (*ToolResult, error)

// ToolExecution records a tool invocation made during an agent run.
type ToolExecution struct {
	Tool       string      `json:"tool"`
	Input      interface{} `json:"input"`
	Result     interface{} `json:"result,omitempty"`
	Error      string      `json:"error,omitempty"`
	DurationMs int64       `json:"duration_ms"`
}
