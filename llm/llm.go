// Package llm defines the model client boundary used by the engine and the
// prompt optimizer. Providers live in subpackages and translate core messages
// to their own wire format.
package llm

import (
	"context"

	"github.com/becomeliminal/nim-memory/core"
)

// Client sends one chat completion request.
type Client interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
}

// Request is a provider-neutral chat completion request.
type Request struct {
	Model       string
	System      string
	Messages    []core.Message
	Tools       []core.ToolDefinition
	MaxTokens   int64
	Temperature *float64

	// JSONMode asks the provider for a JSON object response where supported.
	JSONMode bool
}

// Response is a provider-neutral chat completion response.
type Response struct {
	Text       string
	ToolCalls  []core.ToolCall
	Usage      core.TokenUsage
	StopReason string
}

// Temperature returns a pointer for Request.Temperature.
func Temperature(v float64) *float64 {
	return &v
}
