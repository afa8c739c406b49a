package core

// BaseInput provides common fields for all tool inputs.
// The engine decodes it from every tool call to capture the model's reasoning
// for the ReAct trace.
type BaseInput struct {
	// Thought contains the agent's reasoning about why it's using this tool.
	// Optional; tools built with tools.WithThought advertise it in their schema.
	Thought string `json:"thought,omitempty"`
}
