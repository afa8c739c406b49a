package memory

import (
	"context"

	"github.com/becomeliminal/nim-memory/core"
)

// FormatContext provides context for memory formatting.
// Format implementations can use this to:
//   - Truncate based on available space (MaxLength)
//   - Customize output based on user context (UserID)
//   - Emphasize query-relevant parts (Query)
type FormatContext struct {
	UserID    string // Current user
	Query     string // Current query being answered
	MaxLength int    // Max characters for this memory's output
}

// Manager orchestrates memory operations around an agent run.
// This is the interface the engine uses.
//
// The engine is opinionated about WHEN to use memory (PHASE 0 retrieve, PHASE 5 record).
// The Manager is unopinionated about HOW - implementations decide:
//   - Which memories to retrieve
//   - How to format them
//   - Which traces to store
type Manager interface {
	// Retrieve finds relevant memories for the user's message and returns a
	// formatted string ready for prompt injection. Empty means nothing relevant.
	Retrieve(ctx context.Context, userID string, userMessage string) (string, error)

	// RecordTraces stores ReAct traces worth keeping.
	RecordTraces(ctx context.Context, userID string, traces []*core.Trace) error

	// RecordConversation stores a conversational exchange. Captures context
	// from turns that involve no tool calls ("that explanation was perfect").
	RecordConversation(ctx context.Context, userID string, userMessage string, assistantResponse string) error
}

// PromptSource supplies the system prompt for an agent run.
// Implementations: Instructions (procedural memory).
type PromptSource interface {
	SystemPrompt(ctx context.Context) (string, error)
}
