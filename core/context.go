package core

import "time"

// Context identifies who the agent is acting for and how far it may go.
type Context struct {
	UserID         string
	ConversationID string
	Limits         *ExecutionLimits
}

// ExecutionLimits bounds a single agent run.
type ExecutionLimits struct {
	// MaxTurns caps model round trips. Zero means the engine default.
	MaxTurns int

	// Timeout bounds the whole run. Zero means no timeout.
	Timeout time.Duration
}
