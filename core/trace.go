package core

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Trace is one Thought-Action-Observation cycle of the ReAct loop.
type Trace struct {
	ID          string            `json:"id"`
	SessionID   string            `json:"session_id"`
	TurnNumber  int               `json:"turn_number"`
	Thought     string            `json:"thought,omitempty"`
	Action      string            `json:"action"`
	ActionInput json.RawMessage   `json:"action_input,omitempty"`
	Observation string            `json:"observation"`
	Success     bool              `json:"success"`
	Timestamp   int64             `json:"timestamp"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// String renders the trace on a single line for logging.
func (t *Trace) String() string {
	status := "ok"
	if !t.Success {
		status = "failed"
	}
	return fmt.Sprintf("turn=%d action=%s status=%s thought=%q observation=%q",
		t.TurnNumber, t.Action, status, t.Thought, t.Observation)
}
