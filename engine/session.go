package engine

import (
	"github.com/google/uuid"

	"github.com/becomeliminal/nim-memory/core"
)

// Session is the state of one agent run: the conversation so far, the turn
// count and the ReAct traces produced.
type Session struct {
	ID             string
	UserID         string
	ConversationID string
	TurnCount      int
	Traces         []*core.Trace

	messages []core.Message
}

// NewSession creates a session for the given user and conversation.
func NewSession(userID, conversationID string) *Session {
	return &Session{
		ID:             uuid.New().String(),
		UserID:         userID,
		ConversationID: conversationID,
	}
}

// RestoreHistory seeds the session with previous messages.
func (s *Session) RestoreHistory(history []core.Message) {
	s.messages = append(s.messages, history...)
}

// AddUserMessage appends a user message.
func (s *Session) AddUserMessage(content string) {
	s.messages = append(s.messages, core.NewUserMessage(content))
}

// AddAssistantMessage appends an assistant message, with any tool calls it made.
func (s *Session) AddAssistantMessage(content string, calls ...core.ToolCall) {
	s.messages = append(s.messages, core.NewAssistantMessage(content, calls...))
}

// AddToolResults appends tool result messages.
func (s *Session) AddToolResults(results []core.Message) {
	s.messages = append(s.messages, results...)
}

// AddTrace records a ReAct trace.
func (s *Session) AddTrace(trace *core.Trace) {
	s.Traces = append(s.Traces, trace)
}

// IncrementTurnCount increments the turn counter.
func (s *Session) IncrementTurnCount() {
	s.TurnCount++
}

// Messages returns a copy of the conversation.
func (s *Session) Messages() []core.Message {
	return append([]core.Message(nil), s.messages...)
}
