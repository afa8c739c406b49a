package memory

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/becomeliminal/nim-memory/core"
)

// Episode kinds.
const (
	EpisodeTrace        = "trace"
	EpisodeConversation = "conversation"
)

// Episode is an episodic memory: what happened and whether it worked.
// It is stored as an Item value; the "content" field carries the text that
// gets embedded.
type Episode struct {
	Kind       string
	Importance float64

	// Trace episodes
	Thought     string
	Action      string
	Observation string
	Success     bool
	Prevention  string

	// Conversation episodes
	UserMessage       string
	AssistantResponse string
}

// NewTraceEpisode creates an Episode from a ReAct trace.
func NewTraceEpisode(trace *core.Trace) *Episode {
	ep := &Episode{
		Kind:        EpisodeTrace,
		Thought:     trace.Thought,
		Action:      trace.Action,
		Observation: trace.Observation,
		Success:     trace.Success,
	}
	if trace.Metadata != nil {
		ep.Prevention = trace.Metadata["prevention"]
	}
	ep.Importance = assessTraceImportance(trace)
	return ep
}

// NewConversationEpisode creates an Episode from a user/assistant exchange.
func NewConversationEpisode(userMessage, assistantResponse string) *Episode {
	return &Episode{
		Kind:              EpisodeConversation,
		UserMessage:       userMessage,
		AssistantResponse: assistantResponse,
		Success:           true,
		Importance:        0.5,
	}
}

// Value serializes the episode for Store.Put.
func (e *Episode) Value() map[string]interface{} {
	v := map[string]interface{}{
		"kind":       e.Kind,
		"importance": e.Importance,
		ContentField: e.FormatForEmbedding(),
	}
	switch e.Kind {
	case EpisodeTrace:
		v["thought"] = e.Thought
		v["action"] = e.Action
		v["observation"] = e.Observation
		v["success"] = e.Success
		if e.Prevention != "" {
			v["prevention"] = e.Prevention
		}
	case EpisodeConversation:
		v["user"] = e.UserMessage
		v["assistant"] = e.AssistantResponse
	}
	return v
}

// EpisodeFromItem restores an Episode from a stored item. Items that were not
// written as episodes (e.g. plain manage_memory facts) come back as
// conversation-less notes carrying their content in Observation.
func EpisodeFromItem(item *Item) *Episode {
	str := func(k string) string {
		s, _ := item.Value[k].(string)
		return s
	}
	ep := &Episode{Kind: str("kind")}
	if imp, ok := item.Value["importance"].(float64); ok {
		ep.Importance = imp
	}
	switch ep.Kind {
	case EpisodeTrace:
		ep.Thought = str("thought")
		ep.Action = str("action")
		ep.Observation = str("observation")
		ep.Prevention = str("prevention")
		ep.Success, _ = item.Value["success"].(bool)
	case EpisodeConversation:
		ep.UserMessage = str("user")
		ep.AssistantResponse = str("assistant")
		ep.Success = true
	default:
		ep.Kind = "note"
		ep.Observation = item.Content()
		ep.Success = true
	}
	return ep
}

// Format formats this episode for prompt injection.
func (e *Episode) Format(ctx FormatContext) string {
	var parts []string

	switch e.Kind {
	case EpisodeTrace:
		status := "Success"
		if !e.Success {
			status = "Failed"
		}
		parts = append(parts, fmt.Sprintf("[%s] %s", status, e.Action))
		if len(e.Thought) > 0 {
			parts = append(parts, fmt.Sprintf("  Thought: %q", truncate(e.Thought, ctx.MaxLength/4)))
		}
		if len(e.Observation) > 0 {
			parts = append(parts, fmt.Sprintf("  Observation: %q", truncate(e.Observation, ctx.MaxLength/2)))
		}
		if !e.Success && e.Prevention != "" {
			parts = append(parts, fmt.Sprintf("  Prevention: %s", e.Prevention))
		}
	case EpisodeConversation:
		parts = append(parts, "[Exchange]")
		parts = append(parts, fmt.Sprintf("  User: %q", truncate(e.UserMessage, ctx.MaxLength/3)))
		parts = append(parts, fmt.Sprintf("  Assistant: %q", truncate(e.AssistantResponse, ctx.MaxLength/2)))
	default:
		parts = append(parts, truncate(e.Observation, ctx.MaxLength))
	}

	return strings.Join(parts, "\n")
}

// FormatForEmbedding returns the text representation that gets embedded.
func (e *Episode) FormatForEmbedding() string {
	if e.Kind == EpisodeConversation {
		return fmt.Sprintf("User: %s\nAssistant: %s", e.UserMessage, e.AssistantResponse)
	}
	return fmt.Sprintf("Thought: %s\nAction: %s\nObservation: %s",
		e.Thought, e.Action, e.Observation)
}

// assessTraceImportance scores trace importance [0.0-1.0].
func assessTraceImportance(trace *core.Trace) float64 {
	importance := 0.5

	// Failures are important for learning
	if !trace.Success {
		importance += 0.3
	}

	// Memory writes mean the user asked us to keep something
	if trace.Action == "manage_memory" {
		importance += 0.2
	}

	if len(trace.Thought) > 50 {
		importance += 0.1
	}

	if importance > 1.0 {
		importance = 1.0
	}
	return importance
}

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return "..."
	}
	return cutUTF8(s, maxLen-3) + "..."
}

// cutUTF8 returns at most n bytes of s without splitting a rune.
func cutUTF8(s string, n int) string {
	if n >= len(s) {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
