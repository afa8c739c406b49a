package memory_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/becomeliminal/nim-memory/core"
	"github.com/becomeliminal/nim-memory/memory"
)

func TestEpisode_TraceRoundTrip(t *testing.T) {
	trace := &core.Trace{
		Thought:     "The user asked me to remember their favorite color",
		Action:      "manage_memory",
		Observation: `{"message":"created memory 1"}`,
		Success:     true,
	}

	ep := memory.NewTraceEpisode(trace)
	assert.InDelta(t, 0.7, ep.Importance, 1e-9)

	item := &memory.Item{Value: ep.Value()}
	assert.Contains(t, item.Content(), "Action: manage_memory")

	restored := memory.EpisodeFromItem(item)
	assert.Equal(t, memory.EpisodeTrace, restored.Kind)
	assert.Equal(t, trace.Thought, restored.Thought)
	assert.Equal(t, trace.Action, restored.Action)
	assert.True(t, restored.Success)
}

func TestEpisode_FailedTraceShowsPrevention(t *testing.T) {
	trace := &core.Trace{
		Action:      "draft_email",
		Observation: "Error: missing subject",
		Success:     false,
		Metadata:    map[string]string{"prevention": "Check all required fields are provided"},
	}

	ep := memory.NewTraceEpisode(trace)
	assert.InDelta(t, 0.8, ep.Importance, 1e-9)

	out := ep.Format(memory.FormatContext{MaxLength: 400})
	assert.True(t, strings.HasPrefix(out, "[Failed] draft_email"))
	assert.Contains(t, out, "Prevention: Check all required fields are provided")
}

func TestEpisode_Conversation(t *testing.T) {
	ep := memory.NewConversationEpisode("Can you explain recursion?", "Recursion is when a function calls itself.")
	out := ep.Format(memory.FormatContext{MaxLength: 300})

	assert.Contains(t, out, "[Exchange]")
	assert.Contains(t, out, "Can you explain recursion?")

	restored := memory.EpisodeFromItem(&memory.Item{Value: ep.Value()})
	assert.Equal(t, ep.UserMessage, restored.UserMessage)
	assert.Equal(t, ep.AssistantResponse, restored.AssistantResponse)
}

func TestEpisodeFromItem_PlainFact(t *testing.T) {
	ep := memory.EpisodeFromItem(&memory.Item{Value: map[string]interface{}{"content": "User prefers dark mode"}})
	assert.Equal(t, "note", ep.Kind)
	assert.Equal(t, "User prefers dark mode", ep.Format(memory.FormatContext{MaxLength: 100}))
}
