package openai

import (
	"math"
	"testing"

	"github.com/goccy/go-json"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-memory/core"
)

func TestToChatMessages(t *testing.T) {
	messages := []core.Message{
		core.NewUserMessage("Remember that I prefer dark mode"),
		core.NewAssistantMessage("", core.ToolCall{
			ID:    "call_1",
			Name:  "manage_memory",
			Input: json.RawMessage(`{"content":"prefers dark mode"}`),
		}),
		core.NewToolMessage("call_1", `{"message":"created memory 1"}`, false),
		core.NewAssistantMessage("Noted."),
	}

	out := toChatMessages("be brief", messages)
	require.Len(t, out, 5)

	assert.Equal(t, openai.ChatMessageRoleSystem, out[0].Role)
	assert.Equal(t, "be brief", out[0].Content)
	assert.Equal(t, openai.ChatMessageRoleUser, out[1].Role)

	require.Len(t, out[2].ToolCalls, 1)
	assert.Equal(t, "manage_memory", out[2].ToolCalls[0].Function.Name)
	assert.Equal(t, `{"content":"prefers dark mode"}`, out[2].ToolCalls[0].Function.Arguments)

	assert.Equal(t, openai.ChatMessageRoleTool, out[3].Role)
	assert.Equal(t, "call_1", out[3].ToolCallID)
	assert.Equal(t, "Noted.", out[4].Content)
}

func TestToChatMessages_NoSystem(t *testing.T) {
	out := toChatMessages("", []core.Message{core.NewUserMessage("hi")})
	require.Len(t, out, 1)
	assert.Equal(t, openai.ChatMessageRoleUser, out[0].Role)
}

func TestTemperature(t *testing.T) {
	assert.Equal(t, float32(math.SmallestNonzeroFloat32), temperature(0))
	assert.NotZero(t, temperature(0))
	assert.InDelta(t, 0.7, temperature(0.7), 1e-6)
}
