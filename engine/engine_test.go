package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-memory/core"
	"github.com/becomeliminal/nim-memory/engine"
	"github.com/becomeliminal/nim-memory/llm"
	"github.com/becomeliminal/nim-memory/llm/llmtest"
	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/embedder/mock"
	"github.com/becomeliminal/nim-memory/memory/store/chromem"
	"github.com/becomeliminal/nim-memory/tools"
)

func toolCall(id, name, input string) *llm.Response {
	return &llm.Response{
		ToolCalls:  []core.ToolCall{{ID: id, Name: name, Input: json.RawMessage(input)}},
		StopReason: "tool_use",
		Usage:      core.TokenUsage{InputTokens: 10, OutputTokens: 5},
	}
}

func newMemoryEngine(t *testing.T, client llm.Client, opts ...engine.Option) (*engine.Engine, *chromem.Store, memory.Namespace) {
	t.Helper()
	store, err := chromem.New(mock.New(), nil)
	require.NoError(t, err)

	ns := memory.NewNamespace("memories")
	registry, err := engine.NewToolRegistry(
		tools.NewManageMemoryTool(store, ns),
		tools.NewSearchMemoryTool(store, ns),
	)
	require.NoError(t, err)
	return engine.NewEngine(client, registry, opts...), store, ns
}

func TestEngine_ToolLoop(t *testing.T) {
	ctx := context.Background()
	client := llmtest.New(
		toolCall("call_1", "manage_memory", `{"content":"User prefers dark mode and loves coffee","thought":"User asked me to remember preferences"}`),
		llmtest.Text("Got it, I'll remember that."),
	)
	eng, store, ns := newMemoryEngine(t, client)

	out, err := eng.Run(ctx, &engine.Input{UserMessage: "Remember that I prefer dark mode and love coffee."})
	require.NoError(t, err)
	assert.Equal(t, engine.OutputComplete, out.Type)
	assert.Equal(t, "Got it, I'll remember that.", out.Text)
	assert.Equal(t, 10, out.TokensUsed.InputTokens)

	require.Len(t, out.ToolsUsed, 1)
	assert.Equal(t, "manage_memory", out.ToolsUsed[0].Tool)
	assert.Empty(t, out.ToolsUsed[0].Error)

	require.Len(t, out.Traces, 1)
	assert.True(t, out.Traces[0].Success)
	assert.Equal(t, "User asked me to remember preferences", out.Traces[0].Thought)
	assert.Contains(t, out.Traces[0].Observation, "created memory")

	items, err := store.Search(ctx, ns, memory.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "User prefers dark mode and loves coffee", items[0].Content())

	// user, assistant(tool call), tool result, assistant
	require.Len(t, out.Messages, 4)
	assert.Equal(t, core.RoleTool, out.Messages[2].Role)
	assert.Equal(t, "call_1", out.Messages[2].ToolCallID)
	assert.False(t, out.Messages[2].IsError)

	requests := client.Requests()
	require.Len(t, requests, 2)
	assert.Equal(t, engine.DefaultSystemPrompt, requests[0].System)
	require.Len(t, requests[0].Tools, 2)
	assert.Equal(t, "manage_memory", requests[0].Tools[0].ToolName)
	assert.Len(t, requests[1].Messages, 3)
}

func TestEngine_ToolErrorsGoBackToModel(t *testing.T) {
	client := llmtest.New(
		&llm.Response{ToolCalls: []core.ToolCall{
			{ID: "a", Name: "unknown_tool", Input: json.RawMessage(`{}`)},
			{ID: "b", Name: "manage_memory", Input: json.RawMessage(`{not json`)},
			{ID: "c", Name: "manage_memory", Input: json.RawMessage(`{"action":"update","content":"x"}`)},
		}},
		llmtest.Text("Sorry about that."),
	)
	eng, _, _ := newMemoryEngine(t, client)

	out, err := eng.Run(context.Background(), &engine.Input{UserMessage: "update my memory"})
	require.NoError(t, err)
	assert.Equal(t, "Sorry about that.", out.Text)

	results := client.Requests()[1].Messages[2:]
	require.Len(t, results, 3)
	for _, msg := range results {
		assert.Equal(t, core.RoleTool, msg.Role)
		assert.True(t, msg.IsError)
	}
	assert.Equal(t, "unknown tool: unknown_tool", results[0].Content)
	assert.Contains(t, results[1].Content, "invalid tool input JSON")
	assert.Equal(t, "id is required to update a memory", results[2].Content)

	// Only the executed call leaves a trace
	require.Len(t, out.Traces, 1)
	trace := out.Traces[0]
	assert.False(t, trace.Success)
	assert.Equal(t, "invalid_input", trace.Metadata["error_type"])
	assert.Equal(t, "Provide content when creating or updating, and the memory ID when updating or deleting", trace.Metadata["prevention"])
}

func TestEngine_TurnLimit(t *testing.T) {
	client := &llmtest.Client{
		CompleteFunc: func(ctx context.Context, req *llm.Request) (*llm.Response, error) {
			return toolCall("loop", "search_memory", `{"query":"anything"}`), nil
		},
	}
	eng, _, _ := newMemoryEngine(t, client)

	out, err := eng.Run(context.Background(), &engine.Input{
		UserMessage: "loop forever",
		Context:     &core.Context{Limits: &core.ExecutionLimits{MaxTurns: 3}},
	})
	require.NoError(t, err)
	assert.Equal(t, engine.OutputError, out.Type)
	assert.EqualError(t, out.Error, "exceeded maximum turns (3)")
	assert.Len(t, client.Requests(), 3)
	assert.Len(t, out.Traces, 3)
}

func TestEngine_Timeout(t *testing.T) {
	client := &llmtest.Client{
		CompleteFunc: func(ctx context.Context, req *llm.Request) (*llm.Response, error) {
			time.Sleep(20 * time.Millisecond)
			return toolCall("slow", "search_memory", `{"query":"x"}`), nil
		},
	}
	eng, _, _ := newMemoryEngine(t, client)

	out, err := eng.Run(context.Background(), &engine.Input{
		UserMessage: "hurry",
		Context:     &core.Context{Limits: &core.ExecutionLimits{Timeout: 5 * time.Millisecond}},
	})
	require.NoError(t, err)
	assert.Equal(t, engine.OutputError, out.Type)
	assert.ErrorIs(t, out.Error, context.DeadlineExceeded)
}

func TestEngine_APIError(t *testing.T) {
	client := llmtest.New()
	client.FailNext(errors.New("401 unauthorized"))
	eng, _, _ := newMemoryEngine(t, client)

	out, err := eng.Run(context.Background(), &engine.Input{UserMessage: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401 unauthorized")
	assert.Equal(t, engine.OutputError, out.Type)
}

func TestEngine_AvailableTools(t *testing.T) {
	client := llmtest.New(llmtest.Text("ok"))
	eng, _, _ := newMemoryEngine(t, client, engine.WithModel("gpt-4o-mini"), engine.WithTemperature(0.7))

	_, err := eng.Run(context.Background(), &engine.Input{
		UserMessage:    "what do you know?",
		AvailableTools: []string{"search_memory"},
	})
	require.NoError(t, err)

	req := client.Requests()[0]
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "search_memory", req.Tools[0].ToolName)
	assert.Equal(t, "gpt-4o-mini", req.Model)
	require.NotNil(t, req.Temperature)
	assert.InDelta(t, 0.7, *req.Temperature, 1e-9)
}

func TestEngine_FilteredToolNotExecuted(t *testing.T) {
	ctx := context.Background()
	client := llmtest.New(
		toolCall("call_1", "manage_memory", `{"content":"User likes tea"}`),
		llmtest.Text("I can only search."),
	)
	eng, store, ns := newMemoryEngine(t, client)

	out, err := eng.Run(ctx, &engine.Input{
		UserMessage:    "Remember that I like tea",
		AvailableTools: []string{"search_memory"},
	})
	require.NoError(t, err)
	assert.Equal(t, engine.OutputComplete, out.Type)
	assert.Empty(t, out.ToolsUsed)

	var toolMsg *core.Message
	for i := range out.Messages {
		if out.Messages[i].Role == core.RoleTool {
			toolMsg = &out.Messages[i]
		}
	}
	require.NotNil(t, toolMsg)
	assert.True(t, toolMsg.IsError)
	assert.Equal(t, "unknown tool: manage_memory", toolMsg.Content)

	items, err := store.Search(ctx, ns, memory.SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestEngine_TimeoutDuringModelCall(t *testing.T) {
	client := &llmtest.Client{
		CompleteFunc: func(ctx context.Context, req *llm.Request) (*llm.Response, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	eng, _, _ := newMemoryEngine(t, client)

	out, err := eng.Run(context.Background(), &engine.Input{
		UserMessage: "hurry",
		Context:     &core.Context{Limits: &core.ExecutionLimits{Timeout: 5 * time.Millisecond}},
	})
	require.NoError(t, err)
	assert.Equal(t, engine.OutputError, out.Type)
	assert.ErrorIs(t, out.Error, context.DeadlineExceeded)
	assert.Contains(t, out.Error.Error(), "timed out")
}

func TestEngine_PromptSource(t *testing.T) {
	ctx := context.Background()
	store, err := chromem.New(mock.New(), nil)
	require.NoError(t, err)
	instructions := memory.NewInstructions(store, memory.NewNamespace("instructions"), "email_agent", "Write professional emails.")

	client := llmtest.New(llmtest.Text("draft 1"), llmtest.Text("draft 2"), llmtest.Text("draft 3"))
	eng := engine.NewEngine(client, nil, engine.WithPrompt(instructions))

	_, err = eng.Run(ctx, &engine.Input{UserMessage: "Draft email to john@company.com"})
	require.NoError(t, err)
	assert.Equal(t, "Instructions: Write professional emails.", client.Requests()[0].System)

	require.NoError(t, instructions.Update(ctx, "Write professional emails. Always sign 'Best regards, William'."))
	_, err = eng.Run(ctx, &engine.Input{UserMessage: "Draft email to sarah@company.com"})
	require.NoError(t, err)
	assert.Equal(t, "Instructions: Write professional emails. Always sign 'Best regards, William'.", client.Requests()[1].System)

	// An explicit prompt wins
	_, err = eng.Run(ctx, &engine.Input{UserMessage: "hi", SystemPrompt: "Be brief."})
	require.NoError(t, err)
	assert.Equal(t, "Be brief.", client.Requests()[2].System)
}

type recordingManager struct {
	retrieved     string
	retrieveErr   error
	traces        []*core.Trace
	conversations [][2]string
	userIDs       []string
}

func (m *recordingManager) Retrieve(ctx context.Context, userID, userMessage string) (string, error) {
	m.userIDs = append(m.userIDs, userID)
	return m.retrieved, m.retrieveErr
}

func (m *recordingManager) RecordTraces(ctx context.Context, userID string, traces []*core.Trace) error {
	m.traces = append(m.traces, traces...)
	return nil
}

func (m *recordingManager) RecordConversation(ctx context.Context, userID, userMessage, assistantResponse string) error {
	m.conversations = append(m.conversations, [2]string{userMessage, assistantResponse})
	return nil
}

func TestEngine_MemoryPhases(t *testing.T) {
	manager := &recordingManager{retrieved: "=== RELEVANT MEMORIES ===\n1. User prefers dark mode"}
	client := llmtest.New(
		toolCall("call_1", "search_memory", `{"query":"preferences"}`),
		llmtest.Text("You prefer dark mode."),
	)
	eng, _, _ := newMemoryEngine(t, client, engine.WithMemory(manager))

	_, err := eng.Run(context.Background(), &engine.Input{
		UserMessage: "What are my preferences?",
		Context:     &core.Context{UserID: "user123"},
	})
	require.NoError(t, err)

	system := client.Requests()[0].System
	assert.Contains(t, system, engine.DefaultSystemPrompt)
	assert.Contains(t, system, "=== RELEVANT MEMORIES ===")

	assert.Equal(t, []string{"user123"}, manager.userIDs)
	require.Len(t, manager.traces, 1)
	assert.Equal(t, "search_memory", manager.traces[0].Action)
	assert.Equal(t, [][2]string{{"What are my preferences?", "You prefer dark mode."}}, manager.conversations)
}

func TestEngine_MemoryRetrievalFailureIsNonFatal(t *testing.T) {
	manager := &recordingManager{retrieveErr: errors.New("embedder down")}
	client := llmtest.New(llmtest.Text("hello"))
	eng, _, _ := newMemoryEngine(t, client, engine.WithMemory(manager))

	out, err := eng.Run(context.Background(), &engine.Input{UserMessage: "hi there"})
	require.NoError(t, err)
	assert.Equal(t, "hello", out.Text)
	assert.Equal(t, engine.DefaultSystemPrompt, client.Requests()[0].System)
}

func TestEngine_History(t *testing.T) {
	client := llmtest.New(llmtest.Text("You said hello."))
	eng := engine.NewEngine(client, nil)

	history := []core.Message{
		core.NewUserMessage("hello"),
		core.NewAssistantMessage("Hi! How can I help?"),
	}
	out, err := eng.Run(context.Background(), &engine.Input{UserMessage: "what did I say?", History: history})
	require.NoError(t, err)

	assert.Len(t, client.Requests()[0].Messages, 3)
	assert.Len(t, out.Messages, 4)
	assert.Empty(t, client.Requests()[0].Tools)
}
