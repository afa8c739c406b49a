package tools_test

import (
	"context"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-memory/core"
	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/embedder/mock"
	"github.com/becomeliminal/nim-memory/memory/store/chromem"
	"github.com/becomeliminal/nim-memory/tools"
)

func newStore(t *testing.T) *chromem.Store {
	t.Helper()
	store, err := chromem.New(mock.New(), nil)
	require.NoError(t, err)
	return store
}

func call(t *testing.T, tool core.Tool, userID, input string) *core.ToolResult {
	t.Helper()
	result, err := tool.Execute(context.Background(), &core.ToolParams{
		UserID: userID,
		Input:  json.RawMessage(input),
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func message(t *testing.T, result *core.ToolResult) string {
	t.Helper()
	require.True(t, result.Success, result.Error)
	data, ok := result.Data.(map[string]interface{})
	require.True(t, ok)
	return data["message"].(string)
}

func TestManageMemory_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	ns := memory.NewNamespace("user_facts", "user123")
	manage := tools.NewManageMemoryTool(store, ns)

	assert.Equal(t, tools.ManageMemoryName, manage.Name())

	created := call(t, manage, "", `{"content":"Sarah is vegetarian","thought":"User shared a dietary preference"}`)
	id := created.Data.(map[string]interface{})["id"].(string)
	assert.Equal(t, "created memory "+id, message(t, created))

	item, err := store.Get(ctx, ns, id)
	require.NoError(t, err)
	assert.Equal(t, "Sarah is vegetarian", item.Content())

	updated := call(t, manage, "", `{"action":"update","id":"`+id+`","content":"Sarah is vegan"}`)
	assert.Equal(t, "updated memory "+id, message(t, updated))
	item, err = store.Get(ctx, ns, id)
	require.NoError(t, err)
	assert.Equal(t, "Sarah is vegan", item.Content())

	deleted := call(t, manage, "", `{"action":"delete","id":"`+id+`"}`)
	assert.Equal(t, "deleted memory "+id, message(t, deleted))
	_, err = store.Get(ctx, ns, id)
	assert.ErrorIs(t, err, memory.ErrNotFound)
}

func TestManageMemory_InvalidInput(t *testing.T) {
	manage := tools.NewManageMemoryTool(newStore(t), memory.NewNamespace("memories"))

	for name, input := range map[string]string{
		"bad json":           `{"content":`,
		"empty content":      `{"content":"  "}`,
		"create with id":     `{"content":"x","id":"abc"}`,
		"update without id":  `{"action":"update","content":"x"}`,
		"update w/o content": `{"action":"update","id":"abc"}`,
		"delete without id":  `{"action":"delete"}`,
		"unknown action":     `{"action":"archive","id":"abc"}`,
	} {
		t.Run(name, func(t *testing.T) {
			result := call(t, manage, "", input)
			assert.False(t, result.Success)
			assert.NotEmpty(t, result.Error)
		})
	}
}

func TestManageMemory_RestrictedActions(t *testing.T) {
	manage := tools.NewManageMemoryTool(newStore(t), memory.NewNamespace("memories"),
		tools.WithActions(tools.ActionCreate),
		tools.WithToolName("remember"),
		tools.WithInstructions("Only store facts about the user."),
	)

	assert.Equal(t, "remember", manage.Name())
	assert.Contains(t, manage.Description(), "Only store facts about the user.")

	result := call(t, manage, "", `{"action":"delete","id":"abc"}`)
	assert.False(t, result.Success)
}

func TestMemoryTools_ResolveUserNamespace(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	tmpl := memory.NewNamespace("user_facts", "{user_id}")
	manage := tools.NewManageMemoryTool(store, tmpl)
	search := tools.NewSearchMemoryTool(store, tmpl)

	message(t, call(t, manage, "user123", `{"content":"Prefers morning workouts at 6 AM"}`))
	message(t, call(t, manage, "user456", `{"content":"Prefers evening workouts"}`))

	items, err := store.Search(ctx, memory.NewNamespace("user_facts", "user123"), memory.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Prefers morning workouts at 6 AM", items[0].Content())

	result := call(t, search, "user123", `{"query":"workouts"}`)
	require.True(t, result.Success)
	data := result.Data.(map[string]interface{})
	assert.Equal(t, 1, data["count"])

	// Templates need a user
	_, err = manage.Execute(ctx, &core.ToolParams{Input: json.RawMessage(`{"content":"x"}`)})
	assert.ErrorIs(t, err, memory.ErrInvalidNamespace)
}

func TestSearchMemory(t *testing.T) {
	store := newStore(t)
	ns := memory.NewNamespace("episodes", "user123")
	manage := tools.NewManageMemoryTool(store, ns)
	search := tools.NewSearchMemoryTool(store, ns)

	for _, content := range []string{
		"When John asked about Python loops, code examples with explanations worked well",
		"Sarah responded positively to step-by-step workout plans with rest days",
		"Meeting requests work better with Zoom or Google Meet options",
	} {
		message(t, call(t, manage, "", `{"content":"`+content+`"}`))
	}

	result := call(t, search, "", `{"query":"Python code examples","limit":2}`)
	require.True(t, result.Success)
	memories := result.Data.(map[string]interface{})["memories"].([]tools.SearchResult)
	require.Len(t, memories, 2)
	assert.Contains(t, memories[0].Value["content"], "Python loops")
	require.NotNil(t, memories[0].Score)
	assert.Equal(t, []string{"episodes", "user123"}, memories[0].Namespace)

	listed := call(t, search, "", `{"query":"","offset":1}`)
	memories = listed.Data.(map[string]interface{})["memories"].([]tools.SearchResult)
	require.Len(t, memories, 2)
	assert.Contains(t, memories[0].Value["content"], "workout plans")
	assert.Nil(t, memories[0].Score)

	formatter := search.(interface {
		FormatObservation(result *core.ToolResult, err error) string
	})
	assert.Contains(t, formatter.FormatObservation(result, nil), "Found 2 memories")

	bad := call(t, search, "", `{"query":"x","limit":-1}`)
	assert.False(t, bad.Success)
}
