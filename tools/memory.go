package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/becomeliminal/nim-memory/core"
	"github.com/becomeliminal/nim-memory/memory"
)

// Memory tool names.
const (
	ManageMemoryName = "manage_memory"
	SearchMemoryName = "search_memory"
)

// Actions accepted by manage_memory.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

const manageMemoryDescription = `Create, update, or delete persistent MEMORIES that carry across conversations.
Include the MEMORY ID when updating or deleting a MEMORY. Omit it when creating a new MEMORY; an ID is assigned for you.
Proactively call this tool when you:

1. Identify a new USER_PREFERENCE.
2. Receive an explicit USER_REQUEST to remember something or otherwise alter your behavior.
3. Are working and want to record important context.
4. Identify that an existing MEMORY is incorrect or outdated.`

const searchMemoryDescription = `Search your long-term memories for information relevant to your current context.`

// memoryToolConfig holds options shared by the memory tools.
type memoryToolConfig struct {
	name         string
	instructions string
	actions      []string
}

// MemoryToolOption configures a memory tool.
type MemoryToolOption func(*memoryToolConfig)

// WithToolName overrides the default tool name.
func WithToolName(name string) MemoryToolOption {
	return func(c *memoryToolConfig) {
		c.name = name
	}
}

// WithInstructions appends guidance to the tool description.
func WithInstructions(instructions string) MemoryToolOption {
	return func(c *memoryToolConfig) {
		c.instructions = instructions
	}
}

// WithActions restricts the actions manage_memory accepts.
func WithActions(actions ...string) MemoryToolOption {
	return func(c *memoryToolConfig) {
		c.actions = actions
	}
}

func newMemoryToolConfig(name string, opts []MemoryToolOption) *memoryToolConfig {
	cfg := &memoryToolConfig{
		name:    name,
		actions: []string{ActionCreate, ActionUpdate, ActionDelete},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func (c *memoryToolConfig) describe(base string) string {
	if c.instructions == "" {
		return base
	}
	return base + "\n\n" + c.instructions
}

// ManageMemoryInput is the input accepted by manage_memory.
type ManageMemoryInput struct {
	core.BaseInput
	Content string `json:"content,omitempty"`
	Action  string `json:"action,omitempty"`
	ID      string `json:"id,omitempty"`
}

// NewManageMemoryTool creates the manage_memory tool writing to namespace.
// The namespace may be a template containing {user_id}.
func NewManageMemoryTool(store memory.Store, namespace memory.Namespace, opts ...MemoryToolOption) core.Tool {
	cfg := newMemoryToolConfig(ManageMemoryName, opts)

	return New(cfg.name).
		Description(cfg.describe(manageMemoryDescription)).
		Schema(BuildSchemaWithThought(map[string]interface{}{
			"content": StringProperty("The memory content. Required for create and update."),
			"action":  StringEnumProperty("What to do with the memory (default: create)", cfg.actions...),
			"id":      StringProperty("ID of the memory to update or delete."),
		}, false)).
		Handler(func(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error) {
			var input ManageMemoryInput
			if err := json.Unmarshal(params.Input, &input); err != nil {
				return Failure(fmt.Sprintf("invalid input: %v", err)), nil
			}
			if input.Action == "" {
				input.Action = ActionCreate
			}
			if !contains(cfg.actions, input.Action) {
				return Failure(fmt.Sprintf("invalid action %q: must be one of %s", input.Action, strings.Join(cfg.actions, ", "))), nil
			}

			ns, err := namespace.Resolve(params.UserID)
			if err != nil {
				return nil, err
			}

			switch input.Action {
			case ActionCreate:
				if input.ID != "" {
					return Failure("you cannot provide a MEMORY ID when creating a MEMORY; use action update to change an existing one"), nil
				}
				if strings.TrimSpace(input.Content) == "" {
					return Failure("content is required to create a memory"), nil
				}
				id := uuid.New().String()
				if err := store.Put(ctx, ns, id, map[string]interface{}{memory.ContentField: input.Content}); err != nil {
					return nil, fmt.Errorf("store memory: %w", err)
				}
				log.Infof("[MEMORY] Created memory %s in %s", id, ns)
				return Success(map[string]interface{}{"message": fmt.Sprintf("created memory %s", id), "id": id}), nil

			case ActionUpdate:
				if input.ID == "" {
					return Failure("id is required to update a memory"), nil
				}
				if strings.TrimSpace(input.Content) == "" {
					return Failure("content is required to update a memory"), nil
				}
				if err := store.Put(ctx, ns, input.ID, map[string]interface{}{memory.ContentField: input.Content}); err != nil {
					return nil, fmt.Errorf("store memory: %w", err)
				}
				log.Infof("[MEMORY] Updated memory %s in %s", input.ID, ns)
				return Success(map[string]interface{}{"message": fmt.Sprintf("updated memory %s", input.ID), "id": input.ID}), nil

			default:
				if input.ID == "" {
					return Failure("id is required to delete a memory"), nil
				}
				if err := store.Delete(ctx, ns, input.ID); err != nil {
					return nil, fmt.Errorf("delete memory: %w", err)
				}
				log.Infof("[MEMORY] Deleted memory %s in %s", input.ID, ns)
				return Success(map[string]interface{}{"message": fmt.Sprintf("deleted memory %s", input.ID), "id": input.ID}), nil
			}
		}).
		Build()
}

// SearchMemoryInput is the input accepted by search_memory.
type SearchMemoryInput struct {
	core.BaseInput
	Query  string                 `json:"query"`
	Limit  int                    `json:"limit,omitempty"`
	Offset int                    `json:"offset,omitempty"`
	Filter map[string]interface{} `json:"filter,omitempty"`
}

// SearchResult is one memory returned by search_memory.
type SearchResult struct {
	Namespace []string               `json:"namespace"`
	Key       string                 `json:"key"`
	Value     map[string]interface{} `json:"value"`
	CreatedAt string                 `json:"created_at"`
	UpdatedAt string                 `json:"updated_at"`
	Score     *float64               `json:"score,omitempty"`
}

// NewSearchMemoryTool creates the search_memory tool reading from namespace.
// The namespace may be a template containing {user_id}.
func NewSearchMemoryTool(store memory.Store, namespace memory.Namespace, opts ...MemoryToolOption) core.Tool {
	cfg := newMemoryToolConfig(SearchMemoryName, opts)

	return New(cfg.name).
		Description(cfg.describe(searchMemoryDescription)).
		Schema(BuildSchemaWithThought(map[string]interface{}{
			"query":  StringProperty("What to search for. Leave empty to list memories."),
			"limit":  IntegerProperty(fmt.Sprintf("Maximum number of results (default: %d)", memory.DefaultSearchLimit)),
			"offset": IntegerProperty("Number of results to skip (default: 0)"),
			"filter": ObjectProperty("Optional exact-match filter on memory value fields."),
		}, false, "query")).
		Handler(func(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error) {
			var input SearchMemoryInput
			if err := json.Unmarshal(params.Input, &input); err != nil {
				return Failure(fmt.Sprintf("invalid input: %v", err)), nil
			}
			if input.Limit < 0 || input.Offset < 0 {
				return Failure("limit and offset must not be negative"), nil
			}

			ns, err := namespace.Resolve(params.UserID)
			if err != nil {
				return nil, err
			}

			items, err := store.Search(ctx, ns, memory.SearchOptions{
				Query:  input.Query,
				Filter: input.Filter,
				Limit:  input.Limit,
				Offset: input.Offset,
			})
			if err != nil {
				return nil, fmt.Errorf("search memories: %w", err)
			}

			results := make([]SearchResult, 0, len(items))
			for _, item := range items {
				results = append(results, SearchResult{
					Namespace: item.Namespace,
					Key:       item.Key,
					Value:     item.Value,
					CreatedAt: item.CreatedAt.Format(time.RFC3339),
					UpdatedAt: item.UpdatedAt.Format(time.RFC3339),
					Score:     item.Score,
				})
			}
			log.Infof("[MEMORY] Search %q in %s returned %d memories", input.Query, ns, len(results))

			return Success(map[string]interface{}{
				"memories": results,
				"count":    len(results),
			}), nil
		}).
		Observation(func(result *core.ToolResult, err error) string {
			if err != nil {
				return fmt.Sprintf("Error: %s", err.Error())
			}
			if result == nil {
				return "No result returned"
			}
			if !result.Success {
				return fmt.Sprintf("Failed: %s", result.Error)
			}
			data, _ := result.Data.(map[string]interface{})
			results, _ := data["memories"].([]SearchResult)
			if len(results) == 0 {
				return "No memories found"
			}
			var parts []string
			for _, r := range results {
				if content, ok := r.Value[memory.ContentField].(string); ok {
					parts = append(parts, content)
				}
			}
			return fmt.Sprintf("Found %d memories: %s", len(results), strings.Join(parts, "; "))
		}).
		Build()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
