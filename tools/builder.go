package tools

import (
	"context"

	"github.com/becomeliminal/nim-memory/core"
)

// Builder assembles a core.Tool from a name, description, schema and handler.
//
//	tools.New("draft_email").
//		Description("Draft an email").
//		Schema(tools.ObjectSchema(props, "to")).
//		Handler(fn).
//		Build()
type Builder struct {
	name        string
	description string
	schema      map[string]interface{}
	handler     core.ToolHandler
	formatter   func(result *core.ToolResult, err error) string
}

// New starts building a tool with the given name.
func New(name string) *Builder {
	return &Builder{name: name}
}

// Description sets the description shown to the model.
func (b *Builder) Description(description string) *Builder {
	b.description = description
	return b
}

// Schema sets the JSON Schema of the tool input.
func (b *Builder) Schema(schema map[string]interface{}) *Builder {
	b.schema = schema
	return b
}

// Handler sets the function that executes the tool.
func (b *Builder) Handler(handler core.ToolHandler) *Builder {
	b.handler = handler
	return b
}

// Observation overrides how results are summarized in ReAct traces.
func (b *Builder) Observation(formatter func(result *core.ToolResult, err error) string) *Builder {
	b.formatter = formatter
	return b
}

// Build returns the tool. A missing schema defaults to an empty object.
func (b *Builder) Build() core.Tool {
	schema := b.schema
	if schema == nil {
		schema = ObjectSchema(map[string]interface{}{})
	}
	t := &tool{
		name:        b.name,
		description: b.description,
		schema:      schema,
		handler:     b.handler,
	}
	if b.formatter != nil {
		return &formattedTool{tool: t, formatter: b.formatter}
	}
	return t
}

type tool struct {
	name        string
	description string
	schema      map[string]interface{}
	handler     core.ToolHandler
}

func (t *tool) Name() string                   { return t.name }
func (t *tool) Description() string            { return t.description }
func (t *tool) Schema() map[string]interface{} { return t.schema }

func (t *tool) Execute(ctx context.Context, params *core.ToolParams) (*core.ToolResult, error) {
	if t.handler == nil {
		return nil, ErrNoHandler
	}
	return t.handler(ctx, params)
}

type formattedTool struct {
	*tool
	formatter func(result *core.ToolResult, err error) string
}

// FormatObservation implements the engine's optional observation formatter.
func (t *formattedTool) FormatObservation(result *core.ToolResult, err error) string {
	return t.formatter(result, err)
}

// Definition converts a tool to the definition sent to the model.
func Definition(t core.Tool) core.ToolDefinition {
	return core.ToolDefinition{
		ToolName:        t.Name(),
		ToolDescription: t.Description(),
		InputSchema:     t.Schema(),
	}
}

// Success wraps data in a successful result.
func Success(data interface{}) *core.ToolResult {
	return &core.ToolResult{Success: true, Data: data}
}

// Failure builds a failed result reported back to the model.
func Failure(msg string) *core.ToolResult {
	return &core.ToolResult{Success: false, Error: msg}
}
