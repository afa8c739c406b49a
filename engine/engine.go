package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/becomeliminal/nim-memory/core"
	"github.com/becomeliminal/nim-memory/llm"
	"github.com/becomeliminal/nim-memory/memory"
)

// DefaultMaxTurns bounds model round trips when the context sets no limit.
const DefaultMaxTurns = 20

// Engine is the agent runner that executes tools and manages model interactions.
type Engine struct {
	client      llm.Client
	registry    *ToolRegistry
	memory      memory.Manager      // Optional: memory system for trace retrieval/storage
	prompt      memory.PromptSource // Optional: procedural instructions
	model       string
	temperature *float64
}

// Option configures the engine.
type Option func(*Engine)

// WithMemory configures the engine with a memory manager.
func WithMemory(m memory.Manager) Option {
	return func(e *Engine) {
		e.memory = m
	}
}

// WithPrompt sets the source of the system prompt used when the input has none.
func WithPrompt(p memory.PromptSource) Option {
	return func(e *Engine) {
		e.prompt = p
	}
}

// WithModel sets the default model for runs that don't name one.
func WithModel(model string) Option {
	return func(e *Engine) {
		e.model = model
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(e *Engine) {
		e.temperature = llm.Temperature(t)
	}
}

// NewEngine creates a new engine with the given model client and registry.
func NewEngine(client llm.Client, registry *ToolRegistry, opts ...Option) *Engine {
	if registry == nil {
		registry, _ = NewToolRegistry()
	}
	e := &Engine{
		client:   client,
		registry: registry,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the engine's tool registry.
func (e *Engine) Registry() *ToolRegistry {
	return e.registry
}

// Input represents the input to an agent run.
type Input struct {
	// UserMessage is the user's message to process.
	UserMessage string

	// Context contains user identity and execution limits.
	Context *core.Context

	// History contains previous messages in the conversation.
	History []core.Message

	// SystemPrompt overrides the engine's prompt source.
	SystemPrompt string

	// Model overrides the engine's model.
	Model string

	// MaxTokens is the maximum response tokens.
	MaxTokens int64

	// AvailableTools filters which tools from the registry are available.
	// If empty, all registered tools are available.
	AvailableTools []string
}

// Output represents the output from an agent run.
type Output struct {
	// Type indicates the kind of output.
	Type OutputType

	// Text is the agent's final text response.
	Text string

	// Messages is the full conversation including this run.
	Messages []core.Message

	// ToolsUsed records all tools invoked during this run.
	ToolsUsed []core.ToolExecution

	// Traces are the ReAct traces produced during this run.
	Traces []*core.Trace

	// TokensUsed tracks token consumption for this run.
	TokensUsed core.TokenUsage

	// Error is set when Type is OutputError.
	Error error
}

// OutputType indicates the kind of output from an agent run.
type OutputType int

const (
	// OutputComplete indicates the agent finished successfully.
	OutputComplete OutputType = iota

	// OutputError indicates the run stopped early (turn limit, timeout).
	OutputError
)

// Run executes the agent loop until the model answers without tool calls.
// Model API errors are returned; turn limits and timeouts are reported
// through Output.Error.
func (e *Engine) Run(ctx context.Context, input *Input) (*Output, error) {
	userID := ""
	conversationID := ""
	if input.Context != nil {
		userID = input.Context.UserID
		conversationID = input.Context.ConversationID
	}

	// === PHASE 0: RETRIEVE MEMORIES ===
	var enrichment string
	if e.memory != nil && input.UserMessage != "" {
		log.Debugf("[MEMORY] Retrieving memories for query: %s", input.UserMessage)

		// Manager decides how to retrieve and format
		var err error
		enrichment, err = e.memory.Retrieve(ctx, userID, input.UserMessage)
		if err != nil {
			log.Warnf("[MEMORY] Retrieval failed: %v", err)
			enrichment = "" // Non-fatal, continue without memories
		}
	}

	model := input.Model
	if model == "" {
		model = e.model
	}
	systemPrompt := e.systemPrompt(ctx, input)

	// === PHASE 1: ENRICH SYSTEM PROMPT ===
	if enrichment != "" {
		systemPrompt += "\n\n" + enrichment
	}

	maxTurns := DefaultMaxTurns
	if input.Context != nil && input.Context.Limits != nil {
		if input.Context.Limits.MaxTurns > 0 {
			maxTurns = input.Context.Limits.MaxTurns
		}
		if input.Context.Limits.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, input.Context.Limits.Timeout)
			defer cancel()
		}
	}

	session := NewSession(userID, conversationID)
	session.RestoreHistory(input.History)
	if input.UserMessage != "" {
		session.AddUserMessage(input.UserMessage)
	}

	var filter ToolFilter
	if len(input.AvailableTools) > 0 {
		filter = FilterByNames(input.AvailableTools...)
	}
	toolDefs := e.registry.Definitions(filter)

	var totalTokens core.TokenUsage
	var toolsUsed []core.ToolExecution

	fail := func(err error) *Output {
		return &Output{
			Type:       OutputError,
			Messages:   session.Messages(),
			ToolsUsed:  toolsUsed,
			Traces:     session.Traces,
			TokensUsed: totalTokens,
			Error:      err,
		}
	}

	for {
		if ctx.Err() != nil {
			return fail(fmt.Errorf("timed out: %w", ctx.Err())), nil
		}
		if session.TurnCount >= maxTurns {
			return fail(fmt.Errorf("exceeded maximum turns (%d)", maxTurns)), nil
		}
		session.IncrementTurnCount()

		resp, err := e.client.Complete(ctx, &llm.Request{
			Model:       model,
			System:      systemPrompt,
			Messages:    session.Messages(),
			Tools:       toolDefs,
			MaxTokens:   input.MaxTokens,
			Temperature: e.temperature,
		})
		if err != nil {
			if ctx.Err() != nil {
				return fail(fmt.Errorf("timed out: %w", ctx.Err())), nil
			}
			out := fail(fmt.Errorf("model API error: %w", err))
			return out, out.Error
		}
		totalTokens.Add(resp.Usage)

		// If no tool calls, we're done
		if len(resp.ToolCalls) == 0 {
			session.AddAssistantMessage(resp.Text)
			e.record(ctx, session, input.UserMessage, resp.Text)

			return &Output{
				Type:       OutputComplete,
				Text:       resp.Text,
				Messages:   session.Messages(),
				ToolsUsed:  toolsUsed,
				Traces:     session.Traces,
				TokensUsed: totalTokens,
			}, nil
		}

		session.AddAssistantMessage(resp.Text, resp.ToolCalls...)

		results := make([]core.Message, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			msg, execution := e.executeCall(ctx, session, call, filter)
			results = append(results, msg)
			if execution != nil {
				toolsUsed = append(toolsUsed, *execution)
			}
		}

		// Continue loop with tool results
		session.AddToolResults(results)
	}
}

// systemPrompt picks the input's prompt, then the prompt source, then the default.
func (e *Engine) systemPrompt(ctx context.Context, input *Input) string {
	if input.SystemPrompt != "" {
		return input.SystemPrompt
	}
	if e.prompt != nil {
		prompt, err := e.prompt.SystemPrompt(ctx)
		if err != nil {
			log.Warnf("[PROMPT] Prompt source failed, using default: %v", err)
		} else if prompt != "" {
			return prompt
		}
	}
	return DefaultSystemPrompt
}

// executeCall runs one tool call through THINK, ACT and OBSERVE and returns
// the tool message for the model. Execution is nil when the tool never ran.
// Tools rejected by filter are reported as unknown.
func (e *Engine) executeCall(ctx context.Context, session *Session, call core.ToolCall, filter ToolFilter) (core.Message, *core.ToolExecution) {
	toolInput := call.Input
	if len(toolInput) == 0 {
		toolInput = json.RawMessage(`{}`)
	}

	// PHASE 1: THINK - Extract thought from tool input
	var baseInput core.BaseInput
	if err := json.Unmarshal(toolInput, &baseInput); err != nil {
		return core.NewToolMessage(call.ID, fmt.Sprintf("invalid tool input JSON: %s", err.Error()), true), nil
	}
	thought := strings.TrimSpace(baseInput.Thought)

	tool, ok := e.registry.Get(call.Name)
	if !ok || (filter != nil && !filter(tool)) {
		return core.NewToolMessage(call.ID, fmt.Sprintf("unknown tool: %s", call.Name), true), nil
	}

	trace := &core.Trace{
		ID:          uuid.New().String(),
		SessionID:   session.ID,
		TurnNumber:  session.TurnCount,
		Thought:     thought,
		Action:      call.Name,
		ActionInput: toolInput,
		Timestamp:   time.Now().Unix(),
		Metadata:    make(map[string]string),
	}

	// PHASE 2: ACT
	startTime := time.Now()
	result, err := tool.Execute(ctx, &core.ToolParams{
		UserID:         session.UserID,
		ConversationID: session.ConversationID,
		Input:          toolInput,
		RequestID:      session.ID,
	})

	var decoded interface{}
	_ = json.Unmarshal(toolInput, &decoded)
	execution := &core.ToolExecution{
		Tool:       call.Name,
		Input:      decoded,
		DurationMs: time.Since(startTime).Milliseconds(),
	}

	// PHASE 3: OBSERVE
	trace.Success = err == nil && result != nil && result.Success
	trace.Observation = formatObservation(tool, result, err)

	if !trace.Success {
		switch {
		case err != nil:
			trace.Metadata["error"] = err.Error()
		case result != nil:
			trace.Metadata["error"] = result.Error
		default:
			trace.Metadata["error"] = "no result returned"
		}
		execution.Error = trace.Metadata["error"]

		// Categorize error for reflexion
		errorType := categorizeError(trace.Metadata["error"])
		trace.Metadata["error_type"] = errorType
		trace.Metadata["prevention"] = generatePrevention(call.Name, errorType)
	}

	session.AddTrace(trace)
	log.Infof("[REACT TRACE] %s", trace.String())

	if !trace.Success {
		return core.NewToolMessage(call.ID, execution.Error, true), execution
	}

	execution.Result = result.Data
	resultBytes, mErr := json.Marshal(result.Data)
	if mErr != nil {
		return core.NewToolMessage(call.ID, fmt.Sprintf("could not encode tool result: %v", mErr), true), execution
	}
	return core.NewToolMessage(call.ID, string(resultBytes), false), execution
}

// record runs the memory recording phases after a completed run.
func (e *Engine) record(ctx context.Context, session *Session, userMessage, response string) {
	if e.memory == nil {
		return
	}

	// === PHASE 5: RECORD TRACES ===
	if len(session.Traces) > 0 {
		log.Debugf("[MEMORY] Recording %d traces", len(session.Traces))
		if err := e.memory.RecordTraces(ctx, session.UserID, session.Traces); err != nil {
			log.Warnf("[MEMORY] Failed to record traces: %v", err)
		}
	}

	// === PHASE 5b: RECORD CONVERSATION ===
	if userMessage != "" && response != "" {
		if err := e.memory.RecordConversation(ctx, session.UserID, userMessage, response); err != nil {
			log.Warnf("[MEMORY] Failed to record conversation: %v", err)
		}
	}
}

// formatObservation handles observation formatting with fallback
func formatObservation(tool core.Tool, result *core.ToolResult, err error) string {
	// Try custom formatter first (optional interface)
	type ObservationFormatter interface {
		FormatObservation(result *core.ToolResult, err error) string
	}
	if formatter, ok := tool.(ObservationFormatter); ok {
		return formatter.FormatObservation(result, err)
	}

	if err != nil {
		return fmt.Sprintf("Error: %s", err.Error())
	}
	if result == nil {
		return "No result returned"
	}
	if !result.Success {
		return fmt.Sprintf("Failed: %s", result.Error)
	}

	// Format success based on data type
	switch v := result.Data.(type) {
	case map[string]interface{}:
		if msg, ok := v["message"].(string); ok {
			return msg
		}
		if status, ok := v["status"].(string); ok {
			return fmt.Sprintf("Success: %s", status)
		}
		bytes, _ := json.Marshal(v)
		return string(bytes)
	case string:
		return v
	default:
		return fmt.Sprintf("Success: %v", v)
	}
}

// categorizeError maps error messages to error types for reflexion
func categorizeError(errMsg string) string {
	if errMsg == "" {
		return "unknown"
	}

	errLower := strings.ToLower(errMsg)

	switch {
	case strings.Contains(errLower, "not found"), strings.Contains(errLower, "does not exist"):
		return "not_found"
	case strings.Contains(errLower, "invalid"), strings.Contains(errLower, "malformed"),
		strings.Contains(errLower, "required"), strings.Contains(errLower, "cannot provide"):
		return "invalid_input"
	case strings.Contains(errLower, "unauthorized"), strings.Contains(errLower, "forbidden"):
		return "permission_denied"
	case strings.Contains(errLower, "timeout"), strings.Contains(errLower, "deadline"):
		return "timeout"
	case strings.Contains(errLower, "rate limit"), strings.Contains(errLower, "too many"):
		return "rate_limit"
	case strings.Contains(errLower, "network"), strings.Contains(errLower, "connection"):
		return "network_error"
	default:
		return "unknown"
	}
}

// generatePrevention suggests how to avoid this error in the future
func generatePrevention(action, errorType string) string {
	preventionMap := map[string]string{
		"manage_memory:not_found":     "Search memories with search_memory to find the right ID before updating or deleting",
		"manage_memory:invalid_input": "Provide content when creating or updating, and the memory ID when updating or deleting",
		"search_memory:invalid_input": "Use a non-negative limit and offset",
		"draft_email:invalid_input":   "Provide recipient, subject and body when drafting",
	}

	key := action + ":" + errorType
	if prevention, ok := preventionMap[key]; ok {
		return prevention
	}

	// Generic prevention by error type
	switch errorType {
	case "not_found":
		return "Verify the entity exists before referencing it"
	case "invalid_input":
		return "Validate input parameters before submission"
	case "rate_limit":
		return "Implement retry with backoff"
	case "timeout":
		return "Retry operation with timeout handling"
	default:
		return "Review error message and adjust approach accordingly"
	}
}
