package scenario

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"

	"github.com/becomeliminal/nim-memory/core"
	"github.com/becomeliminal/nim-memory/engine"
	"github.com/becomeliminal/nim-memory/memory"
)

// Agent is what a script runs against.
type Agent struct {
	Engine *engine.Engine
	Store  memory.Store
}

// BuildFunc constructs a fresh agent.
type BuildFunc func(ctx context.Context) (*Agent, error)

// Runner replays a script through agents built by Build, printing every
// reply to Out.
type Runner struct {
	Build  BuildFunc
	Out    io.Writer
	UserID string

	agent *Agent
}

// NewRunner creates a runner writing to stdout.
func NewRunner(build BuildFunc, userID string) *Runner {
	return &Runner{Build: build, Out: os.Stdout, UserID: userID}
}

// Agent returns the current agent, building one if needed.
func (r *Runner) Agent(ctx context.Context) (*Agent, error) {
	if r.agent == nil {
		agent, err := r.Build(ctx)
		if err != nil {
			return nil, fmt.Errorf("build agent: %w", err)
		}
		r.agent = agent
	}
	return r.agent, nil
}

// Run runs every section of the script in order.
func (r *Runner) Run(ctx context.Context, script *Script) error {
	for _, sec := range script.Sections {
		if err := r.RunSection(ctx, script, sec); err != nil {
			return err
		}
	}
	return nil
}

// RunSection runs one section: optional fresh agent, steps, completion line
// and namespace dump.
func (r *Runner) RunSection(ctx context.Context, script *Script, sec Section) error {
	if sec.Fresh {
		r.agent = nil
	}
	agent, err := r.Agent(ctx)
	if err != nil {
		return err
	}

	if sec.Title != "" {
		fmt.Fprintf(r.Out, "\n%s\n", sec.Title)
	}
	for i, step := range sec.Steps {
		if i > 0 {
			fmt.Fprintln(r.Out)
		}
		if err := r.RunStep(ctx, agent, step); err != nil {
			return err
		}
	}
	if sec.Done != "" {
		fmt.Fprintf(r.Out, "\n%s\n", sec.Done)
	}
	if sec.Dump != "" {
		r.Dump(ctx, agent.Store, script.NamespaceValue(), sec.Dump)
	}
	return nil
}

// RunStep sends one message and prints the reply.
func (r *Runner) RunStep(ctx context.Context, agent *Agent, step Step) error {
	if step.Label != "" {
		fmt.Fprintln(r.Out, step.Label)
	}

	text, err := r.Send(ctx, agent, step.Message)
	if err != nil {
		if step.OnError != "" {
			fmt.Fprintf(r.Out, "%s: %v\n", step.OnError, err)
			return nil
		}
		return err
	}
	fmt.Fprintf(r.Out, "Response: %s\n", text)
	return nil
}

// Send runs the agent on a single message with no history.
func (r *Runner) Send(ctx context.Context, agent *Agent, message string) (string, error) {
	out, err := agent.Engine.Run(ctx, &engine.Input{
		UserMessage: message,
		Context:     &core.Context{UserID: r.UserID},
	})
	if err != nil {
		return "", err
	}
	if out.Error != nil {
		return "", out.Error
	}
	log.Debugf("[SCENARIO] %d tools used, %d input / %d output tokens",
		len(out.ToolsUsed), out.TokensUsed.InputTokens, out.TokensUsed.OutputTokens)
	return out.Text, nil
}

// Dump prints the items stored under ns.
func (r *Runner) Dump(ctx context.Context, store memory.Store, ns memory.Namespace, title string) {
	fmt.Fprintf(r.Out, "\n%s\n", title)
	items, err := store.Search(ctx, ns, memory.SearchOptions{})
	if err != nil {
		fmt.Fprintf(r.Out, "  Could not retrieve stored items: %v\n", err)
		return
	}
	for _, item := range items {
		value, err := json.Marshal(item.Value)
		if err != nil {
			fmt.Fprintf(r.Out, "  - %v\n", item.Value)
			continue
		}
		fmt.Fprintf(r.Out, "  - %s\n", value)
	}
}
