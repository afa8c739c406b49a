package setup

import (
	"context"
	"fmt"

	"github.com/becomeliminal/nim-memory/core"
	"github.com/becomeliminal/nim-memory/engine"
	"github.com/becomeliminal/nim-memory/llm"
	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/scenario"
	"github.com/becomeliminal/nim-memory/tools"
)

// AgentOptions controls what MemoryAgent wires in.
type AgentOptions struct {
	// Manager, when set, enables automatic retrieval and recording.
	Manager *memory.Config

	// ManagerNamespace is where the manager records episodes. Defaults to
	// the memory tools' namespace.
	ManagerNamespace memory.Namespace

	// Prompt overrides the default system prompt.
	Prompt memory.PromptSource

	// ExtraTools are registered after the memory tools.
	ExtraTools []core.Tool

	// NoMemoryTools leaves manage_memory and search_memory out.
	NoMemoryTools bool
}

// Agents builds engines over one model client. Each agent gets its own
// store; the embedder is shared.
type Agents struct {
	Config   *Config
	Client   llm.Client
	Embedder memory.Embedder

	release func()
}

// NewAgents builds the shared client and embedder.
func NewAgents(cfg *Config) (*Agents, error) {
	client, err := cfg.LLM()
	if err != nil {
		return nil, err
	}
	emb, release, err := cfg.NewEmbedder()
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	return &Agents{Config: cfg, Client: client, Embedder: emb, release: release}, nil
}

// Close releases the embedder.
func (a *Agents) Close() {
	if a.release != nil {
		a.release()
	}
}

// MemoryAgent builds an engine with memory tools bound to ns on a fresh store.
func (a *Agents) MemoryAgent(ns memory.Namespace, opts AgentOptions) (*scenario.Agent, error) {
	store, err := NewStore(a.Embedder)
	if err != nil {
		return nil, err
	}
	return a.AgentOn(store, ns, opts)
}

// AgentOn builds an engine over an existing store.
func (a *Agents) AgentOn(store memory.Store, ns memory.Namespace, opts AgentOptions) (*scenario.Agent, error) {
	var ts []core.Tool
	if !opts.NoMemoryTools {
		ts = append(ts,
			tools.NewManageMemoryTool(store, ns),
			tools.NewSearchMemoryTool(store, ns),
		)
	}
	ts = append(ts, opts.ExtraTools...)

	registry, err := engine.NewToolRegistry(ts...)
	if err != nil {
		return nil, err
	}

	engineOpts := []engine.Option{
		engine.WithModel(a.Config.Model),
		engine.WithTemperature(Temperature),
	}
	if opts.Manager != nil {
		managerNS := opts.ManagerNamespace
		if len(managerNS) == 0 {
			managerNS = ns
		}
		engineOpts = append(engineOpts, engine.WithMemory(memory.NewSimpleManager(store, managerNS, opts.Manager)))
	}
	if opts.Prompt != nil {
		engineOpts = append(engineOpts, engine.WithPrompt(opts.Prompt))
	}

	return &scenario.Agent{
		Engine: engine.NewEngine(a.Client, registry, engineOpts...),
		Store:  store,
	}, nil
}

// Builder returns a scenario.BuildFunc producing fresh memory agents.
func (a *Agents) Builder(ns memory.Namespace, opts AgentOptions) scenario.BuildFunc {
	return func(ctx context.Context) (*scenario.Agent, error) {
		return a.MemoryAgent(ns, opts)
	}
}
