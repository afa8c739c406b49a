// Package setup builds the model client, embedder and store the example
// programs share, from environment variables and an optional .env file.
package setup

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/becomeliminal/nim-memory/llm"
	"github.com/becomeliminal/nim-memory/llm/anthropic"
	llmopenai "github.com/becomeliminal/nim-memory/llm/openai"
	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/embedder/cached"
	"github.com/becomeliminal/nim-memory/memory/embedder/mock"
	embedopenai "github.com/becomeliminal/nim-memory/memory/embedder/openai"
	"github.com/becomeliminal/nim-memory/memory/store/chromem"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	EmbedderOpenAI = "openai"
	EmbedderMock   = "mock"
)

// Temperature matches the sampling temperature of the example agents.
const Temperature = 0.7

// UserID is the user every example speaks as.
const UserID = "user123"

// Config holds the environment-derived settings.
type Config struct {
	Provider     string
	Model        string
	OpenAIKey    string
	AnthropicKey string
	OpenAIBase   string
	Embedder     string
	LogLevel     string
	Timeout      time.Duration
}

// EmbedderFactory builds an embedder and returns a cleanup func.
type EmbedderFactory func(cfg *Config) (memory.Embedder, func(), error)

// embedders maps EMBEDDER values to constructors. Build-tagged files add to it.
var embedders = map[string]EmbedderFactory{
	EmbedderOpenAI: openaiEmbedder,
	EmbedderMock: func(*Config) (memory.Embedder, func(), error) {
		return mock.New(), func() {}, nil
	},
}

// FromEnv reads the configuration from the process environment.
func FromEnv() *Config {
	cfg := &Config{
		Provider:     strings.ToLower(getenv("LLM_PROVIDER", ProviderOpenAI)),
		Model:        os.Getenv("LLM_MODEL"),
		OpenAIKey:    os.Getenv("OPENAI_API_KEY"),
		AnthropicKey: os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIBase:   os.Getenv("OPENAI_BASE_URL"),
		Embedder:     strings.ToLower(getenv("EMBEDDER", EmbedderOpenAI)),
		LogLevel:     getenv("LOG_LEVEL", "warning"),
		Timeout:      2 * time.Minute,
	}
	if cfg.Model == "" {
		switch cfg.Provider {
		case ProviderAnthropic:
			cfg.Model = anthropic.DefaultModel
		default:
			cfg.Model = llmopenai.DefaultModel
		}
	}
	return cfg
}

// Load reads .env when present, then the environment, and configures logging.
func Load() *Config {
	_ = godotenv.Load()
	cfg := FromEnv()
	ConfigureLogging(cfg.LogLevel)
	return cfg
}

// ConfigureLogging sets the logrus level, falling back to warning.
func ConfigureLogging(level string) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.WarnLevel
	}
	log.SetLevel(lvl)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stderr)
}

// MissingKey returns the name of the first required API key that is unset.
func (c *Config) MissingKey() string {
	if c.Provider == ProviderAnthropic {
		if c.AnthropicKey == "" {
			return "ANTHROPIC_API_KEY"
		}
	} else if c.OpenAIKey == "" {
		return "OPENAI_API_KEY"
	}
	if c.Embedder == EmbedderOpenAI && c.OpenAIKey == "" {
		return "OPENAI_API_KEY"
	}
	return ""
}

// Validate checks provider and embedder names and required keys.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.Provider)
	}
	if _, ok := embedders[c.Embedder]; !ok {
		return fmt.Errorf("unknown EMBEDDER %q", c.Embedder)
	}
	if key := c.MissingKey(); key != "" {
		return fmt.Errorf("%s environment variable not set", key)
	}
	return nil
}

// LLM builds the chat client for the configured provider.
func (c *Config) LLM() (llm.Client, error) {
	switch c.Provider {
	case ProviderOpenAI:
		return llmopenai.New(c.OpenAIKey, c.OpenAIBase, c.Timeout), nil
	case ProviderAnthropic:
		return anthropic.New(c.AnthropicKey), nil
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", c.Provider)
	}
}

// NewEmbedder builds the configured embedder. The returned func releases it.
func (c *Config) NewEmbedder() (memory.Embedder, func(), error) {
	factory, ok := embedders[c.Embedder]
	if !ok {
		return nil, nil, fmt.Errorf("unknown EMBEDDER %q", c.Embedder)
	}
	return factory(c)
}

// NewStore builds an in-process vector store on embedder.
func NewStore(embedder memory.Embedder) (*chromem.Store, error) {
	return chromem.New(embedder, chromem.DefaultConfig)
}

func openaiEmbedder(cfg *Config) (memory.Embedder, func(), error) {
	inner := embedopenai.NewFromAPIKey(cfg.OpenAIKey)
	emb, err := cached.New(inner, cached.DefaultConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("embedding cache: %w", err)
	}
	return emb, emb.Close, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// PrintMissingKey writes the guidance shown when an API key is not set.
func PrintMissingKey(w io.Writer, key string) {
	fmt.Fprintf(w, "❌ Error: %s environment variable not set!\n", key)
	if key == "OPENAI_API_KEY" {
		fmt.Fprintln(w, "Please set your OpenAI API key:")
	} else {
		fmt.Fprintln(w, "Please set your Anthropic API key:")
	}
	fmt.Fprintf(w, "export %s='your-api-key-here'\n", key)
}

// PrintFailure writes the message shown when a demonstration fails.
func PrintFailure(w io.Writer, err error) {
	fmt.Fprintf(w, "❌ Error occurred: %v\n", err)
	fmt.Fprintln(w, "Make sure you have a valid OpenAI API key and sufficient credits.")
}

// Run loads the configuration, checks keys and runs fn, returning the
// process exit code.
func Run(w io.Writer, fn func(ctx context.Context, cfg *Config) error) int {
	cfg := Load()
	if key := cfg.MissingKey(); key != "" {
		PrintMissingKey(w, key)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		PrintFailure(w, err)
		return 1
	}
	if err := fn(context.Background(), cfg); err != nil {
		PrintFailure(w, err)
		return 1
	}
	return 0
}

// Main runs fn and exits the process with its status.
func Main(fn func(ctx context.Context, cfg *Config) error) {
	os.Exit(Run(os.Stdout, fn))
}
