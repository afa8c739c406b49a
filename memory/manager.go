package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/becomeliminal/nim-memory/core"
)

// SimpleManager is the SDK-provided Manager implementation.
// It keeps episodic memory in one namespace (a template such as
// ("episodes", "{user_id}") is resolved per call).
//
// Features:
//   - Vector similarity retrieval with a minimum score
//   - Trace filtering (only traces worth learning from are stored)
//   - Optional conversation recording
type SimpleManager struct {
	store     Store
	namespace Namespace
	config    *Config
}

// NewSimpleManager creates a new SimpleManager.
func NewSimpleManager(store Store, namespace Namespace, config *Config) *SimpleManager {
	if config == nil {
		config = DefaultConfig
	}
	return &SimpleManager{
		store:     store,
		namespace: namespace,
		config:    config,
	}
}

// Namespace returns the (possibly templated) namespace the manager writes to.
func (m *SimpleManager) Namespace() Namespace {
	return m.namespace
}

// Retrieve finds relevant memories and returns formatted string.
func (m *SimpleManager) Retrieve(ctx context.Context, userID string, userMessage string) (string, error) {
	if !m.config.Enabled {
		return "", nil
	}

	ns, err := m.namespace.Resolve(userID)
	if err != nil {
		return "", err
	}

	items, err := m.store.Search(ctx, ns, SearchOptions{
		Query: userMessage,
		Limit: m.config.RetrieveLimit,
	})
	if err != nil {
		return "", fmt.Errorf("search store: %w", err)
	}

	var relevant []*Item
	for _, item := range items {
		if item.Score != nil && *item.Score < m.config.MinSimilarity {
			continue
		}
		relevant = append(relevant, item)
	}

	log.Infof("[MEMORY] Retrieved %d memories (%d above threshold) for query: %q",
		len(items), len(relevant), truncateLog(userMessage, 50))
	if len(relevant) == 0 {
		return "", nil
	}

	return m.formatMemories(relevant, userID, userMessage), nil
}

// RecordTraces stores the traces worth keeping as episodes.
func (m *SimpleManager) RecordTraces(ctx context.Context, userID string, traces []*core.Trace) error {
	if !m.config.Enabled {
		return nil
	}

	storable := m.filterStorableTraces(traces)
	if len(storable) == 0 {
		log.Debugf("[MEMORY] No traces worth storing (filtered out)")
		return nil
	}

	ns, err := m.namespace.Resolve(userID)
	if err != nil {
		return err
	}

	log.Infof("[MEMORY] Recording %d traces (filtered from %d)", len(storable), len(traces))

	for i, trace := range storable {
		ep := NewTraceEpisode(trace)
		if err := m.store.Put(ctx, ns, uuid.New().String(), ep.Value()); err != nil {
			log.Warnf("[MEMORY] Failed to store trace #%d: %v", i+1, err)
			continue
		}
		log.Debugf("[MEMORY]   Stored trace #%d: action=%s", i+1, trace.Action)
	}

	return nil
}

// RecordConversation stores a non-trivial exchange when enabled in config.
func (m *SimpleManager) RecordConversation(ctx context.Context, userID string, userMessage string, assistantResponse string) error {
	if !m.config.Enabled || !m.config.RecordConversations {
		return nil
	}
	if isTrivialExchange(userMessage, assistantResponse) {
		log.Debugf("[MEMORY] Skipping trivial exchange: %q", truncateLog(userMessage, 30))
		return nil
	}

	ns, err := m.namespace.Resolve(userID)
	if err != nil {
		return err
	}

	ep := NewConversationEpisode(userMessage, assistantResponse)
	if err := m.store.Put(ctx, ns, uuid.New().String(), ep.Value()); err != nil {
		return fmt.Errorf("store conversation: %w", err)
	}
	log.Infof("[MEMORY] Recorded exchange: %q", truncateLog(userMessage, 50))
	return nil
}

// formatMemories formats retrieved memories into a structured string.
func (m *SimpleManager) formatMemories(items []*Item, userID string, query string) string {
	var parts []string
	parts = append(parts, "=== RELEVANT MEMORIES ===\n")

	maxLengthPerMemory := 2000 / len(items)
	if maxLengthPerMemory < 100 {
		maxLengthPerMemory = 100
	}

	for i, item := range items {
		formatted := EpisodeFromItem(item).Format(FormatContext{
			UserID:    userID,
			Query:     query,
			MaxLength: maxLengthPerMemory,
		})
		parts = append(parts, fmt.Sprintf("%d. %s\n", i+1, formatted))
	}

	return strings.Join(parts, "\n")
}

// filterStorableTraces selects traces worth storing.
func (m *SimpleManager) filterStorableTraces(traces []*core.Trace) []*core.Trace {
	// Multi-step runs are stored whole (both successes and failures)
	if len(traces) > 1 {
		return traces
	}
	if len(traces) == 0 {
		return nil
	}

	trace := traces[0]

	// Failures are kept for learning
	if !trace.Success {
		return traces
	}

	for _, action := range m.config.ContextualActions {
		if trace.Action == action {
			return traces
		}
	}

	// Substantive thoughts (>30 chars) indicate reasoning worth recalling
	if len(trace.Thought) > 30 {
		return traces
	}

	return nil
}

// isTrivialExchange filters greetings and empty turns.
func isTrivialExchange(userMessage, assistantResponse string) bool {
	if strings.TrimSpace(userMessage) == "" || strings.TrimSpace(assistantResponse) == "" {
		return true
	}
	switch strings.ToLower(strings.Trim(strings.TrimSpace(userMessage), "!.?")) {
	case "hi", "hello", "hey", "thanks", "thank you", "ok", "okay", "bye":
		return true
	}
	return false
}

// truncateLog truncates text for logging.
func truncateLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return cutUTF8(s, maxLen) + "..."
}

// Config holds SimpleManager configuration.
type Config struct {
	// Enabled toggles memory system on/off.
	// Default: false (opt-in).
	Enabled bool

	// MinSimilarity is the minimum similarity for retrieval [0.0-1.0].
	// Default: 0.3
	// Note: all-MiniLM-L6-v2 scores ~0.35 for similar text; text-embedding-3-small
	// tends to land in 0.3-0.6 for related sentences.
	MinSimilarity float64

	// RetrieveLimit caps memories injected per run.
	// Default: 10
	RetrieveLimit int

	// RecordConversations stores user/assistant exchanges, not just traces.
	// Default: false
	RecordConversations bool

	// ContextualActions lists tools whose single successful call is still
	// worth remembering.
	// Default: manage_memory, search_memory
	ContextualActions []string
}

// DefaultConfig returns sensible defaults.
var DefaultConfig = &Config{
	Enabled:           false, // Opt-in
	MinSimilarity:     0.3,
	RetrieveLimit:     10,
	ContextualActions: []string{"manage_memory", "search_memory"},
}
