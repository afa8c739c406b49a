package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

// PromptField is the value field holding procedural instructions.
const PromptField = "prompt"

// Instructions is procedural memory: the agent's instructions live in the
// store and are rendered into the system prompt on every run.
type Instructions struct {
	store     Store
	namespace Namespace
	key       string
	fallback  string
}

// NewInstructions creates a prompt source reading (namespace, key).
// fallback is used when nothing has been stored yet.
func NewInstructions(store Store, namespace Namespace, key, fallback string) *Instructions {
	return &Instructions{
		store:     store,
		namespace: namespace,
		key:       key,
		fallback:  fallback,
	}
}

// Current returns the stored instructions, or the fallback when missing.
func (in *Instructions) Current(ctx context.Context) (string, error) {
	item, err := in.store.Get(ctx, in.namespace, in.key)
	if errors.Is(err, ErrNotFound) {
		return in.fallback, nil
	}
	if err != nil {
		return in.fallback, err
	}
	prompt, _ := item.Value[PromptField].(string)
	if strings.TrimSpace(prompt) == "" {
		return in.fallback, nil
	}
	return prompt, nil
}

// SystemPrompt implements PromptSource. Store errors fall back to the default.
func (in *Instructions) SystemPrompt(ctx context.Context) (string, error) {
	prompt, err := in.Current(ctx)
	if err != nil {
		log.Warnf("[MEMORY] Reading instructions %s/%s failed, using default: %v", in.namespace, in.key, err)
	}
	return fmt.Sprintf("Instructions: %s", prompt), nil
}

// Update replaces the stored instructions.
func (in *Instructions) Update(ctx context.Context, prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return errors.New("instructions prompt is empty")
	}
	if err := in.store.Put(ctx, in.namespace, in.key, map[string]interface{}{PromptField: prompt}, WithoutIndex()); err != nil {
		return fmt.Errorf("update instructions: %w", err)
	}
	log.Infof("[MEMORY] Updated instructions %s/%s", in.namespace, in.key)
	return nil
}
