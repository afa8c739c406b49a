// Package optimizer revises agent instructions from conversation feedback.
//
// Optimizers take the current prompt and a set of trajectories (a
// conversation plus the feedback it received) and return an improved prompt.
// Metaprompt asks a model to do the rewrite; Append is a deterministic
// fallback; WithFallback chains the two.
package optimizer

import (
	"context"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/becomeliminal/nim-memory/core"
)

// ErrEmptyPrompt is returned when an optimizer produces no prompt.
var ErrEmptyPrompt = errors.New("optimizer returned an empty prompt")

// Trajectory is a conversation and the feedback it received.
type Trajectory struct {
	Messages []core.Message
	Feedback string
}

// Optimizer improves a prompt from trajectories.
type Optimizer interface {
	Optimize(ctx context.Context, prompt string, trajectories []Trajectory) (string, error)
}

// Func adapts a function to the Optimizer interface.
type Func func(ctx context.Context, prompt string, trajectories []Trajectory) (string, error)

// Optimize calls f.
func (f Func) Optimize(ctx context.Context, prompt string, trajectories []Trajectory) (string, error) {
	return f(ctx, prompt, trajectories)
}

// Append appends each trajectory's feedback to the prompt as a sentence,
// skipping feedback the prompt already contains.
type Append struct{}

// Optimize implements Optimizer.
func (Append) Optimize(ctx context.Context, prompt string, trajectories []Trajectory) (string, error) {
	out := strings.TrimSpace(prompt)
	for _, t := range trajectories {
		sentence := sentence(t.Feedback)
		if sentence == "" || strings.Contains(strings.ToLower(out), strings.ToLower(strings.TrimSuffix(sentence, "."))) {
			continue
		}
		if out == "" {
			out = sentence
			continue
		}
		out = ensurePeriod(out) + " " + sentence
	}
	if out == "" {
		return "", ErrEmptyPrompt
	}
	return out, nil
}

// fallback uses a secondary optimizer when the primary fails.
type fallback struct {
	primary   Optimizer
	secondary Optimizer
}

// WithFallback returns an optimizer that tries primary first and uses
// secondary when primary errors, or returns an empty or unchanged prompt
// even though feedback was given.
func WithFallback(primary, secondary Optimizer) Optimizer {
	return &fallback{primary: primary, secondary: secondary}
}

// Optimize implements Optimizer.
func (f *fallback) Optimize(ctx context.Context, prompt string, trajectories []Trajectory) (string, error) {
	improved, err := f.primary.Optimize(ctx, prompt, trajectories)
	switch {
	case err != nil:
		log.Warnf("[OPTIMIZER] Primary optimizer failed, using fallback: %v", err)
	case strings.TrimSpace(improved) == "":
		log.Warnf("[OPTIMIZER] Primary optimizer returned an empty prompt, using fallback")
	case hasFeedback(trajectories) && strings.TrimSpace(improved) == strings.TrimSpace(prompt):
		log.Warnf("[OPTIMIZER] Primary optimizer left the prompt unchanged, using fallback")
	default:
		return improved, nil
	}
	return f.secondary.Optimize(ctx, prompt, trajectories)
}

func hasFeedback(trajectories []Trajectory) bool {
	for _, t := range trajectories {
		if strings.TrimSpace(t.Feedback) != "" {
			return true
		}
	}
	return false
}

// sentence trims feedback and terminates it with a period.
func sentence(feedback string) string {
	s := strings.TrimSpace(feedback)
	if s == "" {
		return ""
	}
	return ensurePeriod(s)
}

func ensurePeriod(s string) string {
	if strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?") {
		return s
	}
	return s + "."
}
