package optimizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"

	"github.com/becomeliminal/nim-memory/core"
	"github.com/becomeliminal/nim-memory/llm"
)

const metapromptSystem = `You are a prompt engineer. You improve the instructions given to an AI assistant based on how it performed and the feedback it received. You output JSON only.`

const metapromptTemplate = `Below is the current prompt of an AI assistant, followed by example conversations and the feedback each one received.

<current_prompt>
%s
</current_prompt>

<trajectories>
%s
</trajectories>

Analyze what the feedback asks for that the current prompt does not already say. Then write an improved prompt that keeps everything still relevant from the current prompt and adds concise, general instructions covering the feedback. Do not mention the specific conversations.

Output Format:
{
  "analysis": "What the feedback requires and what is missing from the prompt",
  "improved_prompt": "The complete improved prompt"
}`

// MetapromptResult is the model's structured answer.
type MetapromptResult struct {
	Analysis       string `json:"analysis"`
	ImprovedPrompt string `json:"improved_prompt"`
}

// Metaprompt asks a model to reflect on the trajectories and rewrite the prompt.
type Metaprompt struct {
	client llm.Client
	model  string
}

// NewMetaprompt creates a metaprompt optimizer. An empty model uses the
// client's default.
func NewMetaprompt(client llm.Client, model string) *Metaprompt {
	return &Metaprompt{client: client, model: model}
}

// Optimize implements Optimizer.
func (m *Metaprompt) Optimize(ctx context.Context, prompt string, trajectories []Trajectory) (string, error) {
	if len(trajectories) == 0 {
		return prompt, nil
	}

	resp, err := m.client.Complete(ctx, &llm.Request{
		Model:  m.model,
		System: metapromptSystem,
		Messages: []core.Message{
			core.NewUserMessage(fmt.Sprintf(metapromptTemplate, prompt, formatTrajectories(trajectories))),
		},
		Temperature: llm.Temperature(0), // Deterministic output
		JSONMode:    true,
	})
	if err != nil {
		return "", fmt.Errorf("metaprompt optimization failed: %w", err)
	}

	result, err := ParseResult(resp.Text)
	if err != nil {
		return "", err
	}
	log.Debugf("[OPTIMIZER] Analysis: %s", result.Analysis)

	improved := strings.TrimSpace(result.ImprovedPrompt)
	if improved == "" {
		return "", ErrEmptyPrompt
	}
	return improved, nil
}

// ParseResult decodes the model output, tolerating code fences and prose
// around the JSON object.
func ParseResult(text string) (*MetapromptResult, error) {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	if start, end := strings.Index(s, "{"), strings.LastIndex(s, "}"); start >= 0 && end > start {
		s = s[start : end+1]
	}

	var result MetapromptResult
	if err := json.Unmarshal([]byte(s), &result); err != nil {
		return nil, fmt.Errorf("failed to parse optimizer result: %w", err)
	}
	return &result, nil
}

// formatTrajectories renders trajectories for the metaprompt.
func formatTrajectories(trajectories []Trajectory) string {
	var b strings.Builder
	for i, t := range trajectories {
		fmt.Fprintf(&b, "<trajectory %d>\n", i+1)
		for _, msg := range t.Messages {
			fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
		}
		if t.Feedback != "" {
			fmt.Fprintf(&b, "<feedback>%s</feedback>\n", t.Feedback)
		}
		fmt.Fprintf(&b, "</trajectory %d>\n", i+1)
	}
	return b.String()
}
