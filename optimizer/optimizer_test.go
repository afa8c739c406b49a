package optimizer_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-memory/core"
	"github.com/becomeliminal/nim-memory/llm/llmtest"
	"github.com/becomeliminal/nim-memory/optimizer"
)

const feedback = "Always sign emails 'Best regards, William' and offer video call options for meetings"

func emailTrajectory() []optimizer.Trajectory {
	return []optimizer.Trajectory{{
		Messages: []core.Message{
			core.NewUserMessage("Draft email to john@company.com about meeting tomorrow at 2pm"),
			core.NewAssistantMessage("Subject: Meeting Tomorrow at 2pm\n\nHi John,\n\nBest regards,\nWilliam"),
			core.NewUserMessage(feedback),
		},
		Feedback: feedback,
	}}
}

func TestAppend(t *testing.T) {
	ctx := context.Background()
	prompt := "Write professional emails."

	for _, fb := range []string{
		"Always use formal language",
		"Include meeting agenda in meeting emails",
		"Use bullet points for action items",
		"Always confirm receipt of important documents",
	} {
		next, err := optimizer.Append{}.Optimize(ctx, prompt, []optimizer.Trajectory{{Feedback: fb}})
		require.NoError(t, err)
		assert.NotEqual(t, prompt, next)
		prompt = next
	}

	assert.Equal(t, "Write professional emails. Always use formal language. Include meeting agenda in meeting emails. "+
		"Use bullet points for action items. Always confirm receipt of important documents.", prompt)

	// Feedback already present is not repeated
	same, err := optimizer.Append{}.Optimize(ctx, prompt, []optimizer.Trajectory{{Feedback: "always use formal language"}})
	require.NoError(t, err)
	assert.Equal(t, prompt, same)

	_, err = optimizer.Append{}.Optimize(ctx, "", nil)
	assert.ErrorIs(t, err, optimizer.ErrEmptyPrompt)
}

func TestMetaprompt(t *testing.T) {
	client := llmtest.New(llmtest.Text("```json\n" + `{
  "analysis": "The prompt lacks a signature and video call guidance.",
  "improved_prompt": "Write professional emails. Sign every email 'Best regards, William'. When proposing meetings, offer Zoom or Google Meet options."
}` + "\n```"))

	out, err := optimizer.NewMetaprompt(client, "gpt-4o-mini").Optimize(context.Background(), "Write professional emails.", emailTrajectory())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Write professional emails."))
	assert.Contains(t, out, "Best regards, William")

	req := client.Requests()[0]
	assert.True(t, req.JSONMode)
	assert.Equal(t, "gpt-4o-mini", req.Model)
	require.Len(t, req.Messages, 1)
	assert.Contains(t, req.Messages[0].Content, "<current_prompt>\nWrite professional emails.\n</current_prompt>")
	assert.Contains(t, req.Messages[0].Content, "<feedback>"+feedback+"</feedback>")
}

func TestMetaprompt_Errors(t *testing.T) {
	ctx := context.Background()

	client := llmtest.New(llmtest.Text("I think you should add a signature."))
	_, err := optimizer.NewMetaprompt(client, "").Optimize(ctx, "Write professional emails.", emailTrajectory())
	assert.Error(t, err)

	client = llmtest.New(llmtest.Text(`{"analysis":"nothing to do","improved_prompt":""}`))
	_, err = optimizer.NewMetaprompt(client, "").Optimize(ctx, "Write professional emails.", emailTrajectory())
	assert.ErrorIs(t, err, optimizer.ErrEmptyPrompt)

	client = llmtest.New()
	client.FailNext(errors.New("insufficient_quota"))
	_, err = optimizer.NewMetaprompt(client, "").Optimize(ctx, "Write professional emails.", emailTrajectory())
	assert.ErrorContains(t, err, "insufficient_quota")

	// Nothing to learn from
	out, err := optimizer.NewMetaprompt(llmtest.New(), "").Optimize(ctx, "Write professional emails.", nil)
	require.NoError(t, err)
	assert.Equal(t, "Write professional emails.", out)
}

func TestParseResult(t *testing.T) {
	result, err := optimizer.ParseResult(`Here you go: {"analysis":"a","improved_prompt":"b"} Hope this helps`)
	require.NoError(t, err)
	assert.Equal(t, "b", result.ImprovedPrompt)
}

func TestWithFallback(t *testing.T) {
	ctx := context.Background()
	prompt := "Write professional emails."
	fixed := optimizer.Func(func(ctx context.Context, prompt string, _ []optimizer.Trajectory) (string, error) {
		return prompt + " Always sign 'Best regards, William' and offer Zoom/Google Meet options for meetings.", nil
	})

	failing := llmtest.New()
	failing.FailNext(errors.New("network error"))

	unchanged := optimizer.Func(func(ctx context.Context, prompt string, _ []optimizer.Trajectory) (string, error) {
		return prompt, nil
	})

	for name, primary := range map[string]optimizer.Optimizer{
		"error":     optimizer.NewMetaprompt(failing, ""),
		"unchanged": unchanged,
	} {
		t.Run(name, func(t *testing.T) {
			out, err := optimizer.WithFallback(primary, fixed).Optimize(ctx, prompt, emailTrajectory())
			require.NoError(t, err)
			assert.Equal(t, "Write professional emails. Always sign 'Best regards, William' and offer Zoom/Google Meet options for meetings.", out)
		})
	}

	// A working primary wins
	good := llmtest.New(llmtest.Text(`{"analysis":"x","improved_prompt":"Write warm, professional emails."}`))
	out, err := optimizer.WithFallback(optimizer.NewMetaprompt(good, ""), fixed).Optimize(ctx, prompt, emailTrajectory())
	require.NoError(t, err)
	assert.Equal(t, "Write warm, professional emails.", out)

	// Feedback implying a change always yields a different, non-empty prompt
	out, err = optimizer.WithFallback(unchanged, optimizer.Append{}).Optimize(ctx, prompt, emailTrajectory())
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.NotEqual(t, prompt, out)
}
