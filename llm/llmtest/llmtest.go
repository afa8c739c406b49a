// Package llmtest provides a scripted llm.Client for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"github.com/becomeliminal/nim-memory/llm"
)

// ErrExhausted is returned when the script has no responses left.
var ErrExhausted = errors.New("llmtest: no scripted responses left")

// Client replays scripted responses in order and records every request.
type Client struct {
	mu        sync.Mutex
	responses []*llm.Response
	errs      []error
	requests  []*llm.Request

	// CompleteFunc, when set, replaces the script entirely.
	CompleteFunc func(ctx context.Context, req *llm.Request) (*llm.Response, error)
}

// New creates a Client that returns the given responses in order.
func New(responses ...*llm.Response) *Client {
	return &Client{responses: responses}
}

// FailNext makes the next call return err instead of a response.
func (c *Client) FailNext(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, err)
}

// Complete implements llm.Client.
func (c *Client) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	fn := c.CompleteFunc
	c.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.errs) > 0 {
		err := c.errs[0]
		c.errs = c.errs[1:]
		return nil, err
	}
	if len(c.responses) == 0 {
		return nil, ErrExhausted
	}
	resp := c.responses[0]
	c.responses = c.responses[1:]
	return resp, nil
}

// Requests returns the requests received so far.
func (c *Client) Requests() []*llm.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*llm.Request, len(c.requests))
	copy(out, c.requests)
	return out
}

// Text builds a final text response.
func Text(text string) *llm.Response {
	return &llm.Response{Text: text, StopReason: "end_turn"}
}
