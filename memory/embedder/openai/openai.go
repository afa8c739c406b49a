// Package openai embeds text with the OpenAI embeddings API.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = openai.SmallEmbedding3

// DefaultDimensions is the native size of text-embedding-3-small.
const DefaultDimensions = 1536

// Embedder calls the OpenAI embeddings endpoint.
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

// Option configures an Embedder.
type Option func(*Embedder)

// WithModel sets the embedding model.
func WithModel(model openai.EmbeddingModel) Option {
	return func(e *Embedder) {
		e.model = model
	}
}

// WithDimensions requests shortened embeddings (text-embedding-3 models only).
func WithDimensions(dimensions int) Option {
	return func(e *Embedder) {
		e.dimensions = dimensions
	}
}

// New creates an embedder from an existing go-openai client.
func New(client *openai.Client, opts ...Option) *Embedder {
	e := &Embedder{
		client:     client,
		model:      DefaultModel,
		dimensions: DefaultDimensions,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewFromAPIKey creates an embedder with a fresh client.
func NewFromAPIKey(apiKey string, opts ...Option) *Embedder {
	return New(openai.NewClient(apiKey), opts...)
}

// Embed converts a single text to embedding vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	req := openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.model,
	}
	if e.dimensions != DefaultDimensions {
		req.Dimensions = e.dimensions
	}

	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding returned from OpenAI API")
	}
	return resp.Data[0].Embedding, nil
}

// Dimensions returns embedding vector size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}
