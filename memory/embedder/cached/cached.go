// Package cached memoizes embeddings in a ristretto cache so repeated texts
// (memory content re-indexed on update, repeated queries) skip the embedder.
package cached

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
	log "github.com/sirupsen/logrus"

	"github.com/becomeliminal/nim-memory/memory"
)

// Config holds cache configuration.
type Config struct {
	// MaxCost is the cache budget in bytes of vector data.
	// Default: 64 MiB
	MaxCost int64

	// NumCounters tracks access frequency; ~10x the expected item count.
	// Default: 100000
	NumCounters int64
}

// DefaultConfig returns sensible defaults.
var DefaultConfig = &Config{
	MaxCost:     64 << 20,
	NumCounters: 100_000,
}

// Embedder wraps another embedder with a cache keyed by text.
type Embedder struct {
	inner memory.Embedder
	cache *ristretto.Cache
}

var _ memory.Embedder = (*Embedder)(nil)

// New wraps inner with a cache.
func New(inner memory.Embedder, config *Config) (*Embedder, error) {
	if config == nil {
		config = DefaultConfig
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: config.NumCounters,
		MaxCost:     config.MaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Embedder{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector for text or computes and caches it.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		if vec, ok := v.([]float32); ok {
			return append([]float32(nil), vec...), nil
		}
	}

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	stored := append([]float32(nil), vec...)
	if !e.cache.Set(text, stored, int64(4*len(stored))) {
		log.Debugf("[EMBED CACHE] Dropped set for %d-char text", len(text))
	}
	return vec, nil
}

// Dimensions returns the wrapped embedder's vector size.
func (e *Embedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Wait blocks until buffered sets are applied.
func (e *Embedder) Wait() {
	e.cache.Wait()
}

// Close stops the cache's background goroutines.
func (e *Embedder) Close() {
	e.cache.Close()
}
