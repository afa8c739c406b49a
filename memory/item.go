package memory

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Store.Get when no item exists at (namespace, key).
var ErrNotFound = errors.New("memory item not found")

// ContentField is the value field memory tools write text to. Stores index it
// by default.
const ContentField = "content"

// Item is a stored memory: a free-form value under a namespace and key.
type Item struct {
	Namespace Namespace              `json:"namespace"`
	Key       string                 `json:"key"`
	Value     map[string]interface{} `json:"value"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`

	// Score is the similarity to the search query. Nil outside query searches.
	Score *float64 `json:"score,omitempty"`
}

// Content returns the item's text content, if any.
func (i *Item) Content() string {
	s, _ := i.Value[ContentField].(string)
	return s
}

// SearchOptions controls Store.Search.
type SearchOptions struct {
	// Query enables similarity ranking. Empty lists items in insertion order.
	Query string

	// Filter requires exact equality on top-level value fields.
	Filter map[string]interface{}

	// Limit caps results (default 10). Offset skips leading results.
	Limit  int
	Offset int
}

// DefaultSearchLimit is used when SearchOptions.Limit is zero.
const DefaultSearchLimit = 10

// PutOptions controls Store.Put.
type PutOptions struct {
	// NoIndex stores the item without embedding it. It can still be fetched
	// with Get and listed, but never matches a similarity query.
	NoIndex bool
}

// PutOption configures a Put call.
type PutOption func(*PutOptions)

// WithoutIndex skips embedding for this item.
func WithoutIndex() PutOption {
	return func(o *PutOptions) {
		o.NoIndex = true
	}
}

// Store is the (namespace, key) storage backend with similarity search.
// Implementations: chromem.Store.
type Store interface {
	// Put creates or replaces the item at (ns, key).
	Put(ctx context.Context, ns Namespace, key string, value map[string]interface{}, opts ...PutOption) error

	// Get returns the item at (ns, key) or ErrNotFound.
	Get(ctx context.Context, ns Namespace, key string) (*Item, error)

	// Search returns items whose namespace starts with nsPrefix.
	Search(ctx context.Context, nsPrefix Namespace, opts SearchOptions) ([]*Item, error)

	// Delete removes the item at (ns, key). Missing items are ignored.
	Delete(ctx context.Context, ns Namespace, key string) error

	// ListNamespaces returns the namespaces starting with prefix, sorted.
	ListNamespaces(ctx context.Context, prefix Namespace) ([]Namespace, error)

	// Close releases resources.
	Close() error
}

// Embedder converts text to vector embeddings.
// Implementations: mock (testing), openai (default), onnx (offline).
type Embedder interface {
	// Embed converts a single text to embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns embedding vector size.
	Dimensions() int
}
