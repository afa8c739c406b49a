package chromem

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	chromem "github.com/philippgille/chromem-go"
	log "github.com/sirupsen/logrus"

	"github.com/becomeliminal/nim-memory/memory"
)

// Config holds store configuration.
type Config struct {
	// IndexFields are the value fields whose text gets embedded.
	// Items with none of them embed the JSON of the whole value.
	// Default: ["content"]
	IndexFields []string
}

// DefaultConfig returns sensible defaults.
var DefaultConfig = &Config{
	IndexFields: []string{memory.ContentField},
}

// Store is an in-process memory.Store backed by chromem-go.
// chromem-go is a pure Go, embedded vector database.
//
// Items are kept in a map keyed by namespace and key; each namespace also gets
// a chromem collection holding the vectors of its indexed items.
type Store struct {
	db       *chromem.DB
	embedder memory.Embedder
	config   *Config

	mu         sync.RWMutex
	namespaces map[string]*namespaceData
	seq        uint64
}

type namespaceData struct {
	ns         memory.Namespace
	records    map[string]*record
	collection *chromem.Collection
}

type record struct {
	item    memory.Item
	seq     uint64
	indexed bool
}

var _ memory.Store = (*Store)(nil)

// New creates a new chromem-based store.
func New(embedder memory.Embedder, config *Config) (*Store, error) {
	if embedder == nil {
		return nil, errors.New("chromem store requires an embedder")
	}
	if config == nil {
		config = DefaultConfig
	}
	return &Store{
		db:         chromem.NewDB(),
		embedder:   embedder,
		config:     config,
		namespaces: make(map[string]*namespaceData),
	}, nil
}

// embedding adapts the embedder to chromem's embedding func.
func (s *Store) embedding() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.Embed(ctx, text)
	}
}

// namespaceFor returns the data for ns, creating it when missing.
// Caller must hold the write lock.
func (s *Store) namespaceFor(ns memory.Namespace) (*namespaceData, error) {
	name := ns.String()
	if data, ok := s.namespaces[name]; ok {
		return data, nil
	}

	col, err := s.db.GetOrCreateCollection(name, map[string]string{"namespace": name}, s.embedding())
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	data := &namespaceData{
		ns:         append(memory.Namespace(nil), ns...),
		records:    make(map[string]*record),
		collection: col,
	}
	s.namespaces[name] = data
	return data, nil
}

// Put creates or replaces the item at (ns, key).
func (s *Store) Put(ctx context.Context, ns memory.Namespace, key string, value map[string]interface{}, opts ...memory.PutOption) error {
	if err := ns.Validate(); err != nil {
		return err
	}
	if key == "" {
		return errors.New("memory key is empty")
	}

	var options memory.PutOptions
	for _, opt := range opts {
		opt(&options)
	}

	normalized, err := cloneValue(value)
	if err != nil {
		return fmt.Errorf("normalize value: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.namespaceFor(ns)
	if err != nil {
		return err
	}

	now := time.Now()
	rec, exists := data.records[key]
	if !exists {
		s.seq++
		rec = &record{seq: s.seq}
		rec.item.CreatedAt = now
	}

	if options.NoIndex {
		if rec.indexed {
			if err := data.collection.Delete(ctx, nil, nil, key); err != nil {
				return fmt.Errorf("delete document: %w", err)
			}
		}
	} else {
		text, err := s.indexText(normalized)
		if err != nil {
			return err
		}
		// AddDocument overwrites an existing document with the same ID.
		doc := chromem.Document{
			ID:       key,
			Content:  text,
			Metadata: metadata(normalized),
		}
		if err := data.collection.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("add document: %w", err)
		}
	}

	rec.item.Namespace = data.ns
	rec.item.Key = key
	rec.item.Value = normalized
	rec.item.UpdatedAt = now
	rec.indexed = !options.NoIndex
	data.records[key] = rec

	log.Debugf("[CHROMEM] Stored item: namespace=%s, key=%s, indexed=%t", ns, key, rec.indexed)
	return nil
}

// Get returns the item at (ns, key).
func (s *Store) Get(ctx context.Context, ns memory.Namespace, key string) (*memory.Item, error) {
	if err := ns.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.namespaces[ns.String()]
	if !ok {
		return nil, memory.ErrNotFound
	}
	rec, ok := data.records[key]
	if !ok {
		return nil, memory.ErrNotFound
	}
	return rec.copyItem(nil), nil
}

// Search returns items whose namespace starts with nsPrefix.
// With a query, indexed items are ranked by cosine similarity; otherwise all
// items are returned in insertion order.
func (s *Store) Search(ctx context.Context, nsPrefix memory.Namespace, opts memory.SearchOptions) ([]*memory.Item, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = memory.DefaultSearchLimit
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	filter, err := cloneValue(opts.Filter)
	if err != nil {
		return nil, fmt.Errorf("normalize filter: %w", err)
	}

	var queryEmbedding []float32
	if opts.Query != "" {
		queryEmbedding, err = s.embedder.Embed(ctx, opts.Query)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type hit struct {
		rec   *record
		score float64
	}
	var hits []hit

	for _, data := range s.namespaces {
		if !data.ns.HasPrefix(nsPrefix) {
			continue
		}

		if opts.Query == "" {
			for _, rec := range data.records {
				if matches(rec.item.Value, filter) {
					hits = append(hits, hit{rec: rec})
				}
			}
			continue
		}

		// chromem-go requires nResults <= collection size
		n := data.collection.Count()
		if n == 0 {
			continue
		}
		results, err := data.collection.QueryEmbedding(ctx, queryEmbedding, n, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("chromem query %s: %w", data.ns, err)
		}
		for _, result := range results {
			rec, ok := data.records[result.ID]
			if !ok || !rec.indexed || !matches(rec.item.Value, filter) {
				continue
			}
			hits = append(hits, hit{rec: rec, score: float64(result.Similarity)})
		}
	}

	if opts.Query == "" {
		sort.Slice(hits, func(i, j int) bool { return hits[i].rec.seq < hits[j].rec.seq })
	} else {
		sort.SliceStable(hits, func(i, j int) bool {
			if hits[i].score != hits[j].score {
				return hits[i].score > hits[j].score
			}
			return hits[i].rec.seq < hits[j].rec.seq
		})
	}

	if offset >= len(hits) {
		return []*memory.Item{}, nil
	}
	hits = hits[offset:]
	if len(hits) > limit {
		hits = hits[:limit]
	}

	items := make([]*memory.Item, 0, len(hits))
	for _, h := range hits {
		if opts.Query == "" {
			items = append(items, h.rec.copyItem(nil))
			continue
		}
		score := h.score
		items = append(items, h.rec.copyItem(&score))
	}

	log.Debugf("[CHROMEM] Search prefix=%s query=%q returned %d items", nsPrefix, opts.Query, len(items))
	return items, nil
}

// Delete removes the item at (ns, key). Missing items are ignored.
func (s *Store) Delete(ctx context.Context, ns memory.Namespace, key string) error {
	if err := ns.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.namespaces[ns.String()]
	if !ok {
		return nil
	}
	rec, ok := data.records[key]
	if !ok {
		return nil
	}
	if rec.indexed {
		if err := data.collection.Delete(ctx, nil, nil, key); err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
	}
	delete(data.records, key)

	log.Debugf("[CHROMEM] Deleted item: namespace=%s, key=%s", ns, key)
	return nil
}

// ListNamespaces returns namespaces holding at least one item, sorted.
func (s *Store) ListNamespaces(ctx context.Context, prefix memory.Namespace) ([]memory.Namespace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []memory.Namespace
	for _, data := range s.namespaces {
		if len(data.records) == 0 || !data.ns.HasPrefix(prefix) {
			continue
		}
		out = append(out, append(memory.Namespace(nil), data.ns...))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

// Close releases resources.
func (s *Store) Close() error {
	// chromem-go keeps everything in memory, nothing to close
	return nil
}

// indexText builds the text embedded for a value. When no index field has
// text, the whole value's JSON is embedded instead.
func (s *Store) indexText(value map[string]interface{}) (string, error) {
	var parts []string
	for _, field := range s.config.IndexFields {
		v, ok := value[field]
		if !ok {
			continue
		}
		if str, ok := v.(string); ok {
			if strings.TrimSpace(str) != "" {
				parts = append(parts, str)
			}
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("marshal field %s: %w", field, err)
		}
		parts = append(parts, string(b))
	}
	if len(parts) > 0 {
		return strings.Join(parts, "\n"), nil
	}

	b, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("marshal value: %w", err)
	}
	return string(b), nil
}

func (r *record) copyItem(score *float64) *memory.Item {
	item := r.item
	item.Namespace = append(memory.Namespace(nil), r.item.Namespace...)
	item.Value = make(map[string]interface{}, len(r.item.Value))
	for k, v := range r.item.Value {
		item.Value[k] = v
	}
	item.Score = score
	return &item
}

// cloneValue deep-copies a value through JSON so stored items never alias
// caller maps and numbers are always float64.
func cloneValue(value map[string]interface{}) (map[string]interface{}, error) {
	if value == nil {
		return map[string]interface{}{}, nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	out := make(map[string]interface{}, len(value))
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// metadata stringifies scalar top-level fields for chromem documents.
func metadata(value map[string]interface{}) map[string]string {
	md := make(map[string]string, len(value))
	for k, v := range value {
		switch val := v.(type) {
		case string:
			md[k] = val
		case bool, float64:
			md[k] = fmt.Sprint(val)
		}
	}
	return md
}

// matches reports whether every filter field equals the value's field.
func matches(value, filter map[string]interface{}) bool {
	for k, want := range filter {
		got, ok := value[k]
		if !ok {
			return false
		}
		wb, err1 := json.Marshal(want)
		gb, err2 := json.Marshal(got)
		if err1 != nil || err2 != nil || string(wb) != string(gb) {
			return false
		}
	}
	return true
}
