// Package inmemory implements the vector store in process memory, for tests
// and local development.
package inmemory

import (
	"context"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Anas-2357/CodeSage/similarity"
	"github.com/Anas-2357/CodeSage/vectorstore"
)

// DefaultCapacity bounds the number of records held per namespace.
const DefaultCapacity = 100_000

// MemoryStore implements vectorstore.Store with one LRU-capped record set per
// namespace.
type MemoryStore struct {
	mu         sync.RWMutex
	namespaces map[string]*lru.Cache[string, vectorstore.Record]
	capacity   int
	compare    similarity.Func
}

// NewMemoryStore creates an in-memory store ranking queries by cosine
// similarity. A capacity <= 0 uses DefaultCapacity.
func NewMemoryStore(capacity int) *MemoryStore {
	return NewMemoryStoreWithSimilarity(capacity, similarity.Cosine)
}

// NewMemoryStoreWithSimilarity creates an in-memory store ranking queries
// with the given function. A nil compare uses cosine similarity.
func NewMemoryStoreWithSimilarity(capacity int, compare similarity.Func) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if compare == nil {
		compare = similarity.Cosine
	}
	return &MemoryStore{
		namespaces: make(map[string]*lru.Cache[string, vectorstore.Record]),
		capacity:   capacity,
		compare:    compare,
	}
}

// namespace returns the record set for a namespace, creating it on first use.
func (s *MemoryStore) namespace(name string) (*lru.Cache[string, vectorstore.Record], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cache, ok := s.namespaces[name]; ok {
		return cache, nil
	}
	cache, err := lru.New[string, vectorstore.Record](s.capacity)
	if err != nil {
		return nil, err
	}
	s.namespaces[name] = cache
	return cache, nil
}

// Upsert stores records in the namespace.
func (s *MemoryStore) Upsert(ctx context.Context, namespace string, records []vectorstore.Record) error {
	cache, err := s.namespace(namespace)
	if err != nil {
		return err
	}
	for _, rec := range records {
		cache.Add(rec.ID, rec)
	}
	return nil
}

// Query ranks every record in the namespace against vector and returns the
// topK best matches.
func (s *MemoryStore) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]vectorstore.Match, error) {
	s.mu.RLock()
	cache, ok := s.namespaces[namespace]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	keys := cache.Keys()
	matches := make([]vectorstore.Match, 0, len(keys))
	for _, key := range keys {
		rec, ok := cache.Peek(key)
		if !ok {
			continue
		}
		matches = append(matches, vectorstore.Match{
			ID:       rec.ID,
			Score:    s.compare(vector, rec.Values),
			Metadata: rec.Metadata,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// DeleteNamespace drops the namespace's record set.
func (s *MemoryStore) DeleteNamespace(ctx context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.namespaces, namespace)
	return nil
}

// Len returns the number of records in a namespace.
func (s *MemoryStore) Len(namespace string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cache, ok := s.namespaces[namespace]; ok {
		return cache.Len()
	}
	return 0
}

// Ping always succeeds for the in-memory store.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close releases all namespaces.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.namespaces = make(map[string]*lru.Cache[string, vectorstore.Record])
	return nil
}
