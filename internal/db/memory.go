package db

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/ukydev/fleet-manager/internal/errs"
)

// MemoryStore is an in-process DocumentStore used for local runs and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]interface{}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]map[string]interface{})}
}

// Put stores a document under an explicit id, replacing any previous one.
func (s *MemoryStore) Put(collection, id string, fields map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(collection, id, fields)
}

func (s *MemoryStore) put(collection, id string, fields map[string]interface{}) {
	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]map[string]interface{})
		s.collections[collection] = coll
	}
	coll[id] = normalizeMap(fields)
}

// Query returns documents of collection matching every filter, ordered by id.
func (s *MemoryStore) Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Unavailable("query", collection, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll := s.collections[collection]
	ids := make([]string, 0, len(coll))
	for id := range coll {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	docs := []Document{}
	for _, id := range ids {
		fields := coll[id]
		if matches(fields, filters) {
			docs = append(docs, Document{ID: id, Fields: Fields(normalizeMap(fields))})
		}
	}
	return docs, nil
}

// Get finds a document by id.
func (s *MemoryStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Unavailable("get", collection, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	fields, ok := s.collections[collection][id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, errs.ErrNotFound)
	}
	return &Document{ID: id, Fields: Fields(normalizeMap(fields))}, nil
}

// Update sets fields on an existing document.
func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return errs.Unavailable("update", collection, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.collections[collection][id]
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, errs.ErrNotFound)
	}
	for k, v := range fields {
		existing[k] = Normalize(v)
	}
	return nil
}

// Create stores a document under a generated UUID.
func (s *MemoryStore) Create(ctx context.Context, collection string, fields map[string]interface{}) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errs.Unavailable("create", collection, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.put(collection, id, fields)
	return id, nil
}

func matches(fields map[string]interface{}, filters []Filter) bool {
	for _, f := range filters {
		if !reflect.DeepEqual(fields[f.Field], Normalize(f.Value)) {
			return false
		}
	}
	return true
}
