package repository

import (
	"context"
	"sort"
	"sync"

	"campus-locator/internal/models"
)

// MemoryStore keeps documents in process. Used for local development and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Fields
	subs        map[string]map[int]*memorySub
	nextSub     int
}

type memorySub struct {
	filter   Filter
	onChange func([]Document)
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]Fields),
		subs:        make(map[string]map[int]*memorySub),
	}
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fields, ok := s.collections[collection][id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &Document{ID: id, Fields: merge(nil, fields)}, nil
}

func (s *MemoryStore) Set(ctx context.Context, collection, id string, fields Fields, mergeFields bool) error {
	normalized, err := normalize(fields)
	if err != nil {
		return err
	}

	s.mu.Lock()
	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]Fields)
		s.collections[collection] = docs
	}
	if existing, ok := docs[id]; ok && mergeFields {
		docs[id] = merge(existing, normalized)
	} else {
		docs[id] = normalized
	}
	s.mu.Unlock()

	s.notify(collection)
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields Fields) error {
	normalized, err := normalize(fields)
	if err != nil {
		return err
	}

	s.mu.Lock()
	existing, ok := s.collections[collection][id]
	if !ok {
		s.mu.Unlock()
		return models.ErrNotFound
	}
	s.collections[collection][id] = merge(existing, normalized)
	s.mu.Unlock()

	s.notify(collection)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	_, ok := s.collections[collection][id]
	delete(s.collections[collection], id)
	s.mu.Unlock()

	if ok {
		s.notify(collection)
	}
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, collection string, filter Filter) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.query(collection, filter), nil
}

func (s *MemoryStore) query(collection string, filter Filter) []Document {
	var docs []Document
	for id, fields := range s.collections[collection] {
		if matches(fields, filter) {
			docs = append(docs, Document{ID: id, Fields: merge(nil, fields)})
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs
}

func (s *MemoryStore) Subscribe(ctx context.Context, collection string, filter Filter, onChange func([]Document)) (func(), error) {
	s.mu.Lock()
	if s.subs[collection] == nil {
		s.subs[collection] = make(map[int]*memorySub)
	}
	id := s.nextSub
	s.nextSub++
	s.subs[collection][id] = &memorySub{filter: filter, onChange: onChange}
	snapshot := s.query(collection, filter)
	s.mu.Unlock()

	onChange(snapshot)

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs[collection], id)
			s.mu.Unlock()
		})
	}
	go func() {
		<-ctx.Done()
		unsubscribe()
	}()
	return unsubscribe, nil
}

// notify runs outside the lock so callbacks may read the store
func (s *MemoryStore) notify(collection string) {
	s.mu.RLock()
	type delivery struct {
		onChange func([]Document)
		docs     []Document
	}
	var deliveries []delivery
	for _, sub := range s.subs[collection] {
		deliveries = append(deliveries, delivery{sub.onChange, s.query(collection, sub.filter)})
	}
	s.mu.RUnlock()

	for _, d := range deliveries {
		d.onChange(d.docs)
	}
}
