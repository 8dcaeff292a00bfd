package store

import (
	"context"
	"fmt"
	"sync"

	"certledger/internal/certificate/models"
	"certledger/pkg/platform/sentinel"
)

// Error Contract:
// - Insert returns sentinel.ErrAlreadyUsed when the key is taken
// - FindByKey returns sentinel.ErrNotFound when the key is unknown
// - ListByStudentName returns an empty slice, never ErrNotFound

// InMemoryStore keeps certificate records in memory for tests and local runs.
type InMemoryStore struct {
	mu     sync.RWMutex
	byKey  map[string]*models.Record
	byName map[string][]string
}

// NewInMemoryStore constructs an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byKey:  make(map[string]*models.Record),
		byName: make(map[string][]string),
	}
}

// Insert adds record if its key is free. The check and the write happen under
// one lock so concurrent inserts of the same key admit exactly one winner.
func (s *InMemoryStore) Insert(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byKey[record.Key]; ok {
		return fmt.Errorf("certificate %s: %w", record.Key, sentinel.ErrAlreadyUsed)
	}
	stored := *record
	s.byKey[record.Key] = &stored
	s.byName[record.StudentName] = append(s.byName[record.StudentName], record.Key)
	return nil
}

func (s *InMemoryStore) FindByKey(_ context.Context, key string) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.byKey[key]; ok {
		out := *r
		return &out, nil
	}
	return nil, sentinel.ErrNotFound
}

// ListByStudentName returns records in insertion order.
func (s *InMemoryStore) ListByStudentName(_ context.Context, name string) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := s.byName[name]
	out := make([]*models.Record, 0, len(keys))
	for _, k := range keys {
		r := *s.byKey[k]
		out = append(out, &r)
	}
	return out, nil
}

// Health always succeeds.
func (s *InMemoryStore) Health(context.Context) error {
	return nil
}
