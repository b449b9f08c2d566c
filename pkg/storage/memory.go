package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/HatiCode/demandcast/pkg/frame"
)

// MemoryStore keeps tables and reports in process memory. It is used for dry
// runs and tests. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	tables  map[string]*frame.Table
	order   []string
	reports []Report
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]*frame.Table)}
}

func (s *MemoryStore) PutTable(name string, t *frame.Table) error {
	if t == nil {
		return fmt.Errorf("put %s: nil table", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[name]; !ok {
		s.order = append(s.order, name)
	}
	s.tables[name] = t
	return nil
}

func (s *MemoryStore) GetTable(_ context.Context, name string) (*frame.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return t, nil
}

func (s *MemoryStore) PutReport(r Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
	return nil
}

// Tables returns the stored table names in first-write order.
func (s *MemoryStore) Tables() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Reports returns every stored report.
func (s *MemoryStore) Reports() []Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Report(nil), s.reports...)
}
