package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/oboroge0/AITuberFlow-sub001/pkg/domain"
)

// Store implements ports.GraphStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]domain.Graph
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store, optionally seeded with graphs.
func NewStore(graphs ...domain.Graph) *Store {
	s := &Store{
		data: make(map[string]domain.Graph, len(graphs)),
	}
	for _, g := range graphs {
		s.data[g.ID] = g.Clone()
	}
	return s
}

// Save stores a copy of g so later edits by the caller do not leak in.
func (s *Store) Save(_ context.Context, g domain.Graph) error {
	if g.ID == "" {
		return fmt.Errorf("graph missing ID")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[g.ID] = g.Clone()
	return nil
}

// Load returns a copy of the stored graph.
func (s *Store) Load(_ context.Context, id string) (domain.Graph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.data[id]
	if !ok {
		return domain.Graph{}, fmt.Errorf("graph %q: %w", id, domain.ErrGraphNotFound)
	}
	return g.Clone(), nil
}

// Delete removes the graph.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

// List returns graph IDs in sorted order.
func (s *Store) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Strings(ids) // Deterministic order
	return ids, nil
}
