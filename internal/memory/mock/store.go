package mock

import (
	"context"
	"sort"
	"sync"

	"github.com/bakkerme/social-agent/internal/memory"
)

// Store is an in-memory memory.Store.
type Store struct {
	// GetErr and CreateErr force failures.
	GetErr    error
	CreateErr error

	mu      sync.Mutex
	records map[string]memory.Record
	creates []memory.Record
}

func (s *Store) CreateMemory(ctx context.Context, record memory.Record) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateErr != nil {
		return s.CreateErr
	}
	if s.records == nil {
		s.records = map[string]memory.Record{}
	}
	s.creates = append(s.creates, record)
	if _, ok := s.records[record.ID]; !ok {
		s.records[record.ID] = record
	}
	return nil
}

func (s *Store) GetMemoryByID(ctx context.Context, id string) (*memory.Record, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	record, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

func (s *Store) RecentMemories(ctx context.Context, kind memory.Kind, limit int) ([]memory.Record, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []memory.Record
	for _, record := range s.records {
		if record.Kind == kind {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Close() error { return nil }

// Creates returns every CreateMemory call, including duplicates.
func (s *Store) Creates() []memory.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]memory.Record(nil), s.creates...)
}

// Seed stores records without recording them as creates.
func (s *Store) Seed(records ...memory.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records == nil {
		s.records = map[string]memory.Record{}
	}
	for _, record := range records {
		s.records[record.ID] = record
	}
}
