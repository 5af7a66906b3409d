package store

import (
	"errors"
	"sync"
)

//MemoryStore keeps records in process memory
type MemoryStore struct {
	mu         sync.RWMutex
	records    map[string]*Record
	order      []string
	maxRecords int
}

//NewMemoryStore returns an empty store holding at most maxRecords records (0 == unbounded)
func NewMemoryStore(maxRecords int) *MemoryStore {
	if maxRecords < 0 {
		maxRecords = 0
	}

	return &MemoryStore{
		records:    make(map[string]*Record),
		order:      make([]string, 0),
		maxRecords: maxRecords,
	}
}

func (s *MemoryStore) Put(rec *Record) error {
	if rec == nil || rec.MatchID == "" {
		return errors.New("MemoryStore.Put: record without match ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.MatchID]; !ok {
		s.order = append(s.order, rec.MatchID)
	}
	s.records[rec.MatchID] = rec

	for s.maxRecords > 0 && len(s.order) > s.maxRecords {
		delete(s.records, s.order[0])
		s.order = s.order[1:]
	}

	return nil
}

func (s *MemoryStore) Get(id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.records[id], nil
}

func (s *MemoryStore) List() ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id])
	}

	return out, nil
}

func (s *MemoryStore) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.order), nil
}

func (s *MemoryStore) Close() error {
	return nil
}
