package silver

import (
	"context"
	"sort"
	"sync"

	"encore/internal/domain"
	"encore/pkg/sentinel"
)

// MemoryStore keeps typed rows in process memory for unit tests.
type MemoryStore struct {
	mu      sync.RWMutex
	tables  map[string]map[string]domain.TypedRecord
	upserts int
	failure error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]map[string]domain.TypedRecord)}
}

// FailWith makes every subsequent call return err. Test hook for
// engine-level store failure paths.
func (s *MemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = err
}

// UpsertCount reports how many upserts have been applied. Tests use it to
// assert transform idempotence: a second run must add zero.
func (s *MemoryStore) UpsertCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.upserts
}

func (s *MemoryStore) Upsert(_ context.Context, entity string, rec domain.TypedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	t, ok := s.tables[entity]
	if !ok {
		t = make(map[string]domain.TypedRecord)
		s.tables[entity] = t
	}
	rec.Fields = copyFields(rec.Fields)
	t[rec.ExternalID] = rec
	s.upserts++
	return nil
}

func (s *MemoryStore) Find(_ context.Context, entity, externalID string) (domain.TypedRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failure != nil {
		return domain.TypedRecord{}, s.failure
	}
	rec, ok := s.tables[entity][externalID]
	if !ok {
		return domain.TypedRecord{}, sentinel.ErrNotFound
	}
	rec.Fields = copyFields(rec.Fields)
	return rec, nil
}

func (s *MemoryStore) ListExternalIDs(_ context.Context, entity string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failure != nil {
		return nil, s.failure
	}
	ids := make([]string, 0, len(s.tables[entity]))
	for id := range s.tables[entity] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// copyFields is a shallow copy; mapper outputs are scalar-valued.
func copyFields(fields domain.TypedFields) domain.TypedFields {
	if fields == nil {
		return nil
	}
	out := make(domain.TypedFields, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
