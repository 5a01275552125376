package bronze

import (
	"context"
	"sort"
	"sync"
	"time"

	"encore/internal/domain"
	"encore/pkg/sentinel"
)

// MemoryStore keeps raw records in process memory. It backs unit tests and
// mirrors the PostgreSQL store's semantics exactly, including version
// guarding on MarkProcessed.
type MemoryStore struct {
	mu      sync.RWMutex
	tables  map[string]map[string]*domain.RawRecord
	nextID  int64
	now     func() time.Time
	failure error // when set, every call fails; simulates an unreachable store
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables: make(map[string]map[string]*domain.RawRecord),
		now:    time.Now,
	}
}

// FailWith makes every subsequent call return err. Test hook for
// engine-level store failure paths.
func (s *MemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = err
}

func (s *MemoryStore) table(entity string) map[string]*domain.RawRecord {
	t, ok := s.tables[entity]
	if !ok {
		t = make(map[string]*domain.RawRecord)
		s.tables[entity] = t
	}
	return t
}

func (s *MemoryStore) Find(_ context.Context, entity, externalID string) (domain.RawRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failure != nil {
		return domain.RawRecord{}, s.failure
	}
	rec, ok := s.tables[entity][externalID]
	if !ok {
		return domain.RawRecord{}, sentinel.ErrNotFound
	}
	return copyRecord(rec), nil
}

func (s *MemoryStore) Insert(_ context.Context, entity, externalID string, payload domain.Payload, sourceURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	t := s.table(entity)
	if _, exists := t[externalID]; exists {
		return sentinel.ErrConflict
	}
	s.nextID++
	now := s.now()
	t[externalID] = &domain.RawRecord{
		ID:         s.nextID,
		ExternalID: externalID,
		Payload:    payload.Clone(),
		SourceURL:  sourceURL,
		Version:    1,
		Processed:  false,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return nil
}

func (s *MemoryStore) UpdatePayload(_ context.Context, entity, externalID string, payload domain.Payload, sourceURL string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return 0, s.failure
	}
	rec, ok := s.tables[entity][externalID]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	rec.Payload = payload.Clone()
	rec.SourceURL = sourceURL
	rec.Version++
	rec.Processed = false
	rec.UpdatedAt = s.now()
	return rec.Version, nil
}

func (s *MemoryStore) ListUnprocessed(_ context.Context, entity string, limit int) ([]domain.RawRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failure != nil {
		return nil, s.failure
	}
	var out []domain.RawRecord
	for _, rec := range s.tables[entity] {
		if !rec.Processed {
			out = append(out, copyRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) MarkProcessed(_ context.Context, entity, externalID string, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	rec, ok := s.tables[entity][externalID]
	if !ok || rec.Version != version {
		return sentinel.ErrNotFound
	}
	rec.Processed = true
	return nil
}

func (s *MemoryStore) ResetProcessed(_ context.Context, entity string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return 0, s.failure
	}
	var n int64
	for _, rec := range s.tables[entity] {
		if rec.Processed {
			rec.Processed = false
			n++
		}
	}
	return n, nil
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

func copyRecord(rec *domain.RawRecord) domain.RawRecord {
	out := *rec
	out.Payload = rec.Payload.Clone()
	return out
}
