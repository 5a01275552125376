package audit

import (
	"context"
	"sync"

	"encore/internal/domain"
)

// MemoryStore keeps audit rows in memory for unit tests.
type MemoryStore struct {
	mu     sync.RWMutex
	runs   []domain.ProcessingAudit
	errors []domain.ErrorLogEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) AppendRun(_ context.Context, run domain.ProcessingAudit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

func (s *MemoryStore) ListRuns(_ context.Context, limit int) ([]domain.ProcessingAudit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ProcessingAudit, 0, len(s.runs))
	for i := len(s.runs) - 1; i >= 0; i-- {
		out = append(out, s.runs[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) AppendError(_ context.Context, entry domain.ErrorLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, entry)
	return nil
}

func (s *MemoryStore) ListErrors(_ context.Context, entity string, limit int) ([]domain.ErrorLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ErrorLogEntry, 0, len(s.errors))
	for i := len(s.errors) - 1; i >= 0; i-- {
		if entity != "" && s.errors[i].Entity != entity {
			continue
		}
		out = append(out, s.errors[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
