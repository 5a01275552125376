package audit

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"encore/internal/domain"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *MemoryStore
	ctx   context.Context
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewMemoryStore()
	s.ctx = context.Background()
}

func (s *MemoryStoreSuite) TestRuns() {
	for _, status := range []domain.RunStatus{domain.RunCompleted, domain.RunPartiallyFailed, domain.RunFailed} {
		row := domain.ProcessingAudit{ID: uuid.New(), Entity: "all", Status: status}
		s.Require().NoError(s.store.AppendRun(s.ctx, row))
	}

	s.Run("newest first", func() {
		runs, err := s.store.ListRuns(s.ctx, 0)
		s.Require().NoError(err)
		s.Require().Len(runs, 3)
		s.Equal(domain.RunFailed, runs[0].Status)
		s.Equal(domain.RunCompleted, runs[2].Status)
	})

	s.Run("limit caps the page", func() {
		runs, err := s.store.ListRuns(s.ctx, 2)
		s.Require().NoError(err)
		s.Len(runs, 2)
	})
}

func (s *MemoryStoreSuite) TestErrors() {
	entries := []domain.ErrorLogEntry{
		{ID: uuid.New(), Entity: "songs", ExternalID: "s-1", Message: "missing name"},
		{ID: uuid.New(), Entity: "venues", ExternalID: "v-1", Message: "missing venuename"},
		{ID: uuid.New(), Entity: "songs", ExternalID: "s-2", Message: "bad flag"},
	}
	for _, e := range entries {
		s.Require().NoError(s.store.AppendError(s.ctx, e))
	}

	s.Run("entity filter", func() {
		got, err := s.store.ListErrors(s.ctx, "songs", 0)
		s.Require().NoError(err)
		s.Require().Len(got, 2)
		s.Equal("s-2", got[0].ExternalID, "newest first")
	})

	s.Run("empty filter returns everything", func() {
		got, err := s.store.ListErrors(s.ctx, "", 0)
		s.Require().NoError(err)
		s.Len(got, 3)
	})
}
