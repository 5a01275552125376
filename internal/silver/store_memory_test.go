package silver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"encore/internal/domain"
	"encore/pkg/sentinel"
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

func (s *MemoryStoreSuite) TestUpsert() {
	first := domain.TypedRecord{
		ExternalID:       "v-1",
		Fields:           domain.TypedFields{"name": "Red Rocks", "city": "Morrison"},
		SourceRawVersion: 1,
		ProcessedAt:      time.Now().UTC(),
	}
	s.Require().NoError(s.store.Upsert(s.ctx, "venues", first))

	s.Run("find returns the stored row", func() {
		rec, err := s.store.Find(s.ctx, "venues", "v-1")
		s.Require().NoError(err)
		s.Equal("Red Rocks", rec.Fields["name"])
		s.Equal(1, rec.SourceRawVersion)
	})

	s.Run("second upsert overwrites every field", func() {
		second := first
		second.Fields = domain.TypedFields{"name": "Red Rocks Amphitheatre", "city": ""}
		second.SourceRawVersion = 2
		s.Require().NoError(s.store.Upsert(s.ctx, "venues", second))

		rec, err := s.store.Find(s.ctx, "venues", "v-1")
		s.Require().NoError(err)
		s.Equal("Red Rocks Amphitheatre", rec.Fields["name"])
		s.Equal("", rec.Fields["city"], "last write wins even when a field empties")
		s.Equal(2, rec.SourceRawVersion)
	})

	s.Run("upsert count tracks writes", func() {
		s.Equal(2, s.store.UpsertCount())
	})
}

func (s *MemoryStoreSuite) TestFindMissing() {
	_, err := s.store.Find(s.ctx, "venues", "nope")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestListExternalIDs() {
	for _, id := range []string{"b", "a"} {
		rec := domain.TypedRecord{ExternalID: id, Fields: domain.TypedFields{}}
		s.Require().NoError(s.store.Upsert(s.ctx, "songs", rec))
	}
	ids, err := s.store.ListExternalIDs(s.ctx, "songs")
	s.Require().NoError(err)
	s.Equal([]string{"a", "b"}, ids)
}
