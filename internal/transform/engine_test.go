package transform

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"encore/internal/audit"
	"encore/internal/bronze"
	"encore/internal/domain"
	"encore/internal/entity"
	"encore/internal/platform/metrics"
	"encore/internal/silver"
	domainerrors "encore/pkg/domain-errors"
	"encore/pkg/sentinel"
)

type TransformEngineSuite struct {
	suite.Suite
	raw    *bronze.MemoryStore
	typed  *silver.MemoryStore
	audits *audit.MemoryStore
	engine *Engine
	venues *entity.Descriptor
	ctx    context.Context
}

func TestTransformEngineSuite(t *testing.T) {
	suite.Run(t, new(TransformEngineSuite))
}

func (s *TransformEngineSuite) SetupTest() {
	s.raw = bronze.NewMemoryStore()
	s.typed = silver.NewMemoryStore()
	s.audits = audit.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.engine = NewEngine(s.raw, s.typed, s.audits, logger, metrics.NewUnregistered(), 0)
	s.venues = entity.Venues()
	s.ctx = context.Background()
}

func (s *TransformEngineSuite) seedVenue(id, name string) {
	payload := domain.Payload{"venue_id": id, "venuename": name}
	s.Require().NoError(s.raw.Insert(s.ctx, "venues", id, payload, ""))
}

func (s *TransformEngineSuite) TestTransform() {
	s.seedVenue("v-1", "Red Rocks")
	s.seedVenue("v-2", "The Capitol Theatre")

	result, err := s.engine.Transform(s.ctx, s.venues, false)
	s.Require().NoError(err)
	s.Equal(2, result.ProcessedCount)
	s.Zero(result.ErrorCount)

	rec, err := s.typed.Find(s.ctx, "venues", "v-1")
	s.Require().NoError(err)
	s.Equal("Red Rocks", rec.Fields["name"])
	s.Equal(1, rec.SourceRawVersion)

	raw, err := s.raw.Find(s.ctx, "venues", "v-1")
	s.Require().NoError(err)
	s.True(raw.Processed)

	s.Run("second run with no new ingestion is a no-op", func() {
		before := s.typed.UpsertCount()
		result, err := s.engine.Transform(s.ctx, s.venues, false)
		s.Require().NoError(err)
		s.Zero(result.ProcessedCount)
		s.Equal(before, s.typed.UpsertCount())
	})
}

func (s *TransformEngineSuite) TestMappingFailureIsIsolated() {
	s.seedVenue("v-1", "Red Rocks")
	// venuename missing: the mapper rejects this payload.
	s.Require().NoError(s.raw.Insert(s.ctx, "venues", "v-bad", domain.Payload{"venue_id": "v-bad"}, ""))
	s.seedVenue("v-2", "The Capitol Theatre")

	result, err := s.engine.Transform(s.ctx, s.venues, false)
	s.Require().NoError(err, "per-record failures never abort the batch")
	s.Equal(2, result.ProcessedCount)
	s.Equal(1, result.ErrorCount)

	s.Run("failed record stays unprocessed for retry", func() {
		rec, err := s.raw.Find(s.ctx, "venues", "v-bad")
		s.Require().NoError(err)
		s.False(rec.Processed)
	})

	s.Run("failure lands in the error log with its payload", func() {
		entries, err := s.audits.ListErrors(s.ctx, "venues", 0)
		s.Require().NoError(err)
		s.Require().Len(entries, 1)
		s.Equal("v-bad", entries[0].ExternalID)
		s.Contains(entries[0].Message, "venuename")
		s.NotEmpty(entries[0].Payload)
	})

	s.Run("no silver row for the failed record", func() {
		_, err := s.typed.Find(s.ctx, "venues", "v-bad")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *TransformEngineSuite) TestForceReprocess() {
	s.seedVenue("v-1", "Red Rocks")
	_, err := s.engine.Transform(s.ctx, s.venues, false)
	s.Require().NoError(err)

	first, err := s.typed.Find(s.ctx, "venues", "v-1")
	s.Require().NoError(err)

	result, err := s.engine.Transform(s.ctx, s.venues, true)
	s.Require().NoError(err)
	s.Equal(1, result.ProcessedCount)

	second, err := s.typed.Find(s.ctx, "venues", "v-1")
	s.Require().NoError(err)
	s.Equal(first.Fields, second.Fields, "unchanged mapping logic reproduces identical rows")
	s.Equal(first.SourceRawVersion, second.SourceRawVersion, "force reprocess never touches versions")
}

func (s *TransformEngineSuite) TestStoreFailureAborts() {
	s.seedVenue("v-1", "Red Rocks")
	s.typed.FailWith(errors.New("connection refused"))

	_, err := s.engine.Transform(s.ctx, s.venues, false)
	s.Error(err)
	s.True(domainerrors.Is(err, domainerrors.CodeStore))

	rec, findErr := s.raw.Find(s.ctx, "venues", "v-1")
	s.Require().NoError(findErr)
	s.False(rec.Processed, "nothing is marked processed when the typed write fails")
}

func (s *TransformEngineSuite) TestBatchLimit() {
	for _, id := range []string{"v-1", "v-2", "v-3"} {
		s.seedVenue(id, "Venue "+id)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := NewEngine(s.raw, s.typed, s.audits, logger, metrics.NewUnregistered(), 2)

	result, err := engine.Transform(s.ctx, s.venues, false)
	s.Require().NoError(err)
	s.Equal(2, result.ProcessedCount, "the batch limit bounds one call")

	result, err = engine.Transform(s.ctx, s.venues, false)
	s.Require().NoError(err)
	s.Equal(1, result.ProcessedCount, "the next call drains the remainder")
}

func (s *TransformEngineSuite) TestCancellationStopsCleanly() {
	s.seedVenue("v-1", "Red Rocks")
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	result, err := s.engine.Transform(ctx, s.venues, false)
	s.Require().NoError(err, "cancellation is partial completion, not failure")
	s.Zero(result.ProcessedCount)
}

// versionBumpingStore simulates a concurrent re-ingest landing between the
// typed upsert and the processed-flag flip.
type versionBumpingStore struct {
	*silver.MemoryStore
	raw    *bronze.MemoryStore
	entity string
}

func (vs *versionBumpingStore) Upsert(ctx context.Context, entityName string, rec domain.TypedRecord) error {
	if err := vs.MemoryStore.Upsert(ctx, entityName, rec); err != nil {
		return err
	}
	newer := domain.Payload{"venue_id": rec.ExternalID, "venuename": "Renamed Mid-Flight"}
	_, err := vs.raw.UpdatePayload(ctx, vs.entity, rec.ExternalID, newer, "")
	return err
}

func (s *TransformEngineSuite) TestConcurrentVersionBumpIsTolerated() {
	s.seedVenue("v-1", "Red Rocks")
	typed := &versionBumpingStore{MemoryStore: silver.NewMemoryStore(), raw: s.raw, entity: "venues"}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := NewEngine(s.raw, typed, s.audits, logger, metrics.NewUnregistered(), 0)

	result, err := engine.Transform(s.ctx, s.venues, false)
	s.Require().NoError(err)
	s.Equal(1, result.ProcessedCount)

	rec, err := s.raw.Find(s.ctx, "venues", "v-1")
	s.Require().NoError(err)
	s.False(rec.Processed, "the newer version stays visible to the next run")
	s.Equal(2, rec.Version)
}
