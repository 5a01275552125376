package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"encore/internal/bronze"
	"encore/internal/domain"
	"encore/internal/entity"
	"encore/internal/platform/metrics"
	"encore/internal/runlock"
	domainerrors "encore/pkg/domain-errors"
)

// fakeSource serves canned payloads so tests control exactly what a fetch
// returns, including failures.
type fakeSource struct {
	payloads []domain.Payload
	url      string
	err      error
	calls    int
}

func (f *fakeSource) Fetch(_ context.Context, _ *entity.Descriptor, _ FetchOptions) ([]domain.Payload, string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.url, f.err
	}
	return f.payloads, f.url, nil
}

type IngestEngineSuite struct {
	suite.Suite
	source *fakeSource
	raw    *bronze.MemoryStore
	engine *Engine
	venues *entity.Descriptor
	ctx    context.Context
}

func TestIngestEngineSuite(t *testing.T) {
	suite.Run(t, new(IngestEngineSuite))
}

func (s *IngestEngineSuite) SetupTest() {
	s.source = &fakeSource{url: "https://src/venues.json"}
	s.raw = bronze.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.engine = NewEngine(s.source, s.raw, runlock.NewMemoryLocker(), logger, metrics.NewUnregistered())
	s.venues = entity.Venues()
	s.ctx = context.Background()
}

func (s *IngestEngineSuite) opts() FetchOptions {
	return FetchOptions{RowLimit: 100, Full: true}
}

func (s *IngestEngineSuite) TestFirstSighting() {
	s.source.payloads = []domain.Payload{
		{"venue_id": "v-1", "venuename": "Red Rocks"},
		{"venue_id": "v-2", "venuename": "The Capitol Theatre"},
	}

	result, err := s.engine.Ingest(s.ctx, s.venues, s.opts())
	s.Require().NoError(err)
	s.Equal(2, result.Fetched)
	s.Equal(2, result.Inserted)
	s.Zero(result.Updated)
	s.Zero(result.Unchanged)
	s.Empty(result.Errors)

	rec, err := s.raw.Find(s.ctx, "venues", "v-1")
	s.Require().NoError(err)
	s.Equal(1, rec.Version)
	s.Equal("https://src/venues.json", rec.SourceURL)
}

func (s *IngestEngineSuite) TestRefetchIsIdempotent() {
	s.source.payloads = []domain.Payload{{"venue_id": "v-1", "venuename": "Red Rocks"}}

	_, err := s.engine.Ingest(s.ctx, s.venues, s.opts())
	s.Require().NoError(err)
	s.Require().NoError(s.raw.MarkProcessed(s.ctx, "venues", "v-1", 1))

	result, err := s.engine.Ingest(s.ctx, s.venues, s.opts())
	s.Require().NoError(err)
	s.Equal(1, result.Unchanged)
	s.Zero(result.Inserted)
	s.Zero(result.Updated)

	rec, err := s.raw.Find(s.ctx, "venues", "v-1")
	s.Require().NoError(err)
	s.Equal(1, rec.Version, "identical content never bumps the version")
	s.True(rec.Processed, "identical content never resets the processed flag")
}

func (s *IngestEngineSuite) TestChangedContent() {
	s.source.payloads = []domain.Payload{{"venue_id": "v-1", "venuename": "Red Rocks", "capacity": float64(9525)}}
	_, err := s.engine.Ingest(s.ctx, s.venues, s.opts())
	s.Require().NoError(err)
	s.Require().NoError(s.raw.MarkProcessed(s.ctx, "venues", "v-1", 1))

	s.source.payloads = []domain.Payload{{"venue_id": "v-1", "venuename": "Red Rocks", "capacity": float64(9545)}}
	result, err := s.engine.Ingest(s.ctx, s.venues, s.opts())
	s.Require().NoError(err)
	s.Equal(1, result.Updated)

	rec, err := s.raw.Find(s.ctx, "venues", "v-1")
	s.Require().NoError(err)
	s.Equal(2, rec.Version)
	s.False(rec.Processed, "changed content queues the record for re-transformation")
	s.Equal(float64(9545), rec.Payload["capacity"])
}

func (s *IngestEngineSuite) TestMissingIdentitySkipsRecord() {
	s.source.payloads = []domain.Payload{
		{"venuename": "No ID Here"},
		{"venue_id": "v-2", "venuename": "The Capitol Theatre"},
	}

	result, err := s.engine.Ingest(s.ctx, s.venues, s.opts())
	s.Require().NoError(err)
	s.Equal(2, result.Fetched)
	s.Equal(1, result.Inserted)
	s.Require().Len(result.Errors, 1)
	s.Contains(result.Errors[0].Message, "venue_id")

	_, err = s.raw.Find(s.ctx, "venues", "v-2")
	s.NoError(err, "the bad record never blocks the rest of the batch")
}

func (s *IngestEngineSuite) TestFetchFailureAborts() {
	s.source.err = domainerrors.New(domainerrors.CodeFetch, "source returned status 503")

	result, err := s.engine.Ingest(s.ctx, s.venues, s.opts())
	s.Error(err)
	s.True(domainerrors.Is(err, domainerrors.CodeFetch))
	s.Zero(result.Fetched)

	ids, listErr := s.raw.ListExternalIDs(s.ctx, "venues")
	s.Require().NoError(listErr)
	s.Empty(ids, "a failed fetch writes nothing")
}

func (s *IngestEngineSuite) TestStoreFailureAborts() {
	s.source.payloads = []domain.Payload{{"venue_id": "v-1", "venuename": "Red Rocks"}}
	s.raw.FailWith(errors.New("connection refused"))

	_, err := s.engine.Ingest(s.ctx, s.venues, s.opts())
	s.Error(err)
	s.True(domainerrors.Is(err, domainerrors.CodeStore))
}

func (s *IngestEngineSuite) TestLockedEntityConflicts() {
	locker := runlock.NewMemoryLocker()
	_, err := locker.Acquire(s.ctx, "venues")
	s.Require().NoError(err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := NewEngine(s.source, s.raw, locker, logger, metrics.NewUnregistered())

	_, err = engine.Ingest(s.ctx, s.venues, s.opts())
	s.Error(err)
	s.True(domainerrors.Is(err, domainerrors.CodeLocked))
	s.Zero(s.source.calls, "the fetch never happens while the lock is held")
}

func (s *IngestEngineSuite) TestLockReleasedAfterRun() {
	s.source.payloads = nil
	_, err := s.engine.Ingest(s.ctx, s.venues, s.opts())
	s.Require().NoError(err)

	_, err = s.engine.Ingest(s.ctx, s.venues, s.opts())
	s.NoError(err, "the lock is released when the run finishes")
}
