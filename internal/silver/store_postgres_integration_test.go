//go:build integration

package silver_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"encore/internal/domain"
	"encore/internal/entity"
	"encore/internal/platform/postgres"
	"encore/internal/silver"
	"encore/pkg/sentinel"
	"encore/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg       *containers.PostgresContainer
	registry *entity.Registry
	store    *silver.PostgresStore
	ctx      context.Context
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.pg = containers.NewPostgresContainer(s.T())
	s.registry = entity.New()
	s.Require().NoError(postgres.Migrate(s.ctx, s.pg.DB, s.registry))
	s.store = silver.NewPostgresStore(s.pg.DB, s.registry)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(s.ctx, "venues", "songs", "setlists"))
}

func (s *PostgresStoreSuite) TestUpsert() {
	rec := domain.TypedRecord{
		ExternalID: "v-1",
		Fields: domain.TypedFields{
			"name":    "Red Rocks",
			"city":    "Morrison",
			"state":   "CO",
			"country": "USA",
		},
		SourceRawVersion: 1,
		ProcessedAt:      time.Now().UTC(),
	}
	s.Require().NoError(s.store.Upsert(s.ctx, "venues", rec))

	got, err := s.store.Find(s.ctx, "venues", "v-1")
	s.Require().NoError(err)
	s.Equal("Red Rocks", got.Fields["name"])
	s.Equal(1, got.SourceRawVersion)

	s.Run("second upsert overwrites in place", func() {
		rec.Fields["name"] = "Red Rocks Amphitheatre"
		rec.Fields["city"] = ""
		rec.SourceRawVersion = 2
		s.Require().NoError(s.store.Upsert(s.ctx, "venues", rec))

		got, err := s.store.Find(s.ctx, "venues", "v-1")
		s.Require().NoError(err)
		s.Equal("Red Rocks Amphitheatre", got.Fields["name"])
		s.Equal(2, got.SourceRawVersion)

		ids, err := s.store.ListExternalIDs(s.ctx, "venues")
		s.Require().NoError(err)
		s.Len(ids, 1, "upsert never duplicates rows")
	})
}

func (s *PostgresStoreSuite) TestTypedColumns() {
	rec := domain.TypedRecord{
		ExternalID: "sl-1",
		Fields: domain.TypedFields{
			"show_external_id": "9001",
			"song_external_id": "374",
			"songname":         "Arcadia",
			"showdate":         "2024-06-14",
			"setnumber":        "2",
			"position":         3,
			"is_jam":           true,
			"transition":       ">",
			"footnote":         "",
		},
		SourceRawVersion: 1,
		ProcessedAt:      time.Now().UTC(),
	}
	s.Require().NoError(s.store.Upsert(s.ctx, "setlists", rec))

	got, err := s.store.Find(s.ctx, "setlists", "sl-1")
	s.Require().NoError(err)
	s.Equal(3, got.Fields["position"], "integer columns scan back as int")
	s.Equal(true, got.Fields["is_jam"])
	s.Equal("9001", got.Fields["show_external_id"])
}

func (s *PostgresStoreSuite) TestConstraintViolation() {
	// name is NOT NULL; an empty required field must surface as a
	// per-record constraint error, not an engine failure.
	rec := domain.TypedRecord{
		ExternalID:       "v-bad",
		Fields:           domain.TypedFields{"name": nil, "city": "", "state": "", "country": ""},
		SourceRawVersion: 1,
		ProcessedAt:      time.Now().UTC(),
	}
	err := s.store.Upsert(s.ctx, "venues", rec)
	s.Error(err)
	s.ErrorIs(err, sentinel.ErrConstraint)
}

func (s *PostgresStoreSuite) TestFindMissing() {
	_, err := s.store.Find(s.ctx, "venues", "nope")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
