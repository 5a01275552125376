package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"encore/internal/entity"
	domainerrors "encore/pkg/domain-errors"
)

type HTTPSourceSuite struct {
	suite.Suite
	ctx context.Context
}

func TestHTTPSourceSuite(t *testing.T) {
	suite.Run(t, new(HTTPSourceSuite))
}

func (s *HTTPSourceSuite) SetupTest() {
	s.ctx = context.Background()
}

func (s *HTTPSourceSuite) newSource(handler http.HandlerFunc) (*HTTPSource, *httptest.Server) {
	srv := httptest.NewServer(handler)
	s.T().Cleanup(srv.Close)
	src := NewHTTPSource(srv.URL, 5*time.Second)
	src.now = func() time.Time {
		return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	}
	return src, srv
}

func (s *HTTPSourceSuite) TestFetch() {
	var gotQuery map[string][]string
	src, _ := s.newSource(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": false,
			"data": []map[string]any{
				{"venue_id": 1, "venuename": "Red Rocks"},
				{"venue_id": 2, "venuename": "The Capitol Theatre"},
			},
		})
	})

	s.Run("incremental mode adds the updated-at window", func() {
		payloads, sourceURL, err := src.Fetch(s.ctx, entity.Venues(), FetchOptions{
			Window:   14 * 24 * time.Hour,
			RowLimit: 500,
		})
		s.Require().NoError(err)
		s.Len(payloads, 2)
		s.Equal([]string{"500"}, gotQuery["limit"])
		s.Equal([]string{"2025-06-01"}, gotQuery["updated_at_gte"])
		s.Contains(sourceURL, "limit=500")
	})

	s.Run("full mode drops the window but keeps the row cap", func() {
		_, _, err := src.Fetch(s.ctx, entity.Venues(), FetchOptions{RowLimit: 500, Full: true})
		s.Require().NoError(err)
		s.Equal([]string{"500"}, gotQuery["limit"])
		s.NotContains(gotQuery, "updated_at_gte")
	})

	s.Run("row cap trims oversized responses", func() {
		payloads, _, err := src.Fetch(s.ctx, entity.Venues(), FetchOptions{RowLimit: 1, Full: true})
		s.Require().NoError(err)
		s.Len(payloads, 1)
	})
}

func (s *HTTPSourceSuite) TestFetchValidation() {
	src, _ := s.newSource(func(w http.ResponseWriter, r *http.Request) {})

	s.Run("zero row limit rejected", func() {
		_, _, err := src.Fetch(s.ctx, entity.Venues(), FetchOptions{Full: true})
		s.Error(err)
		s.True(domainerrors.Is(err, domainerrors.CodeBadRequest))
	})

	s.Run("zero window rejected in incremental mode", func() {
		_, _, err := src.Fetch(s.ctx, entity.Venues(), FetchOptions{RowLimit: 10})
		s.Error(err)
		s.True(domainerrors.Is(err, domainerrors.CodeBadRequest))
	})
}

func (s *HTTPSourceSuite) TestFetchFailures() {
	s.Run("non-2xx status is a fetch error", func() {
		src, _ := s.newSource(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
		_, _, err := src.Fetch(s.ctx, entity.Venues(), FetchOptions{RowLimit: 10, Full: true})
		s.Error(err)
		s.True(domainerrors.Is(err, domainerrors.CodeFetch))
	})

	s.Run("error envelope is a fetch error", func() {
		src, _ := s.newSource(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error":         true,
				"error_message": "rate limit exceeded",
			})
		})
		_, _, err := src.Fetch(s.ctx, entity.Venues(), FetchOptions{RowLimit: 10, Full: true})
		s.Error(err)
		s.True(domainerrors.Is(err, domainerrors.CodeFetch))
		s.Contains(err.Error(), "rate limit exceeded")
	})

	s.Run("malformed body is a fetch error", func() {
		src, _ := s.newSource(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>not json</html>"))
		})
		_, _, err := src.Fetch(s.ctx, entity.Venues(), FetchOptions{RowLimit: 10, Full: true})
		s.Error(err)
		s.True(domainerrors.Is(err, domainerrors.CodeFetch))
	})
}
