package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"encore/internal/domain"
	"encore/internal/entity"
	domainerrors "encore/pkg/domain-errors"
)

// FetchOptions bound one fetch. Window and RowLimit are required
// configuration: an unbounded pull from the source API is the dominant
// failure mode, so callers must always state how far back and how much.
type FetchOptions struct {
	Window   time.Duration
	RowLimit int
	Full     bool // full mode drops the window filter but keeps the row cap
}

// Source fetches one bounded page of documents for an entity. The returned
// string is the request URL, recorded as provenance on each raw row.
type Source interface {
	Fetch(ctx context.Context, d *entity.Descriptor, opts FetchOptions) ([]domain.Payload, string, error)
}

// HTTPSource talks to the music-data API. Responses carry the source's
// standard envelope {error, error_message, data}.
type HTTPSource struct {
	baseURL string
	client  *http.Client
	now     func() time.Time
}

func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		now:     time.Now,
	}
}

type sourceEnvelope struct {
	Error        bool             `json:"error"`
	ErrorMessage string           `json:"error_message"`
	Data         []domain.Payload `json:"data"`
}

func (s *HTTPSource) Fetch(ctx context.Context, d *entity.Descriptor, opts FetchOptions) ([]domain.Payload, string, error) {
	if opts.RowLimit <= 0 {
		return nil, "", domainerrors.New(domainerrors.CodeBadRequest, "row limit must be positive")
	}
	if !opts.Full && opts.Window <= 0 {
		return nil, "", domainerrors.New(domainerrors.CodeBadRequest, "fetch window must be positive in incremental mode")
	}

	reqURL, err := s.buildURL(d, opts)
	if err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, reqURL, domainerrors.Wrap(err, domainerrors.CodeFetch, "build source request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, reqURL, domainerrors.Wrap(err, domainerrors.CodeFetch, "source request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, reqURL, domainerrors.Newf(domainerrors.CodeFetch,
			"source returned status %d for %s", resp.StatusCode, d.Name)
	}

	var envelope sourceEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, reqURL, domainerrors.Wrap(err, domainerrors.CodeFetch, "decode source response")
	}
	if envelope.Error {
		return nil, reqURL, domainerrors.Newf(domainerrors.CodeFetch,
			"source error for %s: %s", d.Name, envelope.ErrorMessage)
	}

	data := envelope.Data
	if len(data) > opts.RowLimit {
		data = data[:opts.RowLimit]
	}
	return data, reqURL, nil
}

func (s *HTTPSource) buildURL(d *entity.Descriptor, opts FetchOptions) (string, error) {
	u, err := url.Parse(s.baseURL + d.SourcePath)
	if err != nil {
		return "", fmt.Errorf("parse source URL: %w", err)
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(opts.RowLimit))
	if !opts.Full {
		since := s.now().Add(-opts.Window).UTC().Format("2006-01-02")
		q.Set(d.UpdatedField+"_gte", since)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
