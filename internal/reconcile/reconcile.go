// Package reconcile compares bronze and silver id sets per entity. The
// report answers the operational question behind most pipeline pages: did
// everything we ingested actually land in the typed tables?
package reconcile

import (
	"context"

	"encore/internal/bronze"
	"encore/internal/entity"
	"encore/internal/silver"
	domainerrors "encore/pkg/domain-errors"
)

// sampleCap bounds the id samples in a report so a badly drifted entity
// cannot produce an unbounded response.
const sampleCap = 50

// Report summarizes bronze/silver drift for one entity.
type Report struct {
	Entity      string   `json:"entity"`
	BronzeCount int      `json:"bronze_count"`
	SilverCount int      `json:"silver_count"`
	BronzeOnly  []string `json:"bronze_only,omitempty"`
	SilverOnly  []string `json:"silver_only,omitempty"`
}

// InSync reports whether the two tiers hold identical id sets. Bronze-only
// ids are normal between ingest and transform; silver-only ids are not.
func (r Report) InSync() bool {
	return len(r.BronzeOnly) == 0 && len(r.SilverOnly) == 0
}

type Service struct {
	raw      bronze.Store
	typed    silver.Store
	registry *entity.Registry
}

func NewService(raw bronze.Store, typed silver.Store, registry *entity.Registry) *Service {
	return &Service{raw: raw, typed: typed, registry: registry}
}

// Report builds the drift report for one entity.
func (s *Service) Report(ctx context.Context, entityName string) (Report, error) {
	d, err := s.registry.Get(entityName)
	if err != nil {
		return Report{}, err
	}

	bronzeIDs, err := s.raw.ListExternalIDs(ctx, d.Name)
	if err != nil {
		return Report{}, domainerrors.Wrap(err, domainerrors.CodeStore, "list bronze ids")
	}
	silverIDs, err := s.typed.ListExternalIDs(ctx, d.Name)
	if err != nil {
		return Report{}, domainerrors.Wrap(err, domainerrors.CodeStore, "list silver ids")
	}

	report := Report{
		Entity:      d.Name,
		BronzeCount: len(bronzeIDs),
		SilverCount: len(silverIDs),
	}
	report.BronzeOnly = difference(bronzeIDs, silverIDs)
	report.SilverOnly = difference(silverIDs, bronzeIDs)
	return report, nil
}

// ReportAll builds reports for every registered entity.
func (s *Service) ReportAll(ctx context.Context) ([]Report, error) {
	var reports []Report
	for _, d := range s.registry.All() {
		report, err := s.Report(ctx, d.Name)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// difference returns ids in a but not in b, capped. Inputs are sorted, so
// output stays sorted too.
func difference(a, b []string) []string {
	inB := make(map[string]bool, len(b))
	for _, id := range b {
		inB[id] = true
	}
	var out []string
	for _, id := range a {
		if !inB[id] {
			out = append(out, id)
			if len(out) == sampleCap {
				break
			}
		}
	}
	return out
}
