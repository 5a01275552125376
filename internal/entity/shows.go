package entity

import "encore/internal/domain"

// Shows reference venues, so the orchestrator transforms venues first.
func Shows() *Descriptor {
	return &Descriptor{
		Name:          "shows",
		RawTable:      "raw_shows",
		TypedTable:    "shows",
		SourcePath:    "/shows.json",
		IdentityField: "show_id",
		UpdatedField:  "updated_at",
		DependsOn:     []string{"venues"},
		Columns: []Column{
			{Name: "showdate", SQLType: "TEXT NOT NULL"},
			{Name: "venue_external_id", SQLType: "TEXT"},
			{Name: "artist", SQLType: "TEXT"},
			{Name: "tour_name", SQLType: "TEXT"},
			{Name: "shownotes", SQLType: "TEXT"},
		},
		Map: mapShow,
	}
}

func mapShow(p domain.Payload) (domain.TypedFields, error) {
	showdate, err := requiredDate(p, "showdate")
	if err != nil {
		return nil, err
	}
	artist, err := optionalString(p, "artist")
	if err != nil {
		return nil, err
	}
	tour, err := optionalString(p, "tourname")
	if err != nil {
		return nil, err
	}
	notes, err := optionalString(p, "shownotes")
	if err != nil {
		return nil, err
	}
	return domain.TypedFields{
		"showdate":          showdate,
		"venue_external_id": optionalID(p, "venue_id"),
		"artist":            artist,
		"tour_name":         tour,
		"shownotes":         notes,
	}, nil
}
