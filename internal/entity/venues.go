package entity

import "encore/internal/domain"

// Venues is a dimension entity with no dependencies.
func Venues() *Descriptor {
	return &Descriptor{
		Name:          "venues",
		RawTable:      "raw_venues",
		TypedTable:    "venues",
		SourcePath:    "/venues.json",
		IdentityField: "venue_id",
		UpdatedField:  "updated_at",
		Columns: []Column{
			{Name: "name", SQLType: "TEXT NOT NULL"},
			{Name: "city", SQLType: "TEXT"},
			{Name: "state", SQLType: "TEXT"},
			{Name: "country", SQLType: "TEXT"},
		},
		Map: mapVenue,
	}
}

func mapVenue(p domain.Payload) (domain.TypedFields, error) {
	name, err := requiredString(p, "venuename")
	if err != nil {
		return nil, err
	}
	city, err := optionalString(p, "city")
	if err != nil {
		return nil, err
	}
	state, err := optionalString(p, "state")
	if err != nil {
		return nil, err
	}
	country, err := optionalString(p, "country")
	if err != nil {
		return nil, err
	}
	return domain.TypedFields{
		"name":    name,
		"city":    city,
		"state":   state,
		"country": country,
	}, nil
}
