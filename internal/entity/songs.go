package entity

import "encore/internal/domain"

// Songs is a dimension entity with no dependencies.
func Songs() *Descriptor {
	return &Descriptor{
		Name:          "songs",
		RawTable:      "raw_songs",
		TypedTable:    "songs",
		SourcePath:    "/songs.json",
		IdentityField: "id",
		UpdatedField:  "updated_at",
		Columns: []Column{
			{Name: "name", SQLType: "TEXT NOT NULL"},
			{Name: "slug", SQLType: "TEXT"},
			{Name: "is_original", SQLType: "BOOLEAN NOT NULL DEFAULT FALSE"},
			{Name: "original_artist", SQLType: "TEXT"},
		},
		Map: mapSong,
	}
}

func mapSong(p domain.Payload) (domain.TypedFields, error) {
	name, err := requiredString(p, "name")
	if err != nil {
		return nil, err
	}
	slug, err := optionalString(p, "slug")
	if err != nil {
		return nil, err
	}
	isOriginal, err := optionalBool(p, "isoriginal")
	if err != nil {
		return nil, err
	}
	artist, err := optionalString(p, "original_artist")
	if err != nil {
		return nil, err
	}
	return domain.TypedFields{
		"name":            name,
		"slug":            slug,
		"is_original":     isOriginal,
		"original_artist": artist,
	}, nil
}
