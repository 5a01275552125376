package entity

import "encore/internal/domain"

// Setlists are the fact entity: one row per song performance, referencing
// both shows and songs. The source keys them by "uniqueid".
func Setlists() *Descriptor {
	return &Descriptor{
		Name:          "setlists",
		RawTable:      "raw_setlists",
		TypedTable:    "setlists",
		SourcePath:    "/setlists.json",
		IdentityField: "uniqueid",
		UpdatedField:  "updated_at",
		DependsOn:     []string{"shows", "songs"},
		Columns: []Column{
			{Name: "show_external_id", SQLType: "TEXT NOT NULL"},
			{Name: "song_external_id", SQLType: "TEXT NOT NULL"},
			{Name: "songname", SQLType: "TEXT"},
			{Name: "showdate", SQLType: "TEXT"},
			{Name: "setnumber", SQLType: "TEXT"},
			{Name: "position", SQLType: "INTEGER NOT NULL DEFAULT 0"},
			{Name: "is_jam", SQLType: "BOOLEAN NOT NULL DEFAULT FALSE"},
			{Name: "transition", SQLType: "TEXT"},
			{Name: "footnote", SQLType: "TEXT"},
		},
		Map: mapSetlistEntry,
	}
}

func mapSetlistEntry(p domain.Payload) (domain.TypedFields, error) {
	showID, err := requiredID(p, "show_id")
	if err != nil {
		return nil, err
	}
	songID, err := requiredID(p, "song_id")
	if err != nil {
		return nil, err
	}
	songname, err := optionalString(p, "songname")
	if err != nil {
		return nil, err
	}
	showdate, err := optionalDate(p, "showdate")
	if err != nil {
		return nil, err
	}
	setnumber, err := optionalString(p, "setnumber")
	if err != nil {
		return nil, err
	}
	position, err := optionalInt(p, "position")
	if err != nil {
		return nil, err
	}
	isJam, err := optionalBool(p, "isjam")
	if err != nil {
		return nil, err
	}
	transition, err := optionalString(p, "transition")
	if err != nil {
		return nil, err
	}
	footnote, err := optionalString(p, "footnote")
	if err != nil {
		return nil, err
	}
	return domain.TypedFields{
		"show_external_id": showID,
		"song_external_id": songID,
		"songname":         songname,
		"showdate":         showdate,
		"setnumber":        setnumber,
		"position":         position,
		"is_jam":           isJam,
		"transition":       transition,
		"footnote":         footnote,
	}, nil
}
