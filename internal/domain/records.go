// Package domain holds the core types shared by the ingestion and
// transformation engines. Types here are plain data; behavior lives in the
// engine packages.
package domain

import (
	"encoding/json"
	"reflect"
	"time"
)

// Payload is one fetched source document, decoded. Decoding through
// map[string]any normalizes all JSON numbers to float64, which keeps
// structural comparison stable across refetches.
type Payload map[string]any

// DecodePayload parses raw JSON into a Payload.
func DecodePayload(raw []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return p, nil
}

// Equal compares two payloads structurally. Object key order never matters
// because both sides are decoded maps; array order does, matching JSON
// semantics. Re-serialization differences therefore cannot cause a spurious
// version bump.
func (p Payload) Equal(other Payload) bool {
	return reflect.DeepEqual(p, other)
}

// Clone returns a deep copy so stored payloads cannot alias caller maps.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil
	}
	clone, err := DecodePayload(raw)
	if err != nil {
		return nil
	}
	return clone
}

// JSON renders the payload for persistence and error-log snapshots.
func (p Payload) JSON() []byte {
	raw, err := json.Marshal(p)
	if err != nil {
		return []byte("{}")
	}
	return raw
}

// RawRecord is one bronze row: the source document verbatim plus identity
// and change tracking.
//
// Invariants enforced by the raw store:
//   - ExternalID is unique within an entity's table.
//   - Version starts at 1 and only ever increases, once per content change.
//   - Processed flips to true only through MarkProcessed with a matching
//     version, and back to false only through a content change or an
//     explicit ResetProcessed.
type RawRecord struct {
	ID         int64
	ExternalID string
	Payload    Payload
	SourceURL  string
	Version    int
	Processed  bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TypedFields is the mapped, typed column set produced by an entity mapper.
// Keys are silver column names.
type TypedFields map[string]any

// TypedRecord is one silver row: typed fields plus the back-reference to the
// bronze row it was derived from.
type TypedRecord struct {
	ExternalID       string
	Fields           TypedFields
	SourceRawVersion int
	ProcessedAt      time.Time
}
