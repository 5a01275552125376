// Package entity declares the closed set of source entities the pipeline
// handles. Each descriptor bundles what the engines need to stay generic:
// where to fetch, how to derive identity, which silver columns exist, the
// pure payload mapper, and dependency edges for run ordering.
package entity

import (
	"fmt"
	"strconv"
	"strings"

	"encore/internal/domain"
	domainerrors "encore/pkg/domain-errors"
)

// Column is one silver table column. SQLType is the DDL type used by the
// migration layer; order in the descriptor fixes insert order.
type Column struct {
	Name    string
	SQLType string
}

// Mapper turns a raw payload into typed silver fields. Mappers must be pure
// functions of the payload: same payload in, same fields out, no external
// calls. That purity is what makes force-reprocess a safe no-drift re-run.
type Mapper func(domain.Payload) (domain.TypedFields, error)

// Descriptor describes one entity end to end.
type Descriptor struct {
	Name          string
	RawTable      string
	TypedTable    string
	SourcePath    string
	IdentityField string
	UpdatedField  string
	Columns       []Column
	DependsOn     []string
	Map           Mapper
}

// ExternalID extracts the source-assigned identity from a payload. A missing
// or empty identity is an identity error: the record is skipped and counted,
// never stored under a null key.
func (d *Descriptor) ExternalID(p domain.Payload) (string, error) {
	v, ok := p[d.IdentityField]
	if !ok || v == nil {
		return "", domainerrors.Newf(domainerrors.CodeIdentity,
			"payload has no %q field", d.IdentityField)
	}
	id := formatScalar(v)
	if strings.TrimSpace(id) == "" {
		return "", domainerrors.Newf(domainerrors.CodeIdentity,
			"payload %q field is empty", d.IdentityField)
	}
	return id, nil
}

func formatScalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Field coercion helpers shared by the mappers. All failures are mapping
// errors so the transformation engine logs the record and moves on.

func requiredString(p domain.Payload, key string) (string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", domainerrors.Newf(domainerrors.CodeMapping, "missing required field %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", domainerrors.Newf(domainerrors.CodeMapping, "field %q is not a string", key)
	}
	if strings.TrimSpace(s) == "" {
		return "", domainerrors.Newf(domainerrors.CodeMapping, "field %q is empty", key)
	}
	return s, nil
}

func optionalString(p domain.Payload, key string) (string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", domainerrors.Newf(domainerrors.CodeMapping, "field %q is not a string", key)
	}
	return s, nil
}

func optionalInt(p domain.Payload, key string) (int, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return 0, nil
	}
	switch t := v.(type) {
	case float64:
		if t != float64(int64(t)) {
			return 0, domainerrors.Newf(domainerrors.CodeMapping, "field %q is not an integer", key)
		}
		return int(t), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, domainerrors.Newf(domainerrors.CodeMapping, "field %q is not an integer", key)
		}
		return n, nil
	default:
		return 0, domainerrors.Newf(domainerrors.CodeMapping, "field %q is not an integer", key)
	}
}

// optionalBool accepts JSON booleans plus the 0/1 and "0"/"1" encodings the
// source uses interchangeably.
func optionalBool(p domain.Payload, key string) (bool, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return false, nil
	}
	switch t := v.(type) {
	case bool:
		return t, nil
	case float64:
		return t != 0, nil
	case string:
		switch strings.TrimSpace(t) {
		case "1", "true":
			return true, nil
		case "0", "false", "":
			return false, nil
		}
	}
	return false, domainerrors.Newf(domainerrors.CodeMapping, "field %q is not a boolean", key)
}

// requiredDate validates a YYYY-MM-DD field without reinterpreting it; the
// store keeps dates as their source string form.
func requiredDate(p domain.Payload, key string) (string, error) {
	s, err := requiredString(p, key)
	if err != nil {
		return "", err
	}
	if !validDate(s) {
		return "", domainerrors.Newf(domainerrors.CodeMapping, "field %q is not a YYYY-MM-DD date", key)
	}
	return s, nil
}

func optionalDate(p domain.Payload, key string) (string, error) {
	s, err := optionalString(p, key)
	if err != nil || s == "" {
		return "", err
	}
	if !validDate(s) {
		return "", domainerrors.Newf(domainerrors.CodeMapping, "field %q is not a YYYY-MM-DD date", key)
	}
	return s, nil
}

func validDate(s string) bool {
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return false
	}
	for i, r := range s {
		if i == 4 || i == 7 {
			continue
		}
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// requiredID extracts a foreign identity field in the same scalar forms
// ExternalID accepts, so cross-entity references line up byte for byte.
func requiredID(p domain.Payload, key string) (string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", domainerrors.Newf(domainerrors.CodeMapping, "missing required field %q", key)
	}
	id := formatScalar(v)
	if strings.TrimSpace(id) == "" {
		return "", domainerrors.Newf(domainerrors.CodeMapping, "field %q is empty", key)
	}
	return id, nil
}

func optionalID(p domain.Payload, key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	return formatScalar(v)
}
