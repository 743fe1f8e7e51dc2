package engine

import (
	"context"
	"encoding/json"
	"strings"
)

// Field limits.
const (
	MaxIDLength  = 64
	MaxSortIndex = 999999999
	MinSortIndex = -999999999

	// DefaultMaxPayloadBytes bounds payload size unless overridden.
	DefaultMaxPayloadBytes = 262144
)

// Violation messages, one per validator rule.
const (
	ViolationID          = "invalid id"
	ViolationCollection  = "invalid collection"
	ViolationParent      = "invalid parentid"
	ViolationPredecessor = "invalid predecessorid"
	ViolationModified    = "invalid modified"
	ViolationSortIndex   = "invalid sortindex"
	ViolationPayloadSize = "payload too large"
	ViolationPayloadJSON = "payload needs to be json-encoded"
)

// ValidationError reports the full violation list for a rejected write.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "weft: invalid record: " + strings.Join(e.Violations, ", ")
}

// ExistsFunc probes current collection membership for parentid and
// predecessorid reference checks.
type ExistsFunc func(ctx context.Context, id string) (bool, error)

// Validate checks a candidate record's field map and returns every violated
// constraint. Rules are evaluated independently so a single pass reports all
// problems at once. An empty result means the candidate is acceptable.
//
// The returned error is a substrate failure from a membership probe, never
// a validation outcome.
func Validate(ctx context.Context, fields map[string]any, maxPayloadBytes int, exists ExistsFunc) ([]string, error) {
	if maxPayloadBytes <= 0 {
		maxPayloadBytes = DefaultMaxPayloadBytes
	}
	var violations []string

	id, ok := fields["id"].(string)
	if !ok || id == "" || len(id) > MaxIDLength || strings.Contains(id, "/") {
		violations = append(violations, ViolationID)
	}

	collection, ok := fields["collection"].(string)
	if !ok || collection == "" || len(collection) > MaxIDLength {
		violations = append(violations, ViolationCollection)
	}

	ref, err := checkReference(ctx, fields, "parentid", exists)
	if err != nil {
		return nil, err
	}
	if !ref {
		violations = append(violations, ViolationParent)
	}

	ref, err = checkReference(ctx, fields, "predecessorid", exists)
	if err != nil {
		return nil, err
	}
	if !ref {
		violations = append(violations, ViolationPredecessor)
	}

	// The modified stamp must be float-typed, not an integer or a
	// numeric-looking string; the clock's fractional contract is part
	// of the record format.
	if _, ok := fields["modified"].(float64); !ok {
		violations = append(violations, ViolationModified)
	}

	if raw, present := fields["sortindex"]; present {
		if !validSortIndex(raw) {
			violations = append(violations, ViolationSortIndex)
		}
	}

	if raw, present := fields["payload"]; present {
		payload, ok := raw.(string)
		switch {
		case !ok:
			violations = append(violations, ViolationPayloadJSON)
		case len(payload) > maxPayloadBytes:
			violations = append(violations, ViolationPayloadSize)
		case !json.Valid([]byte(payload)):
			violations = append(violations, ViolationPayloadJSON)
		}
	}

	return violations, nil
}

// checkReference validates an optional parentid/predecessorid field: when
// present it must be a short string naming a record that currently exists
// in the target collection.
func checkReference(ctx context.Context, fields map[string]any, field string, exists ExistsFunc) (bool, error) {
	raw, present := fields[field]
	if !present {
		return true, nil
	}
	ref, ok := raw.(string)
	if !ok || ref == "" || len(ref) > MaxIDLength {
		return false, nil
	}
	if exists == nil {
		return true, nil
	}
	return exists(ctx, ref)
}

// validSortIndex accepts integers in [MinSortIndex, MaxSortIndex]. JSON
// numbers arrive as float64, so whole-valued floats count as integers.
func validSortIndex(raw any) bool {
	var n float64
	switch v := raw.(type) {
	case float64:
		if v != float64(int64(v)) {
			return false
		}
		n = v
	case int:
		n = float64(v)
	case int64:
		n = float64(v)
	default:
		return false
	}
	return n >= MinSortIndex && n <= MaxSortIndex
}
