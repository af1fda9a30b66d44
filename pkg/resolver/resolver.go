// Package resolver implements the Reference Resolver (spec.md §4.3):
// turning a chart's declared UiSchema plus a caller-supplied inputs
// object into rendered chart values and secret attribute maps.
package resolver

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/platzio/platz/internal/perr"
	"github.com/platzio/platz/pkg/chartext"
)

// CollectionSource looks up a single property on a single item within a
// named collection. Implementations dispatch "deployments"/"secrets"
// against internal/dbstore directly; any other name against
// deployment-resource-types scoped to envID (or globally, per the
// resource type's own Global flag) -- the Resolver itself never knows
// which case applies.
type CollectionSource interface {
	LookupProperty(ctx context.Context, envID uuid.UUID, collection string, itemID string, property string) (any, error)
}

// Resolver resolves a chart's UiSchema-declared outputs against a set
// of caller-supplied inputs.
type Resolver struct {
	Collections CollectionSource
}

// New builds a Resolver backed by src.
func New(src CollectionSource) *Resolver {
	return &Resolver{Collections: src}
}

// isInputPresent reports whether in's value should be considered
// present given the surrounding inputs object and in's showIfAll
// predicate (spec.md §4.3): every referenced input id must itself be
// present and "truthy" (non-nil, non-empty, not literal false).
func isInputPresent(in chartext.InputDef, inputs map[string]any) bool {
	if _, ok := inputs[in.ID]; !ok {
		return false
	}
	for _, dep := range in.ShowIfAll {
		v, ok := inputs[dep]
		if !ok || !truthy(v) {
			return false
		}
	}
	return true
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	default:
		return true
	}
}

// stringify normalizes a collection property value to the string form
// spec.md §4.3 requires outputs to be ("scalars must resolve to
// strings"); non-string values are JSON-stringified the same way
// secret-rendering is explicitly told to handle them.
func stringify(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// itemIDs normalizes an input's raw value into the list of collection
// item ids it selects -- one for a scalar, many for an array, per
// in.Array.
func itemIDs(in chartext.InputDef, raw any) ([]string, error) {
	if !in.Array {
		s, ok := raw.(string)
		if !ok {
			return nil, perr.Resolver(perr.ReasonInputNotACollection, "input %s is not a scalar collection id", in.ID)
		}
		return []string{s}, nil
	}
	arr, ok := raw.([]any)
	if !ok {
		return nil, perr.Resolver(perr.ReasonInputNotACollection, "input %s is not an array of collection ids", in.ID)
	}
	ids := make([]string, 0, len(arr))
	for _, v := range arr {
		s, ok := v.(string)
		if !ok {
			return nil, perr.Resolver(perr.ReasonInputNotACollection, "input %s contains a non-string collection id", in.ID)
		}
		ids = append(ids, s)
	}
	return ids, nil
}

// resolveFieldValue implements Ref{Kind: FieldValue}: the input's raw
// value, normalized to a string (or array of strings).
func resolveFieldValue(in chartext.InputDef, raw any) (any, error) {
	if !in.Array {
		return stringify(raw)
	}
	arr, ok := raw.([]any)
	if !ok {
		return nil, perr.Resolver(perr.ReasonInputNotACollection, "input %s is not an array", in.ID)
	}
	out := make([]string, len(arr))
	for i, v := range arr {
		s, err := stringify(v)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// resolveFieldProperty implements Ref{Kind: FieldProperty}: looks up
// property on every collection item the input selects.
func (r *Resolver) resolveFieldProperty(ctx context.Context, envID uuid.UUID, in chartext.InputDef, raw any, property string) (any, error) {
	if in.Collection == "" {
		return nil, perr.Resolver(perr.ReasonInputNotACollection, "input %s does not declare a collection", in.ID)
	}
	ids, err := itemIDs(in, raw)
	if err != nil {
		return nil, err
	}

	values := make([]string, 0, len(ids))
	for _, id := range ids {
		v, err := r.Collections.LookupProperty(ctx, envID, in.Collection, id, property)
		if err != nil {
			return nil, err
		}
		s, err := stringify(v)
		if err != nil {
			return nil, err
		}
		values = append(values, s)
	}

	if !in.Array {
		return values[0], nil
	}
	return values, nil
}

