package resolver

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platzio/platz/internal/perr"
	"github.com/platzio/platz/pkg/chartext"
)

type fakeCollections struct {
	props map[string]map[string]any // collection -> itemID -> props
}

func (f fakeCollections) LookupProperty(ctx context.Context, envID uuid.UUID, collection string, itemID string, property string) (any, error) {
	items, ok := f.props[collection]
	if !ok {
		return nil, perr.Resolver(perr.ReasonUnsupportedCollection, "no such collection %s", collection)
	}
	props, ok := items[itemID]
	if !ok {
		return nil, perr.Resolver(perr.ReasonCollectionItemNotFound, "no such item %s", itemID)
	}
	v, ok := props.(map[string]any)[property]
	if !ok {
		return nil, perr.Resolver(perr.ReasonUnknownProperty, "no such property %s", property)
	}
	return v, nil
}

func TestResolveValuesFieldValue(t *testing.T) {
	schema := chartext.UiSchema{
		Inputs: []chartext.InputDef{{ID: "replicas", Type: chartext.InputNumber, Required: true}},
		Values: []chartext.ValueOutput{
			{Path: "spec.replicas", Ref: chartext.Ref{Kind: chartext.RefFieldValue, Input: "replicas"}},
		},
	}
	r := New(fakeCollections{})
	out, err := r.ResolveValues(context.Background(), uuid.New(), schema, map[string]any{"replicas": float64(3)})
	require.NoError(t, err)
	assert.Equal(t, "3", out["spec.replicas"])
}

func TestResolveValuesMissingRequiredInput(t *testing.T) {
	schema := chartext.UiSchema{
		Inputs: []chartext.InputDef{{ID: "replicas", Type: chartext.InputNumber, Required: true}},
		Values: []chartext.ValueOutput{
			{Path: "spec.replicas", Ref: chartext.Ref{Kind: chartext.RefFieldValue, Input: "replicas"}},
		},
	}
	r := New(fakeCollections{})
	_, err := r.ResolveValues(context.Background(), uuid.New(), schema, map[string]any{})
	require.Error(t, err)
	reason, ok := perr.ReasonOf(err)
	require.True(t, ok)
	assert.Equal(t, perr.ReasonMissingInputValue, reason)
}

func TestResolveValuesOptionalInputOmittedWhenShowIfAllFails(t *testing.T) {
	schema := chartext.UiSchema{
		Inputs: []chartext.InputDef{
			{ID: "enable_extra", Type: chartext.InputBoolean},
			{ID: "extra", Type: chartext.InputString, ShowIfAll: []string{"enable_extra"}},
		},
		Values: []chartext.ValueOutput{
			{Path: "spec.extra", Ref: chartext.Ref{Kind: chartext.RefFieldValue, Input: "extra"}},
		},
	}
	r := New(fakeCollections{})
	out, err := r.ResolveValues(context.Background(), uuid.New(), schema, map[string]any{
		"enable_extra": false,
		"extra":        "value",
	})
	require.NoError(t, err)
	_, present := out["spec.extra"]
	assert.False(t, present)
}

func TestResolveValuesFieldProperty(t *testing.T) {
	schema := chartext.UiSchema{
		Inputs: []chartext.InputDef{
			{ID: "db", Type: chartext.InputCollectionSelect, Collection: "secrets", Required: true},
		},
		Values: []chartext.ValueOutput{
			{Path: "spec.dbHost", Ref: chartext.Ref{Kind: chartext.RefFieldProperty, Input: "db", Property: "host"}},
		},
	}
	r := New(fakeCollections{props: map[string]map[string]any{
		"secrets": {"sec-1": map[string]any{"host": "db.internal"}},
	}})
	out, err := r.ResolveValues(context.Background(), uuid.New(), schema, map[string]any{"db": "sec-1"})
	require.NoError(t, err)
	assert.Equal(t, "db.internal", out["spec.dbHost"])
}

func TestResolveValuesArrayFieldProperty(t *testing.T) {
	schema := chartext.UiSchema{
		Inputs: []chartext.InputDef{
			{ID: "dbs", Type: chartext.InputCollectionSelect, Collection: "secrets", Array: true, Required: true},
		},
		Values: []chartext.ValueOutput{
			{Path: "spec.dbHosts", Ref: chartext.Ref{Kind: chartext.RefFieldProperty, Input: "dbs", Property: "host"}},
		},
	}
	r := New(fakeCollections{props: map[string]map[string]any{
		"secrets": {
			"sec-1": map[string]any{"host": "a.internal"},
			"sec-2": map[string]any{"host": "b.internal"},
		},
	}})
	out, err := r.ResolveValues(context.Background(), uuid.New(), schema, map[string]any{
		"dbs": []any{"sec-1", "sec-2"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.internal", "b.internal"}, out["spec.dbHosts"])
}

func TestResolveSecrets(t *testing.T) {
	schema := chartext.UiSchema{
		Inputs: []chartext.InputDef{
			{ID: "db", Type: chartext.InputCollectionSelect, Collection: "secrets", Required: true},
		},
		Secrets: []chartext.SecretOutput{
			{Name: "app-db", Attrs: []chartext.SecretAttr{
				{Key: "password", Ref: chartext.Ref{Kind: chartext.RefFieldProperty, Input: "db", Property: "password"}},
			}},
		},
	}
	r := New(fakeCollections{props: map[string]map[string]any{
		"secrets": {"sec-1": map[string]any{"password": "hunter2"}},
	}})
	out, err := r.ResolveSecrets(context.Background(), uuid.New(), schema, map[string]any{"db": "sec-1"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "app-db", out[0].Name)
	assert.Equal(t, "password", out[0].Attrs[0].Key)
	assert.Equal(t, "hunter2", out[0].Attrs[0].Value)
}

func TestResolveUnknownProperty(t *testing.T) {
	schema := chartext.UiSchema{
		Inputs: []chartext.InputDef{
			{ID: "db", Type: chartext.InputCollectionSelect, Collection: "secrets", Required: true},
		},
		Values: []chartext.ValueOutput{
			{Path: "x", Ref: chartext.Ref{Kind: chartext.RefFieldProperty, Input: "db", Property: "missing"}},
		},
	}
	r := New(fakeCollections{props: map[string]map[string]any{
		"secrets": {"sec-1": map[string]any{"host": "a"}},
	}})
	_, err := r.ResolveValues(context.Background(), uuid.New(), schema, map[string]any{"db": "sec-1"})
	require.Error(t, err)
	reason, ok := perr.ReasonOf(err)
	require.True(t, ok)
	assert.Equal(t, perr.ReasonUnknownProperty, reason)
}
