package taskengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platzio/platz/internal/dbstore"
)

func TestDecodeChartLeavesAbsentColumnsAtZeroValue(t *testing.T) {
	chart := &dbstore.HelmChart{}
	decoded, err := decodeChart(chart)
	require.NoError(t, err)
	assert.Empty(t, decoded.Actions)
	assert.Empty(t, decoded.ResourceTypes)
}

func TestDecodeChartParsesAllFourColumns(t *testing.T) {
	chart := &dbstore.HelmChart{
		ValuesUI:      []byte(`{"inputs":[{"id":"replicas","type":"Number"}]}`),
		ActionsSchema: []byte(`[{"id":"restart","allowed_role":"Maintainer","target":{"path":"/restart","method":"POST"}}]`),
		Features:      []byte(`{"cardinality":"Many","ingress":{"enabled":true,"hostname_format":"Name"}}`),
		ResourceTypes: []byte(`[{"key":"topic","spec":{"name_singular":"Topic","name_plural":"Topics"}}]`),
	}
	decoded, err := decodeChart(chart)
	require.NoError(t, err)

	require.Len(t, decoded.ValuesUI.Inputs, 1)
	assert.Equal(t, "replicas", decoded.ValuesUI.Inputs[0].ID)

	action, ok := decoded.actionByID("restart")
	require.True(t, ok)
	assert.Equal(t, "Maintainer", action.AllowedRole)

	assert.True(t, decoded.Features.Ingress.Enabled)
	require.Len(t, decoded.ResourceTypes, 1)
	assert.Equal(t, "topic", decoded.ResourceTypes[0].Key)
}

func TestDecodeChartActionByIDMissing(t *testing.T) {
	decoded := decodedChart{}
	_, ok := decoded.actionByID("missing")
	assert.False(t, ok)
}
