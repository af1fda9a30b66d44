package chartext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validValuesUI = `
apiVersion: platz.io/v1
inputs:
  - id: replicas
    type: Number
    required: true
  - id: db
    type: CollectionSelect
    collection: secrets
    required: true
`

func TestLoadValuesUI(t *testing.T) {
	ext := Load(map[string][]byte{
		"platz/values-ui.yaml": []byte(validValuesUI),
	})
	require.Empty(t, ext.Errors)
	require.NotNil(t, ext.ValuesUI)
	in, ok := ext.ValuesUI.InputByID("replicas")
	require.True(t, ok)
	assert.Equal(t, InputNumber, in.Type)
}

func TestLoadUnknownAPIVersionRecordsParseError(t *testing.T) {
	ext := Load(map[string][]byte{
		"platz/values-ui.yaml": []byte("apiVersion: platz.io/v99\ninputs: []\n"),
	})
	require.Len(t, ext.Errors, 1)
	assert.Nil(t, ext.ValuesUI)
	assert.Equal(t, DocValuesUI, ext.Errors[0].Doc)
}

func TestLoadMissingDocumentIsNotAnError(t *testing.T) {
	ext := Load(map[string][]byte{})
	assert.Empty(t, ext.Errors)
	assert.Nil(t, ext.ValuesUI)
	assert.Nil(t, ext.Features)
}

func TestLoadFeatures(t *testing.T) {
	ext := Load(map[string][]byte{
		"platz/features.yaml": []byte(`
apiVersion: platz.io/v1
cardinality: OnePerCluster
ingress:
  enabled: true
  hostname_format: Name
reinstall_dependencies: true
`),
	})
	require.Empty(t, ext.Errors)
	require.NotNil(t, ext.Features)
	assert.Equal(t, CardinalityOnePerCluster, ext.Features.Cardinality)
	assert.True(t, ext.Features.Ingress.Enabled)
	assert.True(t, ext.Features.ReinstallDependencies)
}

func TestIngestCombinesParseErrors(t *testing.T) {
	out, err := Ingest(map[string][]byte{
		"platz/values-ui.yaml": []byte("apiVersion: bogus\ninputs: []\n"),
		"platz/features.yaml":  []byte(validFeaturesYAML),
	})
	require.NoError(t, err)
	require.NotNil(t, out.Error)
	assert.Contains(t, *out.Error, "values-ui")
	assert.NotNil(t, out.Features)
	assert.Nil(t, out.ValuesUI)
}

const validFeaturesYAML = `
apiVersion: platz.io/v1
cardinality: Many
ingress:
  enabled: false
`
