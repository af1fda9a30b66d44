package chartext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateInputsRequiresDeclaredFields(t *testing.T) {
	schema := UiSchema{
		Inputs: []InputDef{
			{ID: "replicas", Type: InputNumber, Required: true},
		},
	}
	err := ValidateInputs(schema, map[string]any{})
	assert.Error(t, err)
}

func TestValidateInputsAcceptsValidInput(t *testing.T) {
	schema := UiSchema{
		Inputs: []InputDef{
			{ID: "replicas", Type: InputNumber, Required: true},
			{ID: "tags", Type: InputString, Array: true},
		},
	}
	err := ValidateInputs(schema, map[string]any{
		"replicas": 3,
		"tags":     []any{"a", "b"},
	})
	require.NoError(t, err)
}

func TestValidateInputsRejectsWrongType(t *testing.T) {
	schema := UiSchema{
		Inputs: []InputDef{
			{ID: "replicas", Type: InputNumber, Required: true},
		},
	}
	err := ValidateInputs(schema, map[string]any{"replicas": "not-a-number"})
	assert.Error(t, err)
}
