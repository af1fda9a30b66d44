// Package chartext implements the Chart Extension Model (spec.md §4.4):
// the versioned, apiVersion-dispatched documents a chart embeds
// describing its input UI schema, derived secrets, feature flags,
// actions, and custom resource types.
package chartext

import (
	"encoding/json"

	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"
)

// InputType is the declared kind of a UiSchema input.
type InputType string

const (
	InputString          InputType = "String"
	InputNumber          InputType = "Number"
	InputBoolean         InputType = "Boolean"
	InputCollectionSelect InputType = "CollectionSelect"
)

// InputDef describes a single declared input: its type, whether it's
// required, whether its value is an array, and (for CollectionSelect)
// which collection its value selects from.
type InputDef struct {
	ID         string    `json:"id"`
	Type       InputType `json:"type"`
	Required   bool      `json:"required"`
	Array      bool      `json:"array"`
	Collection string    `json:"collection,omitempty"`
	ShowIfAll  []string  `json:"show_if_all,omitempty"`
}

// ValueOutput writes a resolved value at a JSON path in the rendered
// chart values.
type ValueOutput struct {
	Path string `json:"path"`
	Ref  Ref    `json:"ref"`
}

// SecretOutput declares a derived secret: a name and an ordered set of
// attr -> reference pairs to render into it.
type SecretOutput struct {
	Name  string        `json:"name"`
	Attrs []SecretAttr  `json:"attrs"`
}

// SecretAttr is one key in a SecretOutput, in declaration order so the
// resolver can produce an attribute ordering that matches the chart
// author's intent rather than Go map iteration order.
type SecretAttr struct {
	Key string `json:"key"`
	Ref Ref    `json:"ref"`
}

// RefKind distinguishes the two reference shapes spec.md §4.3 names.
type RefKind string

const (
	RefFieldValue    RefKind = "FieldValue"
	RefFieldProperty RefKind = "FieldProperty"
)

// Ref is either FieldValue{Input} or FieldProperty{Input, Property}.
// Property is empty for FieldValue.
type Ref struct {
	Kind     RefKind `json:"kind"`
	Input    string  `json:"input"`
	Property string  `json:"property,omitempty"`
}

// UiSchema is the parsed values-ui document body (independent of the
// apiVersion envelope it arrived in).
type UiSchema struct {
	Inputs  []InputDef     `json:"inputs"`
	Values  []ValueOutput  `json:"values"`
	Secrets []SecretOutput `json:"secrets"`
}

// InputByID finds a declared input, or reports ok=false.
func (s UiSchema) InputByID(id string) (InputDef, bool) {
	for _, in := range s.Inputs {
		if in.ID == id {
			return in, true
		}
	}
	return InputDef{}, false
}

// parseUiSchemaBody unmarshals the apiVersion-stripped YAML/JSON body of
// a values-ui document. Chart authors write these as YAML; sigs.k8s.io/yaml
// round-trips to JSON so the rest of the model only deals with
// encoding/json tags, matching how the teacher's own chart loader reads
// chart subtrees (YAML in, typed Go structs out).
func parseUiSchemaBody(body []byte) (UiSchema, error) {
	var s UiSchema
	if err := yaml.Unmarshal(body, &s); err != nil {
		return UiSchema{}, errors.Wrap(err, "parsing values-ui body")
	}
	return s, nil
}

// toJSON is the JSON round-trip helper used when persisting a UiSchema into
// HelmChart.ValuesUI (a raw JSON column).
func (s UiSchema) toJSON() ([]byte, error) {
	return json.Marshal(s)
}
