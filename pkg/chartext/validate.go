package chartext

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

// jsonSchemaFor builds a minimal JSON Schema document from a UiSchema's
// declared input types, the same way the teacher's own schema test
// harness builds a gojsonschema.NewStringLoader document from generated
// JSON rather than hand-writing it (hack/schemas/main_test.go).
func jsonSchemaFor(schema UiSchema) ([]byte, error) {
	properties := make(map[string]any, len(schema.Inputs))
	var required []string

	for _, in := range schema.Inputs {
		var typeName string
		switch in.Type {
		case InputString, InputCollectionSelect:
			typeName = "string"
		case InputNumber:
			typeName = "number"
		case InputBoolean:
			typeName = "boolean"
		default:
			return nil, errors.Errorf("input %s has unrecognized type %q", in.ID, in.Type)
		}

		prop := map[string]any{"type": typeName}
		if in.Array {
			prop = map[string]any{"type": "array", "items": map[string]any{"type": typeName}}
		}
		properties[in.ID] = prop

		if in.Required {
			required = append(required, in.ID)
		}
	}

	doc := map[string]any{
		"$schema":    "http://json-schema.org/draft-07/schema#",
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	return json.Marshal(doc)
}

// ValidateInputs checks a raw inputs object against schema's declared
// input types (spec.md §4.3: "the chart's UiSchema declares each
// input's type"). It validates shape only; showIfAll conditional
// presence and collection-reference resolution are pkg/resolver's job.
func ValidateInputs(schema UiSchema, inputs map[string]any) error {
	rawSchema, err := jsonSchemaFor(schema)
	if err != nil {
		return errors.Wrap(err, "building input schema")
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(rawSchema),
		gojsonschema.NewGoLoader(inputs),
	)
	if err != nil {
		return errors.Wrap(err, "validating inputs against schema")
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return errors.Errorf("inputs do not satisfy values-ui schema: %v", msgs)
	}
	return nil
}

// serializeUiSchema is used by callers persisting a loaded UiSchema back
// into HelmChart.ValuesUI (a raw JSON column in internal/dbstore).
func serializeUiSchema(schema UiSchema) ([]byte, error) {
	b, err := schema.toJSON()
	if err != nil {
		return nil, fmt.Errorf("serializing ui schema: %w", err)
	}
	return b, nil
}
