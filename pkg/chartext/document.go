package chartext

import (
	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"
)

// DocKind names one of the four chart-extension documents spec.md §4.4
// reads from a chart's known subtree.
type DocKind string

const (
	DocValuesUI      DocKind = "values-ui"
	DocActions       DocKind = "actions"
	DocFeatures      DocKind = "features"
	DocResourceTypes DocKind = "resource_types"
)

// subtreeFile maps a DocKind to the filename the chart artifact carries
// it under, mirroring how the teacher's chart loader recognizes
// Chart.yaml/values.yaml/Chart.lock by fixed name within the archive.
var subtreeFile = map[DocKind]string{
	DocValuesUI:      "platz/values-ui.yaml",
	DocActions:       "platz/actions.yaml",
	DocFeatures:      "platz/features.yaml",
	DocResourceTypes: "platz/resource_types.yaml",
}

// envelope is the common shell every chart-extension document shares:
// an apiVersion tag the model dispatches on, with the rest of the
// document left as raw bytes until a version-specific parser claims it.
type envelope struct {
	APIVersion string `json:"apiVersion"`
}

// ParseError is a recorded, non-fatal failure to ingest one
// chart-extension document: unknown apiVersion, or a malformed body
// under an apiVersion the model does recognize. A chart carrying one of
// these stays `available=true` (spec.md §4.4).
type ParseError struct {
	Doc     DocKind
	Message string
}

func (e ParseError) Error() string {
	return string(e.Doc) + ": " + e.Message
}

// Extension is everything chartext extracted from one chart artifact's
// subtree: the four documents it could parse, plus any parse errors
// recorded along the way. A field is nil when the chart carries no file
// for that document at all (distinct from a parse error on a present
// file).
type Extension struct {
	ValuesUI      *UiSchema
	Actions       []Action
	Features      *Features
	ResourceTypes []ResourceType
	Errors        []ParseError
}

// Load extracts chartext documents from files, a chart artifact's
// flattened file list (name -> content), as the teacher's chart loader
// walks a BufferedFile slice rather than the filesystem directly -- the
// same shape an OCI chart pull or a local directory load both reduce to.
func Load(files map[string][]byte) Extension {
	var ext Extension

	if body, ok := files[subtreeFile[DocValuesUI]]; ok {
		if schema, err := loadValuesUI(body); err != nil {
			ext.Errors = append(ext.Errors, asParseError(DocValuesUI, err))
		} else {
			ext.ValuesUI = schema
		}
	}
	if body, ok := files[subtreeFile[DocActions]]; ok {
		if actions, err := loadActions(body); err != nil {
			ext.Errors = append(ext.Errors, asParseError(DocActions, err))
		} else {
			ext.Actions = actions
		}
	}
	if body, ok := files[subtreeFile[DocFeatures]]; ok {
		if features, err := loadFeatures(body); err != nil {
			ext.Errors = append(ext.Errors, asParseError(DocFeatures, err))
		} else {
			ext.Features = features
		}
	}
	if body, ok := files[subtreeFile[DocResourceTypes]]; ok {
		if types, err := loadResourceTypes(body); err != nil {
			ext.Errors = append(ext.Errors, asParseError(DocResourceTypes, err))
		} else {
			ext.ResourceTypes = types
		}
	}

	return ext
}

func asParseError(doc DocKind, err error) ParseError {
	return ParseError{Doc: doc, Message: err.Error()}
}

// apiVersionOf reads just the envelope's apiVersion field without
// committing to a full document parse.
func apiVersionOf(body []byte) (string, error) {
	var env envelope
	if err := yaml.Unmarshal(body, &env); err != nil {
		return "", errors.Wrap(err, "reading apiVersion")
	}
	if env.APIVersion == "" {
		return "", errors.New("missing apiVersion")
	}
	return env.APIVersion, nil
}

func loadValuesUI(body []byte) (*UiSchema, error) {
	v, err := apiVersionOf(body)
	if err != nil {
		return nil, err
	}
	switch v {
	case "platz.io/v1":
		schema, err := parseUiSchemaBody(body)
		if err != nil {
			return nil, err
		}
		return &schema, nil
	default:
		return nil, errors.Errorf("unknown values-ui apiVersion %q", v)
	}
}

func loadActions(body []byte) ([]Action, error) {
	v, err := apiVersionOf(body)
	if err != nil {
		return nil, err
	}
	switch v {
	case "platz.io/v1":
		var doc struct {
			Actions []Action `json:"actions"`
		}
		if err := yaml.Unmarshal(body, &doc); err != nil {
			return nil, errors.Wrap(err, "parsing actions body")
		}
		return doc.Actions, nil
	default:
		return nil, errors.Errorf("unknown actions apiVersion %q", v)
	}
}

func loadFeatures(body []byte) (*Features, error) {
	v, err := apiVersionOf(body)
	if err != nil {
		return nil, err
	}
	switch v {
	case "platz.io/v1":
		var f Features
		if err := yaml.Unmarshal(body, &f); err != nil {
			return nil, errors.Wrap(err, "parsing features body")
		}
		return &f, nil
	default:
		return nil, errors.Errorf("unknown features apiVersion %q", v)
	}
}

func loadResourceTypes(body []byte) ([]ResourceType, error) {
	v, err := apiVersionOf(body)
	if err != nil {
		return nil, err
	}
	switch v {
	case "platz.io/v1":
		var doc struct {
			Types []ResourceType `json:"types"`
		}
		if err := yaml.Unmarshal(body, &doc); err != nil {
			return nil, errors.Wrap(err, "parsing resource_types body")
		}
		return doc.Types, nil
	default:
		return nil, errors.Errorf("unknown resource_types apiVersion %q", v)
	}
}
