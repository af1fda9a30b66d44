package chartext

import (
	"encoding/json"
	"strings"
)

// IngestedChart is the chartext-derived subset of dbstore.HelmChart's
// columns: the four raw JSON documents plus a combined error string.
// Ingestion always leaves Available=true (spec.md §4.4); that column
// lives on dbstore.HelmChart and is set by the caller, not here.
type IngestedChart struct {
	ValuesUI      []byte
	ActionsSchema []byte
	Features      []byte
	ResourceTypes []byte
	Error         *string
}

// Ingest converts a chart artifact's file list into the four
// HelmChart.* JSON columns and a combined parse-error message. A
// document chartext couldn't parse is simply omitted from its column
// (left nil) rather than blocking ingestion of the other three.
func Ingest(files map[string][]byte) (IngestedChart, error) {
	ext := Load(files)
	var out IngestedChart

	if ext.ValuesUI != nil {
		b, err := serializeUiSchema(*ext.ValuesUI)
		if err != nil {
			return IngestedChart{}, err
		}
		out.ValuesUI = b
	}
	if ext.Actions != nil {
		b, err := json.Marshal(ext.Actions)
		if err != nil {
			return IngestedChart{}, err
		}
		out.ActionsSchema = b
	}
	if ext.Features != nil {
		b, err := json.Marshal(ext.Features)
		if err != nil {
			return IngestedChart{}, err
		}
		out.Features = b
	}
	if ext.ResourceTypes != nil {
		b, err := json.Marshal(ext.ResourceTypes)
		if err != nil {
			return IngestedChart{}, err
		}
		out.ResourceTypes = b
	}

	if len(ext.Errors) > 0 {
		msgs := make([]string, len(ext.Errors))
		for i, e := range ext.Errors {
			msgs[i] = e.Error()
		}
		joined := strings.Join(msgs, "; ")
		out.Error = &joined
	}

	return out, nil
}
