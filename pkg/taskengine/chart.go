package taskengine

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/platzio/platz/internal/dbstore"
	"github.com/platzio/platz/pkg/chartext"
)

// decodedChart is a HelmChart's four JSON columns decoded back into
// their pkg/chartext shapes. Any column the chart never populated stays
// at its zero value (spec.md §4.4: a chart may carry none, some, or all
// of the four extension documents).
type decodedChart struct {
	ValuesUI      chartext.UiSchema
	Actions       []chartext.Action
	Features      chartext.Features
	ResourceTypes []chartext.ResourceType
}

func decodeChart(c *dbstore.HelmChart) (decodedChart, error) {
	var d decodedChart
	if len(c.ValuesUI) > 0 {
		if err := json.Unmarshal(c.ValuesUI, &d.ValuesUI); err != nil {
			return d, errors.Wrap(err, "decoding values-ui")
		}
	}
	if len(c.ActionsSchema) > 0 {
		if err := json.Unmarshal(c.ActionsSchema, &d.Actions); err != nil {
			return d, errors.Wrap(err, "decoding actions")
		}
	}
	if len(c.Features) > 0 {
		if err := json.Unmarshal(c.Features, &d.Features); err != nil {
			return d, errors.Wrap(err, "decoding features")
		}
	}
	if len(c.ResourceTypes) > 0 {
		if err := json.Unmarshal(c.ResourceTypes, &d.ResourceTypes); err != nil {
			return d, errors.Wrap(err, "decoding resource_types")
		}
	}
	return d, nil
}

// actionByID finds a chart-declared action, or reports ok=false.
func (d decodedChart) actionByID(id string) (chartext.Action, bool) {
	for _, a := range d.Actions {
		if a.ID == id {
			return a, true
		}
	}
	return chartext.Action{}, false
}
