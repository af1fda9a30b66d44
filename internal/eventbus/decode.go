package eventbus

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/platzio/platz/internal/dbstore"
)

// decodeChangeEvent parses a NOTIFY payload produced by the
// notify_row_change trigger the initial migration installs on every
// table. Store.publish does not send NOTIFY payloads; it hands same-process
// events to the Notifier directly. The trigger's payload serializes as
// {"operation":"Insert","table":"deployments","data":{"id":"..."}}.
func decodeChangeEvent(payload string) (dbstore.ChangeEvent, error) {
	var raw struct {
		Operation dbstore.Operation `json:"operation"`
		Table     string            `json:"table"`
		Data      struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return dbstore.ChangeEvent{}, errors.Wrap(err, "decoding change event payload")
	}
	if raw.Table == "" {
		return dbstore.ChangeEvent{}, errors.Errorf("change event payload missing table: %s", payload)
	}
	return dbstore.ChangeEvent{
		Operation: raw.Operation,
		Table:     raw.Table,
		ID:        raw.Data.ID,
	}, nil
}
