package taskengine

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/platzio/platz/internal/perr"
	"github.com/platzio/platz/pkg/chartext"
	"github.com/platzio/platz/pkg/resolver"
)

// InvokeAction issues the HTTP call spec.md §4.5 describes for an
// InvokeAction task: resolve the action's body through the reference
// resolver (or pass inputs through verbatim if it declares no UI
// schema), then call https://<hostname>/<path> with the action's method.
// A non-2xx response is a failed task.
func InvokeAction(ctx context.Context, httpClient *http.Client, r *resolver.Resolver, envID uuid.UUID, hostname string, action chartext.Action, inputs map[string]any) (string, error) {
	body, err := action.GenerateBody(inputs, func(schema chartext.UiSchema, in map[string]any) (map[string]any, error) {
		return r.ResolveValues(ctx, envID, schema, in)
	})
	if err != nil {
		return "", errors.Wrapf(err, "resolving action %s body", action.ID)
	}

	url := "https://" + hostname + action.Target.Path
	req, err := http.NewRequestWithContext(ctx, string(action.Target.Method), url, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrapf(err, "building request for action %s", action.ID)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", perr.Wrap(err, perr.HelmExecutionError, "invoking action %s", action.ID)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return string(respBody), perr.New(perr.HelmExecutionError, "action %s returned status %d", action.ID, resp.StatusCode)
	}
	return string(respBody), nil
}
