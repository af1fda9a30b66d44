package chartext

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// HTTPMethod restricts an action target to the methods spec.md §4.4
// allows.
type HTTPMethod string

const (
	MethodGET    HTTPMethod = "GET"
	MethodPOST   HTTPMethod = "POST"
	MethodPUT    HTTPMethod = "PUT"
	MethodPATCH  HTTPMethod = "PATCH"
	MethodDELETE HTTPMethod = "DELETE"
)

// Target names the HTTP call an action or resource-type lifecycle hook
// issues against the owning deployment's ingress.
type Target struct {
	Endpoint string     `json:"endpoint"`
	Path     string     `json:"path"`
	Method   HTTPMethod `json:"method"`
}

// Action is one chart-declared action endpoint: an id, the minimum role
// allowed to invoke it, its HTTP target, and an optional UI schema its
// request body is resolved against.
type Action struct {
	ID          string    `json:"id"`
	AllowedRole string    `json:"allowed_role"`
	Target      Target    `json:"target"`
	UiSchema    *UiSchema `json:"ui_schema,omitempty"`
}

// GenerateBody resolves inputs through the action's declared UI schema
// via resolve, the caller-supplied per-field resolution function
// (pkg/resolver.Resolve in production). If the action declares no UI
// schema the body passes through verbatim (spec.md §4.4).
func (a Action) GenerateBody(inputs map[string]any, resolve func(UiSchema, map[string]any) (map[string]any, error)) (json.RawMessage, error) {
	if a.UiSchema == nil {
		return json.Marshal(inputs)
	}
	resolved, err := resolve(*a.UiSchema, inputs)
	if err != nil {
		return nil, errors.Wrapf(err, "generating body for action %s", a.ID)
	}
	return json.Marshal(resolved)
}
