package chartext

// Lifecycle declares the create/update/delete hooks a resource type
// offers; any of the three may be nil, meaning that transition is a
// no-op success (spec.md §4.7).
type Lifecycle struct {
	Create *LifecycleHook `json:"create,omitempty"`
	Update *LifecycleHook `json:"update,omitempty"`
	Delete *LifecycleHook `json:"delete,omitempty"`
}

// LifecycleHook is the action a resource sync transition invokes, with
// an optional role override distinct from the type's own default.
type LifecycleHook struct {
	Target      Target `json:"target"`
	AllowedRole string `json:"allowed_role,omitempty"`
}

// ResourceTypeSpec is the body of a declared resource type.
type ResourceTypeSpec struct {
	NameSingular string    `json:"name_singular"`
	NamePlural   string    `json:"name_plural"`
	Global       bool      `json:"global"`
	ValuesUI     *UiSchema `json:"values_ui,omitempty"`
	Lifecycle    Lifecycle `json:"lifecycle"`
}

// ResourceType is one chart-declared custom resource type (spec.md
// §4.4): a stable key plus its spec.
type ResourceType struct {
	Key  string           `json:"key"`
	Spec ResourceTypeSpec `json:"spec"`
}

// HookFor returns the lifecycle hook for a resource sync transition
// name ("create", "update", "delete"), or nil if none is declared.
func (r ResourceType) HookFor(transition string) *LifecycleHook {
	switch transition {
	case "create":
		return r.Spec.Lifecycle.Create
	case "update":
		return r.Spec.Lifecycle.Update
	case "delete":
		return r.Spec.Lifecycle.Delete
	default:
		return nil
	}
}
