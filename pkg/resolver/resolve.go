package resolver

import (
	"context"

	"github.com/google/uuid"

	"github.com/platzio/platz/internal/perr"
	"github.com/platzio/platz/pkg/chartext"
)

// RenderedSecret is one resolved secret output: a name and its
// attributes in the chart author's declared order (spec.md §4.3).
type RenderedSecret struct {
	Name  string
	Attrs []SecretAttr
}

// SecretAttr is one resolved attribute within a RenderedSecret.
type SecretAttr struct {
	Key   string
	Value string
}

// ref resolves a single reference against schema/inputs, dispatching on
// its Kind and honoring the referenced input's showIfAll presence rule.
// When the referenced input is absent: if it (or the output that names
// it) is required, resolution fails with MissingInputValue; otherwise
// ref reports ok=false so the caller omits the destination output.
func (r *Resolver) ref(ctx context.Context, envID uuid.UUID, schema chartext.UiSchema, inputs map[string]any, fref chartext.Ref, outputRequired bool) (any, bool, error) {
	in, ok := schema.InputByID(fref.Input)
	if !ok {
		return nil, false, perr.Resolver(perr.ReasonMissingInputValue, "input %s not declared in values-ui", fref.Input)
	}

	if !isInputPresent(in, inputs) {
		if outputRequired || in.Required {
			return nil, false, perr.Resolver(perr.ReasonMissingInputValue, "required input %s is not present", fref.Input)
		}
		return nil, false, nil
	}
	raw := inputs[fref.Input]

	switch fref.Kind {
	case chartext.RefFieldValue:
		v, err := resolveFieldValue(in, raw)
		return v, true, err
	case chartext.RefFieldProperty:
		v, err := r.resolveFieldProperty(ctx, envID, in, raw, fref.Property)
		return v, true, err
	default:
		return nil, false, perr.Resolver(perr.ReasonMissingInputValue, "unknown reference kind %q", fref.Kind)
	}
}

// ResolveValues resolves every ValueOutput declared in schema against
// inputs, returning a flat path->value map (dotted-path expansion into
// nested chart values is the caller's -- pkg/taskengine's --
// responsibility).
func (r *Resolver) ResolveValues(ctx context.Context, envID uuid.UUID, schema chartext.UiSchema, inputs map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(schema.Values))
	for _, vo := range schema.Values {
		val, ok, err := r.ref(ctx, envID, schema, inputs, vo.Ref, false)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out[vo.Path] = val
	}
	return out, nil
}

// ResolveSecrets resolves every SecretOutput declared in schema against
// inputs.
func (r *Resolver) ResolveSecrets(ctx context.Context, envID uuid.UUID, schema chartext.UiSchema, inputs map[string]any) ([]RenderedSecret, error) {
	out := make([]RenderedSecret, 0, len(schema.Secrets))
	for _, so := range schema.Secrets {
		rendered := RenderedSecret{Name: so.Name}
		for _, attr := range so.Attrs {
			val, ok, err := r.ref(ctx, envID, schema, inputs, attr.Ref, false)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			s, err := stringify(val)
			if err != nil {
				return nil, err
			}
			rendered.Attrs = append(rendered.Attrs, SecretAttr{Key: attr.Key, Value: s})
		}
		out = append(out, rendered)
	}
	return out, nil
}
