package resolver

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/platzio/platz/internal/dbstore"
	"github.com/platzio/platz/internal/perr"
)

// unmarshalJSON decodes a dbstore.JSON column, treating an empty/nil
// column as an empty object rather than an error.
func unmarshalJSON(raw dbstore.JSON, out any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return perr.Wrap(err, perr.DatabaseError, "decoding stored json")
	}
	return nil
}

const (
	collectionDeployments = "deployments"
	collectionSecrets     = "secrets"
)

// deploymentProperties is the fixed property whitelist spec.md §4.3
// grants the built-in "deployments" collection.
var deploymentProperties = map[string]func(d *dbstore.Deployment) any{
	"id":             func(d *dbstore.Deployment) any { return d.ID.String() },
	"name":           func(d *dbstore.Deployment) any { return d.Name },
	"status":         func(d *dbstore.Deployment) any { return string(d.Status) },
	"cluster_id":     func(d *dbstore.Deployment) any { return d.ClusterID.String() },
	"kind_id":        func(d *dbstore.Deployment) any { return d.KindID.String() },
}

// The built-in "secrets" collection has no fixed property list: a
// property names an attribute inside the secret's JSON contents (see
// lookupSecret), and a name the contents lack is rejected as
// UnknownProperty.

// DBCollections implements CollectionSource against internal/dbstore.
// kindID scopes bare (unqualified) resource-type collection names to the
// current deployment's own kind; a name of the form "<kind-name>:<key>"
// (this model's rendering of spec.md §4.3's {deployment: kind, type:
// key} object form) looks up a resource type under a different kind.
type DBCollections struct {
	Store  *dbstore.Store
	KindID uuid.UUID
}

func (c DBCollections) LookupProperty(ctx context.Context, envID uuid.UUID, collection string, itemID string, property string) (any, error) {
	switch collection {
	case collectionDeployments:
		return c.lookupDeployment(ctx, itemID, property)
	case collectionSecrets:
		return c.lookupSecret(ctx, envID, itemID, property)
	default:
		return c.lookupResource(ctx, envID, collection, itemID, property)
	}
}

func (c DBCollections) lookupDeployment(ctx context.Context, itemID string, property string) (any, error) {
	id, err := uuid.Parse(itemID)
	if err != nil {
		return nil, perr.Resolver(perr.ReasonCollectionItemNotFound, "deployment id %q is not a valid uuid", itemID)
	}
	d, err := c.Store.GetDeployment(ctx, id)
	if err != nil {
		return nil, perr.Resolver(perr.ReasonCollectionItemNotFound, "deployment %s not found", itemID)
	}
	fn, ok := deploymentProperties[property]
	if !ok {
		return nil, perr.Resolver(perr.ReasonUnknownProperty, "property %s not allowed on deployments collection", property)
	}
	return fn(d), nil
}

func (c DBCollections) lookupSecret(ctx context.Context, envID uuid.UUID, itemID string, property string) (any, error) {
	id, err := uuid.Parse(itemID)
	if err != nil {
		return nil, perr.Resolver(perr.ReasonCollectionItemNotFound, "secret id %q is not a valid uuid", itemID)
	}
	sec, err := c.Store.GetSecret(ctx, id, envID)
	if err != nil {
		return nil, perr.Resolver(perr.ReasonCollectionItemNotFound, "secret %s not found in this env", itemID)
	}
	var contents map[string]any
	if err := unmarshalJSON(sec.Contents, &contents); err != nil {
		return nil, err
	}
	v, ok := contents[property]
	if !ok {
		return nil, perr.Resolver(perr.ReasonUnknownProperty, "secret %s has no attribute %s", itemID, property)
	}
	return v, nil
}

// lookupResource resolves a bare or "<kind-name>:<key>"-qualified
// resource-type collection name, then finds the item by id and returns
// an arbitrary property from its props (spec.md §4.3: "resource-type
// collections allow any property present on the resource's props").
func (c DBCollections) lookupResource(ctx context.Context, envID uuid.UUID, collection string, itemID string, property string) (any, error) {
	kindID := c.KindID
	key := collection
	if idx := strings.IndexByte(collection, ':'); idx >= 0 {
		key = collection[idx+1:]
		kind, err := c.Store.GetDeploymentKindByName(ctx, collection[:idx])
		if err != nil {
			return nil, perr.Resolver(perr.ReasonUnsupportedCollection, "unknown deployment kind %q in collection %q", collection[:idx], collection)
		}
		kindID = kind.ID
	}

	rt, err := c.Store.FindResourceType(ctx, envID, kindID, key)
	if err != nil {
		return nil, perr.Resolver(perr.ReasonUnsupportedCollection, "collection %q is not a known resource type", collection)
	}

	id, err := uuid.Parse(itemID)
	if err != nil {
		return nil, perr.Resolver(perr.ReasonCollectionItemNotFound, "resource id %q is not a valid uuid", itemID)
	}
	r, err := c.Store.GetResource(ctx, id)
	if err != nil || r.TypeID != rt.ID {
		return nil, perr.Resolver(perr.ReasonCollectionItemNotFound, "resource %s not found in collection %q", itemID, collection)
	}

	var props map[string]any
	if err := unmarshalJSON(r.Props, &props); err != nil {
		return nil, err
	}
	v, ok := props[property]
	if !ok {
		return nil, perr.Resolver(perr.ReasonUnknownProperty, "resource %s has no property %s", itemID, property)
	}
	return v, nil
}
