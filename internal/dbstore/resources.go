package dbstore

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/platzio/platz/internal/perr"
)

// UpsertResourceType upserts a chart's resource type declaration, unique
// per (env_id, deployment_kind_id, key) (spec.md §3, §4.5 "Resource-type
// upserts" on successful Install/Upgrade).
func (s *Store) UpsertResourceType(ctx context.Context, rt *DeploymentResourceType) (*DeploymentResourceType, error) {
	var out DeploymentResourceType
	err := s.tx(ctx, func(tx *sqlx.Tx) error {
		q, args := mustSQL(psql.Insert("deployment_resource_types").
			Columns("id", "env_id", "deployment_kind_id", "key", "spec").
			Values(uuid.New(), rt.EnvID, rt.DeploymentKindID, rt.Key, rt.Spec).
			Suffix(`ON CONFLICT (env_id, deployment_kind_id, key) DO UPDATE SET
				spec = EXCLUDED.spec RETURNING *`))
		return tx.GetContext(ctx, &out, q, args...)
	})
	if err != nil {
		return nil, perr.Wrap(err, perr.DatabaseError, "upserting resource type %s", rt.Key)
	}
	s.publish(ChangeEvent{Operation: OpInsert, Table: "deployment_resource_types", ID: out.ID.String()})
	return &out, nil
}

// GetResourceType fetches a resource type by id.
func (s *Store) GetResourceType(ctx context.Context, id uuid.UUID) (*DeploymentResourceType, error) {
	var out DeploymentResourceType
	q, args := mustSQL(psql.Select("*").From("deployment_resource_types").Where(sq.Eq{"id": id}))
	if err := s.db.GetContext(ctx, &out, q, args...); err != nil {
		return nil, requireRow(err, "resource type %s not found", id)
	}
	return &out, nil
}

// FindResourceType resolves a resource type by (env, kind, key), or
// globally (env_id IS NULL) if no env-scoped type matches -- the lookup
// the reference resolver uses to dispatch a `{deployment: kind, type: key}`
// collection name (spec.md §4.3).
func (s *Store) FindResourceType(ctx context.Context, envID uuid.UUID, kindID uuid.UUID, key string) (*DeploymentResourceType, error) {
	var out DeploymentResourceType
	q, args := mustSQL(psql.Select("*").From("deployment_resource_types").
		Where(sq.Eq{"deployment_kind_id": kindID, "key": key}).
		Where(sq.Or{sq.Eq{"env_id": envID}, sq.Eq{"env_id": nil}}).
		OrderBy("env_id NULLS LAST").
		Limit(1))
	if err := s.db.GetContext(ctx, &out, q, args...); err != nil {
		return nil, requireRow(err, "resource type %s/%s not found in env %s", kindID, key, envID)
	}
	return &out, nil
}

// ListResourceTypes returns a filtered, paginated page of resource types.
func (s *Store) ListResourceTypes(ctx context.Context, filters []Filter, page PageRequest) (*Page[DeploymentResourceType], error) {
	return listPage[DeploymentResourceType](ctx, s, "deployment_resource_types", filters, page)
}

// CreateResource inserts a new DeploymentResource in Creating status.
func (s *Store) CreateResource(ctx context.Context, r *DeploymentResource) (*DeploymentResource, error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.SyncStatus == "" {
		r.SyncStatus = SyncCreating
	}
	var out DeploymentResource
	err := s.tx(ctx, func(tx *sqlx.Tx) error {
		q, args := mustSQL(psql.Insert("deployment_resources").
			Columns("id", "type_id", "deployment_id", "name", "exists", "props", "sync_status").
			Values(r.ID, r.TypeID, r.DeploymentID, r.Name, true, r.Props, r.SyncStatus).
			Suffix("RETURNING *"))
		return tx.GetContext(ctx, &out, q, args...)
	})
	if err != nil {
		return nil, translateConstraintErr(err, "creating resource %s", r.Name)
	}
	s.publish(ChangeEvent{Operation: OpInsert, Table: "deployment_resources", ID: out.ID.String()})
	return &out, nil
}

// GetResource fetches a DeploymentResource by id.
func (s *Store) GetResource(ctx context.Context, id uuid.UUID) (*DeploymentResource, error) {
	var out DeploymentResource
	q, args := mustSQL(psql.Select("*").From("deployment_resources").Where(sq.Eq{"id": id}))
	if err := s.db.GetContext(ctx, &out, q, args...); err != nil {
		return nil, requireRow(err, "resource %s not found", id)
	}
	return &out, nil
}

// ListResources returns a filtered, paginated page of resources.
func (s *Store) ListResources(ctx context.Context, filters []Filter, page PageRequest) (*Page[DeploymentResource], error) {
	return listPage[DeploymentResource](ctx, s, "deployment_resources", filters, page)
}

// ListPendingResources returns every resource not yet at rest (Ready),
// for the Resource Sync Worker to reconcile (spec.md §4.7). Error rows
// are included so a later change event can retry them.
func (s *Store) ListPendingResources(ctx context.Context) ([]DeploymentResource, error) {
	var out []DeploymentResource
	q, args := mustSQL(psql.Select("*").From("deployment_resources").
		Where(sq.NotEq{"sync_status": SyncReady}).
		OrderBy("created_at ASC"))
	if err := s.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, perr.Wrap(err, perr.DatabaseError, "listing pending resources")
	}
	return out, nil
}

// UpdateResourceSync sets a resource's sync status/reason, the
// transition every lifecycle hook invocation in the Resource Sync
// Worker ends with (spec.md §4.7).
func (s *Store) UpdateResourceSync(ctx context.Context, id uuid.UUID, status ResourceSyncStatus, reason *string) (*DeploymentResource, error) {
	var out DeploymentResource
	q, args := mustSQL(psql.Update("deployment_resources").
		Set("sync_status", status).
		Set("sync_reason", reason).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING *"))
	err := s.db.GetContext(ctx, &out, q, args...)
	if err != nil {
		return nil, requireRow(err, "resource %s not found", id)
	}
	s.publish(ChangeEvent{Operation: OpUpdate, Table: "deployment_resources", ID: id.String()})
	return &out, nil
}

// MarkResourceDeleting flips exists=false, sync_status=Deleting so the
// sync worker can run the delete lifecycle hook before the row is
// actually removed (spec.md §3).
func (s *Store) MarkResourceDeleting(ctx context.Context, id uuid.UUID) (*DeploymentResource, error) {
	var out DeploymentResource
	q, args := mustSQL(psql.Update("deployment_resources").
		Set("exists", false).
		Set("sync_status", SyncDeleting).
		Set("sync_reason", nil).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING *"))
	err := s.db.GetContext(ctx, &out, q, args...)
	if err != nil {
		return nil, requireRow(err, "resource %s not found", id)
	}
	s.publish(ChangeEvent{Operation: OpUpdate, Table: "deployment_resources", ID: id.String()})
	return &out, nil
}

// HardDeleteResource removes the row once its delete lifecycle hook has
// succeeded (spec.md §4.7: "on Deleting the row is then hard-deleted").
func (s *Store) HardDeleteResource(ctx context.Context, id uuid.UUID) error {
	q, args := mustSQL(psql.Delete("deployment_resources").Where(sq.Eq{"id": id}))
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return perr.Wrap(err, perr.DatabaseError, "deleting resource %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return perr.New(perr.NotFound, "resource %s not found", id)
	}
	s.publish(ChangeEvent{Operation: OpDelete, Table: "deployment_resources", ID: id.String()})
	return nil
}
