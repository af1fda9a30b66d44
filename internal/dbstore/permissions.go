package dbstore

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/platzio/platz/internal/perr"
)

// CreateEnvUserPermission grants a user a role within an env.
func (s *Store) CreateEnvUserPermission(ctx context.Context, p *EnvUserPermission) (*EnvUserPermission, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	var out EnvUserPermission
	err := s.tx(ctx, func(tx *sqlx.Tx) error {
		q, args := mustSQL(psql.Insert("env_user_permissions").
			Columns("id", "env_id", "user_id", "role").
			Values(p.ID, p.EnvID, p.UserID, p.Role).
			Suffix(`ON CONFLICT (env_id, user_id) DO UPDATE SET role = EXCLUDED.role RETURNING *`))
		return tx.GetContext(ctx, &out, q, args...)
	})
	if err != nil {
		return nil, translateConstraintErr(err, "granting env permission to user %s", p.UserID)
	}
	s.publish(ChangeEvent{Operation: OpInsert, Table: "env_user_permissions", ID: out.ID.String()})
	return &out, nil
}

// ListEnvUserPermissions returns a filtered, paginated page of grants.
func (s *Store) ListEnvUserPermissions(ctx context.Context, filters []Filter, page PageRequest) (*Page[EnvUserPermission], error) {
	return listPage[EnvUserPermission](ctx, s, "env_user_permissions", filters, page)
}

// DeleteEnvUserPermission revokes a grant, refusing (ConflictError) if
// it would revoke the acting user (spec.md §3: "deletion forbidden if it
// would revoke the acting user").
func (s *Store) DeleteEnvUserPermission(ctx context.Context, id uuid.UUID, actingUserID uuid.UUID) error {
	err := s.tx(ctx, func(tx *sqlx.Tx) error {
		var current EnvUserPermission
		q, args := mustSQL(psql.Select("*").From("env_user_permissions").Where(sq.Eq{"id": id}).Suffix("FOR UPDATE"))
		if err := tx.GetContext(ctx, &current, q, args...); err != nil {
			return requireRow(err, "env user permission %s not found", id)
		}
		if current.UserID == actingUserID {
			return perr.New(perr.ConflictError, "cannot revoke your own env permission")
		}
		dq, dargs := mustSQL(psql.Delete("env_user_permissions").Where(sq.Eq{"id": id}))
		_, err := tx.ExecContext(ctx, dq, dargs...)
		return err
	})
	if err != nil {
		return err
	}
	s.publish(ChangeEvent{Operation: OpDelete, Table: "env_user_permissions", ID: id.String()})
	return nil
}

// CreateDeploymentPermission grants a user a kind-scoped role.
func (s *Store) CreateDeploymentPermission(ctx context.Context, p *DeploymentPermission) (*DeploymentPermission, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	var out DeploymentPermission
	err := s.tx(ctx, func(tx *sqlx.Tx) error {
		q, args := mustSQL(psql.Insert("deployment_permissions").
			Columns("id", "env_id", "user_id", "kind_id", "role").
			Values(p.ID, p.EnvID, p.UserID, p.KindID, p.Role).
			Suffix(`ON CONFLICT (env_id, user_id, kind_id) DO UPDATE SET role = EXCLUDED.role RETURNING *`))
		return tx.GetContext(ctx, &out, q, args...)
	})
	if err != nil {
		return nil, translateConstraintErr(err, "granting deployment permission to user %s", p.UserID)
	}
	s.publish(ChangeEvent{Operation: OpInsert, Table: "deployment_permissions", ID: out.ID.String()})
	return &out, nil
}

// ListDeploymentPermissions returns a filtered, paginated page of grants.
func (s *Store) ListDeploymentPermissions(ctx context.Context, filters []Filter, page PageRequest) (*Page[DeploymentPermission], error) {
	return listPage[DeploymentPermission](ctx, s, "deployment_permissions", filters, page)
}

// DeleteDeploymentPermission revokes a kind-scoped grant, refusing
// (ConflictError) if it would revoke the acting user.
func (s *Store) DeleteDeploymentPermission(ctx context.Context, id uuid.UUID, actingUserID uuid.UUID) error {
	err := s.tx(ctx, func(tx *sqlx.Tx) error {
		var current DeploymentPermission
		q, args := mustSQL(psql.Select("*").From("deployment_permissions").Where(sq.Eq{"id": id}).Suffix("FOR UPDATE"))
		if err := tx.GetContext(ctx, &current, q, args...); err != nil {
			return requireRow(err, "deployment permission %s not found", id)
		}
		if current.UserID == actingUserID {
			return perr.New(perr.ConflictError, "cannot revoke your own deployment permission")
		}
		dq, dargs := mustSQL(psql.Delete("deployment_permissions").Where(sq.Eq{"id": id}))
		_, err := tx.ExecContext(ctx, dq, dargs...)
		return err
	})
	if err != nil {
		return err
	}
	s.publish(ChangeEvent{Operation: OpDelete, Table: "deployment_permissions", ID: id.String()})
	return nil
}
