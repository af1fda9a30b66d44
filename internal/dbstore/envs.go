package dbstore

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/platzio/platz/internal/perr"
)

// CreateEnv inserts a new Env.
func (s *Store) CreateEnv(ctx context.Context, e *Env) (*Env, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	var out Env
	err := s.tx(ctx, func(tx *sqlx.Tx) error {
		q, args := mustSQL(psql.Insert("envs").
			Columns("id", "name", "node_selector", "tolerations", "auto_add_new_users").
			Values(e.ID, e.Name, e.NodeSelector, e.Tolerations, e.AutoAddNewUsers).
			Suffix("RETURNING *"))
		return tx.GetContext(ctx, &out, q, args...)
	})
	if err != nil {
		return nil, translateConstraintErr(err, "creating env %s", e.Name)
	}
	s.publish(ChangeEvent{Operation: OpInsert, Table: "envs", ID: out.ID.String()})
	return &out, nil
}

// GetEnv fetches an Env by id.
func (s *Store) GetEnv(ctx context.Context, id uuid.UUID) (*Env, error) {
	var out Env
	q, args := mustSQL(psql.Select("*").From("envs").Where(sq.Eq{"id": id}))
	err := s.db.GetContext(ctx, &out, q, args...)
	if err != nil {
		return nil, requireRow(err, "env %s not found", id)
	}
	return &out, nil
}

// ListEnvs returns a filtered, paginated page of envs.
func (s *Store) ListEnvs(ctx context.Context, filters []Filter, page PageRequest) (*Page[Env], error) {
	return listPage[Env](ctx, s, "envs", filters, page)
}

// UpdateEnv updates the mutable fields of an Env and publishes a change event.
func (s *Store) UpdateEnv(ctx context.Context, id uuid.UUID, fn func(*Env)) (*Env, error) {
	var out Env
	err := s.tx(ctx, func(tx *sqlx.Tx) error {
		var current Env
		q, args := mustSQL(psql.Select("*").From("envs").Where(sq.Eq{"id": id}).Suffix("FOR UPDATE"))
		if err := tx.GetContext(ctx, &current, q, args...); err != nil {
			return requireRow(err, "env %s not found", id)
		}
		fn(&current)
		uq, uargs := mustSQL(psql.Update("envs").
			Set("name", current.Name).
			Set("node_selector", current.NodeSelector).
			Set("tolerations", current.Tolerations).
			Set("auto_add_new_users", current.AutoAddNewUsers).
			Where(sq.Eq{"id": id}).
			Suffix("RETURNING *"))
		return tx.GetContext(ctx, &out, uq, uargs...)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ChangeEvent{Operation: OpUpdate, Table: "envs", ID: id.String()})
	return &out, nil
}

// DeleteEnv deletes env id, refusing (ConflictError) if any deployment
// exists in the env, and nulling K8sCluster.env_id for any cluster that
// referenced it (spec.md §3 global invariants, §8.6).
func (s *Store) DeleteEnv(ctx context.Context, id uuid.UUID) error {
	err := s.tx(ctx, func(tx *sqlx.Tx) error {
		var count int
		cq, cargs := mustSQL(psql.Select("count(*)").From("deployments d").
			Join("k8s_clusters c ON c.id = d.cluster_id").
			Where(sq.Eq{"c.env_id": id}))
		if err := tx.GetContext(ctx, &count, cq, cargs...); err != nil {
			return perr.Wrap(err, perr.DatabaseError, "counting deployments for env %s", id)
		}
		if count > 0 {
			return perr.New(perr.ConflictError, "env %s has %d active deployments", id, count)
		}

		nq, nargs := mustSQL(psql.Update("k8s_clusters").Set("env_id", nil).Where(sq.Eq{"env_id": id}))
		if _, err := tx.ExecContext(ctx, nq, nargs...); err != nil {
			return perr.Wrap(err, perr.DatabaseError, "clearing env_id on clusters of env %s", id)
		}

		dq, dargs := mustSQL(psql.Delete("envs").Where(sq.Eq{"id": id}))
		res, err := tx.ExecContext(ctx, dq, dargs...)
		if err != nil {
			return translateConstraintErr(err, "deleting env %s", id)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return perr.New(perr.NotFound, "env %s not found", id)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ChangeEvent{Operation: OpDelete, Table: "envs", ID: id.String()})
	return nil
}
