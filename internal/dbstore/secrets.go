package dbstore

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/platzio/platz/internal/perr"
)

// CreateSecret inserts a new Secret. Contents is the owner of sensitive
// strings referenced by chart inputs and is never serialized outward by
// anything in this package -- callers that marshal a Secret for any
// external surface must explicitly opt into including Contents.
func (s *Store) CreateSecret(ctx context.Context, sec *Secret) (*Secret, error) {
	if sec.ID == uuid.Nil {
		sec.ID = uuid.New()
	}
	var out Secret
	err := s.tx(ctx, func(tx *sqlx.Tx) error {
		q, args := mustSQL(psql.Insert("secrets").
			Columns("id", "env_id", "collection", "name", "contents").
			Values(sec.ID, sec.EnvID, sec.Collection, sec.Name, sec.Contents).
			Suffix("RETURNING *"))
		return tx.GetContext(ctx, &out, q, args...)
	})
	if err != nil {
		return nil, translateConstraintErr(err, "creating secret %s", sec.Name)
	}
	s.publish(ChangeEvent{Operation: OpInsert, Table: "secrets", ID: out.ID.String()})
	return &out, nil
}

// GetSecret fetches a Secret by id, scoped to callerEnvID (spec.md §4.3
// cross-env isolation: "resolving a secret verifies secret.env_id ==
// caller_env_id"). A secret in another env is reported as perr.NotFound,
// matching the CollectionItemNotFound resolver reason rather than
// leaking existence across envs.
func (s *Store) GetSecret(ctx context.Context, id uuid.UUID, callerEnvID uuid.UUID) (*Secret, error) {
	var out Secret
	q, args := mustSQL(psql.Select("*").From("secrets").Where(sq.Eq{"id": id, "env_id": callerEnvID}))
	if err := s.db.GetContext(ctx, &out, q, args...); err != nil {
		return nil, requireRow(err, "secret %s not found in env %s", id, callerEnvID)
	}
	return &out, nil
}

// ListSecrets returns a filtered, paginated page of secrets.
func (s *Store) ListSecrets(ctx context.Context, filters []Filter, page PageRequest) (*Page[Secret], error) {
	return listPage[Secret](ctx, s, "secrets", filters, page)
}

// UpdateSecret updates a secret's contents.
func (s *Store) UpdateSecret(ctx context.Context, id uuid.UUID, contents JSON) (*Secret, error) {
	var out Secret
	q, args := mustSQL(psql.Update("secrets").Set("contents", contents).Where(sq.Eq{"id": id}).Suffix("RETURNING *"))
	err := s.db.GetContext(ctx, &out, q, args...)
	if err != nil {
		return nil, requireRow(err, "secret %s not found", id)
	}
	s.publish(ChangeEvent{Operation: OpUpdate, Table: "secrets", ID: id.String()})
	return &out, nil
}

// DeleteSecret deletes a secret by id.
func (s *Store) DeleteSecret(ctx context.Context, id uuid.UUID) error {
	q, args := mustSQL(psql.Delete("secrets").Where(sq.Eq{"id": id}))
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return translateConstraintErr(err, "deleting secret %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return perr.New(perr.NotFound, "secret %s not found", id)
	}
	s.publish(ChangeEvent{Operation: OpDelete, Table: "secrets", ID: id.String()})
	return nil
}
