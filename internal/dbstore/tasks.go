package dbstore

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/platzio/platz/internal/perr"
)

// CreateTask inserts a new DeploymentTask in Pending status. ExecuteAt
// defaults to now if unset.
func (s *Store) CreateTask(ctx context.Context, t *DeploymentTask) (*DeploymentTask, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = TaskPending
	}
	now := time.Now()
	if t.ExecuteAt == nil {
		t.ExecuteAt = &now
	}
	var out DeploymentTask
	err := s.tx(ctx, func(tx *sqlx.Tx) error {
		q, args := mustSQL(psql.Insert("deployment_tasks").
			Columns("id", "deployment_id", "cluster_id", "acting_user_id", "acting_deployment_id",
				"operation", "status", "execute_at").
			Values(t.ID, t.DeploymentID, t.ClusterID, t.ActingUserID, t.ActingDeploymentID,
				t.Operation, t.Status, t.ExecuteAt).
			Suffix("RETURNING *"))
		return tx.GetContext(ctx, &out, q, args...)
	})
	if err != nil {
		return nil, translateConstraintErr(err, "creating task for deployment %s", t.DeploymentID)
	}
	s.publish(ChangeEvent{Operation: OpInsert, Table: "deployment_tasks", ID: out.ID.String()})
	return &out, nil
}

// GetTask fetches a DeploymentTask by id.
func (s *Store) GetTask(ctx context.Context, id uuid.UUID) (*DeploymentTask, error) {
	var out DeploymentTask
	q, args := mustSQL(psql.Select("*").From("deployment_tasks").Where(sq.Eq{"id": id}))
	if err := s.db.GetContext(ctx, &out, q, args...); err != nil {
		return nil, requireRow(err, "task %s not found", id)
	}
	return &out, nil
}

// ListTasks returns a filtered, paginated page of tasks.
func (s *Store) ListTasks(ctx context.Context, filters []Filter, page PageRequest) (*Page[DeploymentTask], error) {
	return listPage[DeploymentTask](ctx, s, "deployment_tasks", filters, page)
}

// ClaimNextTask is the Task Engine's selection primitive (spec.md §4.5,
// §5): fetch the oldest Pending task whose execute_at has arrived and
// whose cluster_id is in ownedClusters, and atomically advance it to
// Started. The UPDATE ... WHERE status='Pending' RETURNING * is the
// serialization point; if another worker's claim already won, this
// returns (nil, nil) rather than an error so the caller just tries the
// next task. There is deliberately no SELECT ... FOR UPDATE first: two
// workers racing both attempt the conditional UPDATE directly, and
// Postgres's row-level locking during the UPDATE itself ensures exactly
// one of them affects a row.
func (s *Store) ClaimNextTask(ctx context.Context, ownedClusters []uuid.UUID) (*DeploymentTask, error) {
	if len(ownedClusters) == 0 {
		return nil, nil
	}

	var candidate DeploymentTask
	q, args := mustSQL(psql.Select("id").From("deployment_tasks").
		Where(sq.Eq{"status": TaskPending}).
		Where(sq.Eq{"cluster_id": ownedClusters}).
		Where(sq.LtOrEq{"execute_at": time.Now()}).
		OrderBy("created_at ASC").
		Limit(1))
	if err := s.db.GetContext(ctx, &candidate, q, args...); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, perr.Wrap(err, perr.DatabaseError, "selecting next pending task")
	}

	now := time.Now()
	var out DeploymentTask
	uq, uargs := mustSQL(psql.Update("deployment_tasks").
		Set("status", TaskStarted).
		Set("started_at", now).
		Set("first_attempted_at", sq.Expr("COALESCE(first_attempted_at, ?)", now)).
		Where(sq.Eq{"id": candidate.ID}).
		Where(sq.Eq{"status": TaskPending}).
		Suffix("RETURNING *"))
	err := s.db.GetContext(ctx, &out, uq, uargs...)
	if err != nil {
		// Another worker won the race; not an error, just nothing claimed.
		if isNoRows(err) {
			return nil, nil
		}
		return nil, perr.Wrap(err, perr.DatabaseError, "claiming task %s", candidate.ID)
	}
	s.publish(ChangeEvent{Operation: OpUpdate, Table: "deployment_tasks", ID: out.ID.String()})
	return &out, nil
}

// FinishTask advances a Started task to its terminal Done/Failed state.
// Terminal states are sticky (spec.md §8.2): this only ever transitions
// out of Started.
func (s *Store) FinishTask(ctx context.Context, id uuid.UUID, status TaskStatus, reason *string) (*DeploymentTask, error) {
	if status != TaskDone && status != TaskFailed {
		return nil, perr.New(perr.ValidationError, "FinishTask status must be Done or Failed, got %s", status)
	}
	var out DeploymentTask
	q, args := mustSQL(psql.Update("deployment_tasks").
		Set("status", status).
		Set("finished_at", time.Now()).
		Set("reason", reason).
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"status": TaskStarted}).
		Suffix("RETURNING *"))
	err := s.db.GetContext(ctx, &out, q, args...)
	if err != nil {
		return nil, requireRow(err, "task %s not in Started status", id)
	}
	s.publish(ChangeEvent{Operation: OpUpdate, Table: "deployment_tasks", ID: id.String()})
	return &out, nil
}

// CancelTask cancels a not-yet-started task whose execute_at is still
// more than 5 minutes away (spec.md §4.5 "Cancellation"). by identifies
// either the acting user or a system reason (SPEC_FULL.md §C.3).
func (s *Store) CancelTask(ctx context.Context, id uuid.UUID, byUser *uuid.UUID, bySystem *string, reason string) (*DeploymentTask, error) {
	var out DeploymentTask
	err := s.tx(ctx, func(tx *sqlx.Tx) error {
		var current DeploymentTask
		q, args := mustSQL(psql.Select("*").From("deployment_tasks").Where(sq.Eq{"id": id}).Suffix("FOR UPDATE"))
		if err := tx.GetContext(ctx, &current, q, args...); err != nil {
			return requireRow(err, "task %s not found", id)
		}
		if current.Status != TaskPending {
			return perr.New(perr.ConflictError, "task %s is %s, not Pending", id, current.Status)
		}
		if current.ExecuteAt == nil || time.Until(*current.ExecuteAt) <= 5*time.Minute {
			return perr.New(perr.ConflictError, "task %s executes within 5 minutes, cannot cancel", id)
		}
		uq, uargs := mustSQL(psql.Update("deployment_tasks").
			Set("status", TaskCanceled).
			Set("finished_at", time.Now()).
			Set("reason", reason).
			Set("canceled_by_user_id", byUser).
			Set("canceled_by_system", bySystem).
			Where(sq.Eq{"id": id}).
			Suffix("RETURNING *"))
		return tx.GetContext(ctx, &out, uq, uargs...)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ChangeEvent{Operation: OpUpdate, Table: "deployment_tasks", ID: id.String()})
	return &out, nil
}
