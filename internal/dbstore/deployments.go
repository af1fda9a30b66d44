package dbstore

import (
	"context"
	"encoding/json"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/platzio/platz/internal/perr"
)

// CreateDeployment inserts a new Deployment in its initial Installing
// status; the caller is responsible for also inserting the matching
// Install DeploymentTask in the same logical operation (spec.md §2: "API
// writes a Deployment row and inserts a DeploymentTask").
func (s *Store) CreateDeployment(ctx context.Context, d *Deployment) (*Deployment, error) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.Status == "" {
		d.Status = StatusInstalling
	}
	var out Deployment
	err := s.tx(ctx, func(tx *sqlx.Tx) error {
		q, args := mustSQL(psql.Insert("deployments").
			Columns("id", "name", "kind_id", "cluster_id", "enabled", "status",
				"helm_chart_id", "config", "values_override").
			Values(d.ID, d.Name, d.KindID, d.ClusterID, d.Enabled, d.Status,
				d.HelmChartID, d.Config, d.ValuesOverride).
			Suffix("RETURNING *"))
		return tx.GetContext(ctx, &out, q, args...)
	})
	if err != nil {
		return nil, translateConstraintErr(err, "creating deployment %s", d.Name)
	}
	s.publish(ChangeEvent{Operation: OpInsert, Table: "deployments", ID: out.ID.String()})
	return &out, nil
}

// GetDeployment fetches a Deployment by id.
func (s *Store) GetDeployment(ctx context.Context, id uuid.UUID) (*Deployment, error) {
	var out Deployment
	q, args := mustSQL(psql.Select("*").From("deployments").Where(sq.Eq{"id": id}))
	if err := s.db.GetContext(ctx, &out, q, args...); err != nil {
		return nil, requireRow(err, "deployment %s not found", id)
	}
	return &out, nil
}

// ListDeployments returns a filtered, paginated page of deployments.
func (s *Store) ListDeployments(ctx context.Context, filters []Filter, page PageRequest) (*Page[Deployment], error) {
	return listPage[Deployment](ctx, s, "deployments", filters, page)
}

// UpdateDeployment runs fn against the current row inside a
// SELECT ... FOR UPDATE transaction and persists the result -- used both
// by the (out-of-scope) API for config/enabled edits and by the task
// engine for status/revision_id transitions, so every mutation path
// shares one read-modify-write primitive.
func (s *Store) UpdateDeployment(ctx context.Context, id uuid.UUID, fn func(*Deployment) error) (*Deployment, error) {
	var out Deployment
	err := s.tx(ctx, func(tx *sqlx.Tx) error {
		var current Deployment
		q, args := mustSQL(psql.Select("*").From("deployments").Where(sq.Eq{"id": id}).Suffix("FOR UPDATE"))
		if err := tx.GetContext(ctx, &current, q, args...); err != nil {
			return requireRow(err, "deployment %s not found", id)
		}
		if err := fn(&current); err != nil {
			return err
		}
		uq, uargs := mustSQL(psql.Update("deployments").
			Set("name", current.Name).
			Set("enabled", current.Enabled).
			Set("status", current.Status).
			Set("helm_chart_id", current.HelmChartID).
			Set("config", current.Config).
			Set("values_override", current.ValuesOverride).
			Set("revision_id", current.RevisionID).
			Set("reported_status", current.ReportedStatus).
			Set("reason", current.Reason).
			Where(sq.Eq{"id": id}).
			Suffix("RETURNING *"))
		return tx.GetContext(ctx, &out, uq, uargs...)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ChangeEvent{Operation: OpUpdate, Table: "deployments", ID: id.String()})
	return &out, nil
}

// DeleteDeployment removes a deployment row (used when an Uninstall
// task finalizes from status=Deleting, spec.md §4.5/§4.6).
func (s *Store) DeleteDeployment(ctx context.Context, id uuid.UUID) error {
	q, args := mustSQL(psql.Delete("deployments").Where(sq.Eq{"id": id}))
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return translateConstraintErr(err, "deleting deployment %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return perr.New(perr.NotFound, "deployment %s not found", id)
	}
	s.publish(ChangeEvent{Operation: OpDelete, Table: "deployments", ID: id.String()})
	return nil
}

// FindUsing returns every deployment that has a revision (revision_id
// set) and whose chart values_ui declares a CollectionSelect input of the
// given collection name whose config value equals itemID (or, for an
// array input, contains it). The chart is the deployment row's current
// helm_chart_id; deployment_tasks records no chart of its own, so the
// chart a revision task was run with is not consulted.
//
// Matching happens in Go rather than as a single SQL predicate because
// the test is over the cross product of each deployment's config JSON
// keys and its chart's values_ui input definitions, not over a single
// indexable column.
func (s *Store) FindUsing(ctx context.Context, collection string, itemID uuid.UUID) ([]Deployment, error) {
	type row struct {
		Deployment
		ValuesUI JSON `db:"values_ui"`
	}
	var rows []row
	q, args := mustSQL(psql.Select("d.*", "c.values_ui").
		From("deployments d").
		Join("deployment_tasks t ON t.id = d.revision_id").
		Join("helm_charts c ON c.id = d.helm_chart_id"))
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, perr.Wrap(err, perr.DatabaseError, "scanning deployments for FindUsing(%s)", collection)
	}

	var out []Deployment
	for _, r := range rows {
		inputIDs, err := inputsSelectingCollection(r.ValuesUI, collection)
		if err != nil {
			continue // chart extension parse failure: not this deployment's problem to surface here
		}
		var config map[string]json.RawMessage
		if err := json.Unmarshal(r.Config, &config); err != nil {
			continue
		}
		for _, inputID := range inputIDs {
			raw, ok := config[inputID]
			if !ok {
				continue
			}
			var val string
			if err := json.Unmarshal(raw, &val); err == nil && val == itemID.String() {
				out = append(out, r.Deployment)
				break
			}
			var arr []string
			if err := json.Unmarshal(raw, &arr); err == nil {
				for _, v := range arr {
					if v == itemID.String() {
						out = append(out, r.Deployment)
						break
					}
				}
			}
		}
	}
	return out, nil
}

// inputsSelectingCollection returns the input ids of every
// CollectionSelect input in valuesUI whose named collection matches name.
// This is a minimal local decoder of the JSON pkg/chartext persists for a
// UiSchema (an "inputs" list of objects carrying id, type and
// collection), so dbstore does not import pkg/chartext.
func inputsSelectingCollection(valuesUI JSON, name string) ([]string, error) {
	if len(valuesUI) == 0 {
		return nil, nil
	}
	var doc struct {
		Inputs []struct {
			ID         string `json:"id"`
			Type       string `json:"type"`
			Collection string `json:"collection"`
		} `json:"inputs"`
	}
	if err := json.Unmarshal(valuesUI, &doc); err != nil {
		return nil, err
	}
	var ids []string
	for _, in := range doc.Inputs {
		if in.Type == "CollectionSelect" && in.Collection == name {
			ids = append(ids, in.ID)
		}
	}
	return ids, nil
}
