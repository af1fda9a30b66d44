package dbstore

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/platzio/platz/internal/perr"
)

// EnsureDeploymentKind registers a kind implicitly when charts are
// indexed (spec.md §3: "Registered implicitly when charts are indexed").
func (s *Store) EnsureDeploymentKind(ctx context.Context, name string) (*DeploymentKind, error) {
	var out DeploymentKind
	err := s.tx(ctx, func(tx *sqlx.Tx) error {
		q, args := mustSQL(psql.Insert("deployment_kinds").
			Columns("id", "name").
			Values(uuid.New(), name).
			Suffix("ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name RETURNING *"))
		return tx.GetContext(ctx, &out, q, args...)
	})
	if err != nil {
		return nil, perr.Wrap(err, perr.DatabaseError, "ensuring deployment kind %s", name)
	}
	return &out, nil
}

// GetDeploymentKind fetches a kind by id.
func (s *Store) GetDeploymentKind(ctx context.Context, id uuid.UUID) (*DeploymentKind, error) {
	var out DeploymentKind
	q, args := mustSQL(psql.Select("*").From("deployment_kinds").Where(sq.Eq{"id": id}))
	if err := s.db.GetContext(ctx, &out, q, args...); err != nil {
		return nil, requireRow(err, "deployment kind %s not found", id)
	}
	return &out, nil
}

// ListDeploymentKinds returns a filtered, paginated page of kinds.
func (s *Store) ListDeploymentKinds(ctx context.Context, filters []Filter, page PageRequest) (*Page[DeploymentKind], error) {
	return listPage[DeploymentKind](ctx, s, "deployment_kinds", filters, page)
}

// GetDeploymentKindByName looks up a kind by its unique name, used by
// pkg/resolver to dispatch a qualified "{deployment: kind, type: key}"
// collection reference (spec.md §4.3) to the kind it names.
func (s *Store) GetDeploymentKindByName(ctx context.Context, name string) (*DeploymentKind, error) {
	var out DeploymentKind
	q, args := mustSQL(psql.Select("*").From("deployment_kinds").Where(sq.Eq{"name": name}))
	if err := s.db.GetContext(ctx, &out, q, args...); err != nil {
		return nil, requireRow(err, "deployment kind %s not found", name)
	}
	return &out, nil
}

// EnsureHelmRegistry auto-creates a registry on chart ingestion
// (spec.md §3: "Auto-created on chart ingestion").
func (s *Store) EnsureHelmRegistry(ctx context.Context, domainName, repoName string, kindID uuid.UUID) (*HelmRegistry, error) {
	var out HelmRegistry
	err := s.tx(ctx, func(tx *sqlx.Tx) error {
		q, args := mustSQL(psql.Insert("helm_registries").
			Columns("id", "domain_name", "repo_name", "kind_id").
			Values(uuid.New(), domainName, repoName, kindID).
			Suffix(`ON CONFLICT (domain_name, repo_name) DO UPDATE SET
				domain_name = EXCLUDED.domain_name RETURNING *`))
		return tx.GetContext(ctx, &out, q, args...)
	})
	if err != nil {
		return nil, perr.Wrap(err, perr.DatabaseError, "ensuring helm registry %s/%s", domainName, repoName)
	}
	return &out, nil
}

// GetHelmRegistry fetches a registry by id.
func (s *Store) GetHelmRegistry(ctx context.Context, id uuid.UUID) (*HelmRegistry, error) {
	var out HelmRegistry
	q, args := mustSQL(psql.Select("*").From("helm_registries").Where(sq.Eq{"id": id}))
	if err := s.db.GetContext(ctx, &out, q, args...); err != nil {
		return nil, requireRow(err, "helm registry %s not found", id)
	}
	return &out, nil
}

// CreateHelmChart inserts a chart version. Charts are immutable once
// inserted except for Available/Error (spec.md §3); re-ingesting the
// same (helm_registry_id, image_tag) updates digest/extension fields
// in place rather than erroring, since registry re-pushes of a mutable
// tag are expected.
func (s *Store) CreateHelmChart(ctx context.Context, c *HelmChart) (*HelmChart, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	var out HelmChart
	err := s.tx(ctx, func(tx *sqlx.Tx) error {
		q, args := mustSQL(psql.Insert("helm_charts").
			Columns("id", "helm_registry_id", "image_digest", "image_tag", "available",
				"values_ui", "actions_schema", "features", "resource_types", "error",
				"version", "branch", "commit", "revision").
			Values(c.ID, c.HelmRegistryID, c.ImageDigest, c.ImageTag, c.Available,
				c.ValuesUI, c.ActionsSchema, c.Features, c.ResourceTypes, c.Error,
				c.Version, c.Branch, c.Commit, c.Revision).
			Suffix(`ON CONFLICT (helm_registry_id, image_tag) DO UPDATE SET
				image_digest = EXCLUDED.image_digest,
				available = EXCLUDED.available,
				values_ui = EXCLUDED.values_ui,
				actions_schema = EXCLUDED.actions_schema,
				features = EXCLUDED.features,
				resource_types = EXCLUDED.resource_types,
				error = EXCLUDED.error,
				version = EXCLUDED.version,
				branch = EXCLUDED.branch,
				commit = EXCLUDED.commit,
				revision = EXCLUDED.revision
				RETURNING *`))
		return tx.GetContext(ctx, &out, q, args...)
	})
	if err != nil {
		return nil, perr.Wrap(err, perr.DatabaseError, "creating helm chart %s:%s", c.HelmRegistryID, c.ImageTag)
	}
	s.publish(ChangeEvent{Operation: OpInsert, Table: "helm_charts", ID: out.ID.String()})
	return &out, nil
}

// SetHelmChartError records a chart-extension parse failure: the chart
// stays Available=true so existing deployments keep working, but Error
// is set (spec.md §4.4: "Unknown versions cause ingestion to record
// error but leave the chart available=true").
func (s *Store) SetHelmChartError(ctx context.Context, id uuid.UUID, reason string) error {
	q, args := mustSQL(psql.Update("helm_charts").Set("error", reason).Where(sq.Eq{"id": id}))
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return perr.Wrap(err, perr.DatabaseError, "setting chart %s error", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return perr.New(perr.NotFound, "helm chart %s not found", id)
	}
	s.publish(ChangeEvent{Operation: OpUpdate, Table: "helm_charts", ID: id.String()})
	return nil
}

// GetHelmChart fetches a chart by id.
func (s *Store) GetHelmChart(ctx context.Context, id uuid.UUID) (*HelmChart, error) {
	var out HelmChart
	q, args := mustSQL(psql.Select("*").From("helm_charts").Where(sq.Eq{"id": id}))
	if err := s.db.GetContext(ctx, &out, q, args...); err != nil {
		return nil, requireRow(err, "helm chart %s not found", id)
	}
	return &out, nil
}

// ListHelmCharts returns a filtered, paginated page of charts.
func (s *Store) ListHelmCharts(ctx context.Context, filters []Filter, page PageRequest) (*Page[HelmChart], error) {
	return listPage[HelmChart](ctx, s, "helm_charts", filters, page)
}
