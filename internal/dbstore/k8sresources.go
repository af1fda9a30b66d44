package dbstore

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/platzio/platz/internal/perr"
)

// UpsertK8sResource is the Cluster Tracker's status-mirror write
// (spec.md §4.6): keyed by the workload's UID within its cluster,
// refreshing status_color/metadata/last_updated_at on every observation.
func (s *Store) UpsertK8sResource(ctx context.Context, r *K8sResource) (*K8sResource, error) {
	var out K8sResource
	err := s.tx(ctx, func(tx *sqlx.Tx) error {
		q, args := mustSQL(psql.Insert("k8s_resources").
			Columns("id", "cluster_id", "deployment_id", "kind", "api_version", "name", "uid",
				"status_color", "metadata", "last_updated_at").
			Values(uuid.New(), r.ClusterID, r.DeploymentID, r.Kind, r.APIVersion, r.Name, r.UID,
				r.StatusColor, r.Metadata, sq.Expr("now()")).
			Suffix(`ON CONFLICT (cluster_id, uid) DO UPDATE SET
				deployment_id = EXCLUDED.deployment_id,
				name = EXCLUDED.name,
				status_color = EXCLUDED.status_color,
				metadata = EXCLUDED.metadata,
				last_updated_at = now()
				RETURNING *`))
		return tx.GetContext(ctx, &out, q, args...)
	})
	if err != nil {
		return nil, perr.Wrap(err, perr.DatabaseError, "upserting k8s resource %s/%s", r.Kind, r.Name)
	}
	s.publish(ChangeEvent{Operation: OpInsert, Table: "k8s_resources", ID: out.ID.String()})
	return &out, nil
}

// ListK8sResourcesForDeployment returns every mirrored resource for a
// deployment, newest observation first.
func (s *Store) ListK8sResourcesForDeployment(ctx context.Context, deploymentID uuid.UUID) ([]K8sResource, error) {
	var out []K8sResource
	q, args := mustSQL(psql.Select("*").From("k8s_resources").
		Where(sq.Eq{"deployment_id": deploymentID}).
		OrderBy("last_updated_at DESC"))
	if err := s.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, perr.Wrap(err, perr.DatabaseError, "listing k8s resources for deployment %s", deploymentID)
	}
	return out, nil
}

// GarbageCollectStaleK8sResources deletes resources in clusterID not
// re-observed within one minute of watchStart (spec.md §4.6: "Resources
// not re-observed within one minute of a successful watch start are
// deleted").
func (s *Store) GarbageCollectStaleK8sResources(ctx context.Context, clusterID uuid.UUID, watchStart time.Time) (int64, error) {
	cutoff := watchStart.Add(time.Minute)
	if time.Now().Before(cutoff) {
		return 0, nil
	}
	q, args := mustSQL(psql.Delete("k8s_resources").
		Where(sq.Eq{"cluster_id": clusterID}).
		Where(sq.Lt{"last_updated_at": watchStart}))
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, perr.Wrap(err, perr.DatabaseError, "garbage collecting k8s resources for cluster %s", clusterID)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
