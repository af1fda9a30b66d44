package dbstore

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/platzio/platz/internal/perr"
)

// DiscoveredCluster is the structured description the Cluster Tracker's
// inbound channel carries (spec.md §4.6).
type DiscoveredCluster struct {
	ProviderID string
	Name       string
	Region     string
}

// UpsertCluster reconciles a discovered cluster: insert on first sight,
// refresh last_seen_at/name/region on conflict (spec.md §4.6).
func (s *Store) UpsertCluster(ctx context.Context, d DiscoveredCluster) (*K8sCluster, error) {
	var out K8sCluster
	err := s.tx(ctx, func(tx *sqlx.Tx) error {
		q, args := mustSQL(psql.Insert("k8s_clusters").
			Columns("id", "provider_id", "name", "region", "is_ok", "last_seen_at").
			Values(uuid.New(), d.ProviderID, d.Name, d.Region, true, sq.Expr("now()")).
			Suffix(`ON CONFLICT (provider_id) DO UPDATE SET
				name = EXCLUDED.name,
				region = EXCLUDED.region,
				last_seen_at = now()
				RETURNING *`))
		return tx.GetContext(ctx, &out, q, args...)
	})
	if err != nil {
		return nil, perr.Wrap(err, perr.DatabaseError, "upserting cluster %s", d.ProviderID)
	}
	s.publish(ChangeEvent{Operation: OpInsert, Table: "k8s_clusters", ID: out.ID.String()})
	return &out, nil
}

// GetCluster fetches a K8sCluster by id.
func (s *Store) GetCluster(ctx context.Context, id uuid.UUID) (*K8sCluster, error) {
	var out K8sCluster
	q, args := mustSQL(psql.Select("*").From("k8s_clusters").Where(sq.Eq{"id": id}))
	if err := s.db.GetContext(ctx, &out, q, args...); err != nil {
		return nil, requireRow(err, "cluster %s not found", id)
	}
	return &out, nil
}

// ListClusters returns a filtered, paginated page of clusters.
func (s *Store) ListClusters(ctx context.Context, filters []Filter, page PageRequest) (*Page[K8sCluster], error) {
	return listPage[K8sCluster](ctx, s, "k8s_clusters", filters, page)
}

// ListUnignoredClusters returns every cluster that isn't soft-ignored,
// for the Cluster Tracker to watch (spec.md §4.6).
func (s *Store) ListUnignoredClusters(ctx context.Context) ([]K8sCluster, error) {
	var out []K8sCluster
	q, args := mustSQL(psql.Select("*").From("k8s_clusters").Where(sq.Eq{"ignore": false}))
	if err := s.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, perr.Wrap(err, perr.DatabaseError, "listing unignored clusters")
	}
	return out, nil
}

// SetClusterHealth records a watcher's health transition
// (is_ok=false,reason on crash; true,nil on (re)start), spec.md §4.6.
func (s *Store) SetClusterHealth(ctx context.Context, id uuid.UUID, ok bool, reason *string) error {
	q, args := mustSQL(psql.Update("k8s_clusters").
		Set("is_ok", ok).
		Set("not_ok_reason", reason).
		Where(sq.Eq{"id": id}))
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return perr.Wrap(err, perr.DatabaseError, "updating cluster %s health", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return perr.New(perr.NotFound, "cluster %s not found", id)
	}
	s.publish(ChangeEvent{Operation: OpUpdate, Table: "k8s_clusters", ID: id.String()})
	return nil
}

// UpdateCluster updates cluster fields that the (out-of-scope) admin API
// mutates directly (env_id, ingress settings, ignore).
func (s *Store) UpdateCluster(ctx context.Context, id uuid.UUID, fn func(*K8sCluster)) (*K8sCluster, error) {
	var out K8sCluster
	err := s.tx(ctx, func(tx *sqlx.Tx) error {
		var current K8sCluster
		q, args := mustSQL(psql.Select("*").From("k8s_clusters").Where(sq.Eq{"id": id}).Suffix("FOR UPDATE"))
		if err := tx.GetContext(ctx, &current, q, args...); err != nil {
			return requireRow(err, "cluster %s not found", id)
		}
		fn(&current)
		uq, uargs := mustSQL(psql.Update("k8s_clusters").
			Set("env_id", current.EnvID).
			Set("ingress_domain", current.IngressDomain).
			Set("ingress_class", current.IngressClass).
			Set("ingress_tls_secret_name", current.IngressTLSSecretName).
			Set("ignore", current.Ignore).
			Where(sq.Eq{"id": id}).
			Suffix("RETURNING *"))
		return tx.GetContext(ctx, &out, uq, uargs...)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ChangeEvent{Operation: OpUpdate, Table: "k8s_clusters", ID: id.String()})
	return &out, nil
}

// DeleteCluster deletes a cluster, refusing with ConflictError if any
// deployment still targets it.
func (s *Store) DeleteCluster(ctx context.Context, id uuid.UUID) error {
	err := s.tx(ctx, func(tx *sqlx.Tx) error {
		q, args := mustSQL(psql.Delete("k8s_clusters").Where(sq.Eq{"id": id}))
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return translateConstraintErr(err, "deleting cluster %s", id)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return perr.New(perr.NotFound, "cluster %s not found", id)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ChangeEvent{Operation: OpDelete, Table: "k8s_clusters", ID: id.String()})
	return nil
}
