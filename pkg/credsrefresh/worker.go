// Package credsrefresh periodically rewrites the platz-creds secret for
// every enabled deployment, independently of any Helm operation, so a
// deployment's access token never runs past its lifetime between
// installs/upgrades (spec.md §4.5: "platz-creds ... written on every
// Install and on a periodic refresh, half the deployment-token
// lifetime").
package credsrefresh

import (
	"context"
	"log/slog"
	"time"

	"k8s.io/client-go/kubernetes"

	"github.com/platzio/platz/internal/config"
	"github.com/platzio/platz/internal/dbstore"
	"github.com/platzio/platz/internal/platzlog"
	"github.com/platzio/platz/pkg/clustertracker"
	"github.com/platzio/platz/pkg/taskengine"
)

// pageSize bounds each ListDeployments call; refreshAll walks every page
// rather than loading every enabled deployment at once.
const pageSize = 50

type Worker struct {
	platzlog.LogHolder

	store   *dbstore.Store
	tracker *clustertracker.Tracker
	cfg     config.Config
}

func New(store *dbstore.Store, tracker *clustertracker.Tracker, cfg config.Config) *Worker {
	w := &Worker{store: store, tracker: tracker, cfg: cfg}
	w.SetLogger(platzlog.NewHandler(platzlog.EnvDebugEnabled).WithAttrs([]slog.Attr{slog.String("component", "credsrefresh")}))
	return w
}

// Run refreshes every enabled deployment's platz-creds secret immediately
// and then every cfg.DeploymentTokenLifetime/2, until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.DeploymentTokenLifetime / 2)
	defer ticker.Stop()
	for {
		w.refreshAll(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// refreshAll walks every page of enabled deployments, refreshing each in
// turn. A single deployment's failure (unreachable cluster, stale kind)
// is logged and skipped rather than aborting the whole pass.
func (w *Worker) refreshAll(ctx context.Context) {
	for page := 1; ; page++ {
		result, err := w.store.ListDeployments(ctx,
			[]dbstore.Filter{dbstore.Eq("enabled", true)},
			dbstore.PageRequest{Page: page, PerPage: pageSize})
		if err != nil {
			w.Logger().Error("listing enabled deployments", "error", err)
			return
		}
		for i := range result.Items {
			w.refreshOne(ctx, &result.Items[i])
		}
		if len(result.Items) < pageSize {
			return
		}
	}
}

func (w *Worker) refreshOne(ctx context.Context, dep *dbstore.Deployment) {
	log := w.Logger().With("deployment_id", dep.ID)

	client, ok := w.tracker.Client(dep.ClusterID)
	if !ok {
		return
	}
	kind, err := w.store.GetDeploymentKind(ctx, dep.KindID)
	if err != nil {
		log.Error("loading deployment kind", "error", err)
		return
	}
	if err := refreshDeployment(ctx, client, dep, kind, w.cfg); err != nil {
		log.Error("refreshing platz-creds", "error", err)
	}
}

// refreshDeployment re-issues and re-applies one deployment's platz-creds
// secret. Factored out of refreshOne so it's testable without a live
// Store: dep and kind are already-loaded values, client is whatever
// clustertracker.Tracker.Client returned.
func refreshDeployment(ctx context.Context, client kubernetes.Interface, dep *dbstore.Deployment, kind *dbstore.DeploymentKind, cfg config.Config) error {
	namespace := taskengine.NamespaceName(kind.Name, dep.Name)
	token, serverURL, expiresAt, err := taskengine.IssueDeploymentToken(dep, cfg)
	if err != nil {
		return err
	}
	return taskengine.ApplyPlatzCreds(ctx, client, namespace, token, serverURL, expiresAt)
}
