// Package resourcesync implements the Resource Sync Worker (spec.md
// §4.7): it drives user-declared DeploymentResources through their
// declared create/update/delete lifecycle hooks and records the
// outcome back onto the row.
package resourcesync

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/platzio/platz/internal/config"
	"github.com/platzio/platz/internal/dbstore"
	"github.com/platzio/platz/internal/eventbus"
	"github.com/platzio/platz/internal/perr"
	"github.com/platzio/platz/internal/platzlog"
	"github.com/platzio/platz/pkg/chartext"
	"github.com/platzio/platz/pkg/taskengine"
)

// Worker reconciles DeploymentResources until its context is canceled.
type Worker struct {
	platzlog.LogHolder

	store *dbstore.Store
	http  *http.Client
	cfg   config.Config
}

// New builds a Worker.
func New(store *dbstore.Store, cfg config.Config) *Worker {
	w := &Worker{store: store, cfg: cfg, http: &http.Client{Timeout: 30 * time.Second}}
	w.SetLogger(platzlog.NewHandler(platzlog.EnvDebugEnabled).WithAttrs([]slog.Attr{slog.String("component", "resourcesync")}))
	return w
}

// Run reconciles pending resources on cfg.ResourceSyncPollInterval, and
// immediately whenever bus reports a deployment_resources change, until
// ctx is canceled (spec.md §5).
func (w *Worker) Run(ctx context.Context, bus *eventbus.Bus) error {
	sub := bus.Subscribe("deployment_resources")
	defer sub.Unsubscribe()

	ticker := time.NewTicker(w.cfg.ResourceSyncPollInterval)
	defer ticker.Stop()

	for {
		w.drainPending(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-sub.Events:
		case <-sub.Closed:
			return nil
		}
	}
}

// drainPending reconciles every resource not yet Ready.
func (w *Worker) drainPending(ctx context.Context) {
	resources, err := w.store.ListPendingResources(ctx)
	if err != nil {
		w.Logger().Error("listing pending resources", "error", err)
		return
	}
	for i := range resources {
		w.reconcile(ctx, &resources[i])
	}
}

// reconcile runs one resource's lifecycle transition and records the
// outcome: Ready (and, if it was Deleting, a hard delete) on success,
// Error with a reason on failure (spec.md §4.7).
func (w *Worker) reconcile(ctx context.Context, r *dbstore.DeploymentResource) {
	log := w.Logger().With("resource_id", r.ID, "sync_status", r.SyncStatus)

	if err := w.sync(ctx, r); err != nil {
		msg := err.Error()
		if _, uerr := w.store.UpdateResourceSync(ctx, r.ID, dbstore.SyncError, &msg); uerr != nil {
			log.Error("recording resource sync failure", "error", uerr)
		}
		return
	}

	if !r.Exists {
		if err := w.store.HardDeleteResource(ctx, r.ID); err != nil {
			log.Error("hard-deleting resource", "error", err)
		}
		return
	}

	if _, err := w.store.UpdateResourceSync(ctx, r.ID, dbstore.SyncReady, nil); err != nil {
		log.Error("marking resource ready", "error", err)
	}
}

// sync invokes the lifecycle hook for r's current transition, or
// succeeds as a no-op if the resource's type declares none.
func (w *Worker) sync(ctx context.Context, r *dbstore.DeploymentResource) error {
	rt, err := w.store.GetResourceType(ctx, r.TypeID)
	if err != nil {
		return err
	}
	var spec chartext.ResourceTypeSpec
	if len(rt.Spec) > 0 {
		if err := json.Unmarshal(rt.Spec, &spec); err != nil {
			return perr.Wrap(err, perr.ChartExtensionError, "decoding resource type %s", rt.Key)
		}
	}
	resourceType := chartext.ResourceType{Key: rt.Key, Spec: spec}

	hook := resourceType.HookFor(transitionFor(r))
	if hook == nil {
		return nil
	}
	return w.invokeHook(ctx, r, hook)
}

// transitionFor maps a resource's current state to the lifecycle hook
// it should invoke. A resource already marked as not existing is always
// retried as a delete, regardless of what left it in Error; otherwise
// Error retries as an update, since by the time a resource has a row to
// retry it has already been through at least one create attempt and an
// update hook is expected to reconcile the full desired state (spec.md
// §4.7: "the next change event retries").
func transitionFor(r *dbstore.DeploymentResource) string {
	if !r.Exists {
		return "delete"
	}
	if r.SyncStatus == dbstore.SyncCreating {
		return "create"
	}
	return "update"
}

// invokeHook issues the hook's HTTP request against the owning
// deployment's ingress, resolved by the same hostname rules as
// taskengine's InvokeAction (spec.md §4.7).
func (w *Worker) invokeHook(ctx context.Context, r *dbstore.DeploymentResource, hook *chartext.LifecycleHook) error {
	if r.DeploymentID == nil {
		return perr.New(perr.ValidationError, "resource %s has no owning deployment", r.ID)
	}
	dep, err := w.store.GetDeployment(ctx, *r.DeploymentID)
	if err != nil {
		return perr.Wrap(err, perr.DatabaseError, "loading deployment %s", *r.DeploymentID)
	}
	kind, err := w.store.GetDeploymentKind(ctx, dep.KindID)
	if err != nil {
		return perr.Wrap(err, perr.DatabaseError, "loading deployment kind %s", dep.KindID)
	}
	cluster, err := w.store.GetCluster(ctx, dep.ClusterID)
	if err != nil {
		return perr.Wrap(err, perr.DatabaseError, "loading cluster %s", dep.ClusterID)
	}
	chart, err := w.store.GetHelmChart(ctx, dep.HelmChartID)
	if err != nil {
		return perr.Wrap(err, perr.DatabaseError, "loading helm chart %s", dep.HelmChartID)
	}

	hostname, err := hostnameForDeployment(dep, kind, cluster, chart)
	if err != nil {
		return err
	}
	return sendHook(ctx, w.http, hostname, hook, r.Props)
}

// hostnameForDeployment resolves the ingress hostname a lifecycle hook
// (or, in taskengine, an Action) targets, given the deployment's chart
// declares ingress enabled (spec.md §4.4, §4.7).
func hostnameForDeployment(dep *dbstore.Deployment, kind *dbstore.DeploymentKind, cluster *dbstore.K8sCluster, chart *dbstore.HelmChart) (string, error) {
	var features chartext.Features
	if len(chart.Features) > 0 {
		if err := json.Unmarshal(chart.Features, &features); err != nil {
			return "", perr.Wrap(err, perr.ChartExtensionError, "decoding chart %s features", chart.ID)
		}
	}
	if !features.Ingress.Enabled {
		return "", perr.New(perr.ValidationError, "deployment %s's chart has no ingress", dep.ID)
	}
	domain := ""
	if cluster.IngressDomain != nil {
		domain = *cluster.IngressDomain
	}
	return taskengine.RenderHostname(features.Ingress.HostnameFormat, kind.Name, dep.Name, domain)
}

// sendHook issues the hook's HTTP request with body as the raw request
// payload (the resource's own props; lifecycle hooks declare no UI
// schema to resolve inputs through, unlike chart actions).
func sendHook(ctx context.Context, client *http.Client, hostname string, hook *chartext.LifecycleHook, body []byte) error {
	url := "https://" + hostname + hook.Target.Path
	req, err := http.NewRequestWithContext(ctx, string(hook.Target.Method), url, bytes.NewReader(body))
	if err != nil {
		return perr.Wrap(err, perr.HelmExecutionError, "building lifecycle hook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return perr.Wrap(err, perr.HelmExecutionError, "invoking lifecycle hook")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return perr.New(perr.HelmExecutionError, "lifecycle hook returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
