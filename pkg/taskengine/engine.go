// Package taskengine implements the Task Engine (spec.md §4.5): the
// durable queue consumer that claims DeploymentTasks, drives each
// deployment's operation to completion against its target cluster, and
// reports the outcome back onto the row.
package taskengine

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"k8s.io/client-go/kubernetes"

	"github.com/platzio/platz/internal/config"
	"github.com/platzio/platz/internal/dbstore"
	"github.com/platzio/platz/internal/eventbus"
	"github.com/platzio/platz/internal/perr"
	"github.com/platzio/platz/internal/platzlog"
	"github.com/platzio/platz/pkg/clustertracker"
	"github.com/platzio/platz/pkg/registryauth"
	"github.com/platzio/platz/pkg/resolver"
)

// Engine claims and executes DeploymentTasks until its context is
// canceled.
type Engine struct {
	platzlog.LogHolder

	store        *dbstore.Store
	tracker      *clustertracker.Tracker
	registryAuth registryauth.Auth
	http         *http.Client
	cfg          config.Config
	ownClient    kubernetes.Interface
}

// New builds an Engine. tracker supplies per-target-cluster clients and
// the set of clusters this process owns tasks for; ownClient is the
// engine's own (controlling) cluster, where executor pods are launched;
// regAuth resolves the executor pod's registry login parameters
// (spec.md §9).
func New(store *dbstore.Store, tracker *clustertracker.Tracker, ownClient kubernetes.Interface, regAuth registryauth.Auth, cfg config.Config) *Engine {
	e := &Engine{store: store, tracker: tracker, ownClient: ownClient, registryAuth: regAuth, http: &http.Client{Timeout: 30 * time.Second}, cfg: cfg}
	e.SetLogger(platzlog.NewHandler(platzlog.EnvDebugEnabled).WithAttrs([]slog.Attr{slog.String("component", "taskengine")}))
	return e
}

// resolverFor builds a Reference Resolver scoped to kindID: a bare
// (unqualified) resource-type collection reference falls back to the
// calling deployment's own kind (spec.md §4.3), so the resolver can't be
// built once for the whole Engine -- it's rebuilt per task from the
// task's own deployment kind.
func (e *Engine) resolverFor(kindID uuid.UUID) *resolver.Resolver {
	return resolver.New(resolver.DBCollections{Store: e.store, KindID: kindID})
}

// Run polls for claimable tasks on cfg.TaskPollInterval, and immediately
// whenever bus reports a deployment_tasks change, until ctx is canceled
// (spec.md §5: "at least every 60s, or immediately on a relevant change
// event").
func (e *Engine) Run(ctx context.Context, bus *eventbus.Bus) error {
	sub := bus.Subscribe("deployment_tasks")
	defer sub.Unsubscribe()

	ticker := time.NewTicker(e.cfg.TaskPollInterval)
	defer ticker.Stop()

	for {
		e.drainQueue(ctx)

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

// drainQueue claims and executes tasks until none are left for this
// engine's owned clusters.
func (e *Engine) drainQueue(ctx context.Context) {
	for {
		task, err := e.store.ClaimNextTask(ctx, e.tracker.GetIDs())
		if err != nil {
			e.Logger().Error("claiming next task", "error", err)
			return
		}
		if task == nil {
			return
		}
		e.executeTask(ctx, task)
	}
}

// executeTask runs one claimed task to completion, always finishing it
// Done or Failed (spec.md §4.5: a claimed task never stays Started).
func (e *Engine) executeTask(ctx context.Context, task *dbstore.DeploymentTask) {
	log := e.Logger().With("task_id", task.ID, "deployment_id", task.DeploymentID)

	reason, err := e.runOperation(ctx, task)
	status := dbstore.TaskDone
	var reasonPtr *string
	if err != nil {
		status = dbstore.TaskFailed
		msg := err.Error()
		reasonPtr = &msg
		log.Error("task failed", "error", err)
	} else if reason != "" {
		reasonPtr = &reason
	}

	if _, err := e.store.FinishTask(ctx, task.ID, status, reasonPtr); err != nil {
		log.Error("finishing task", "error", err)
	}
}

// runTaskContext is everything a single task's operation needs loaded
// once up front.
type runTaskContext struct {
	task       *dbstore.DeploymentTask
	deployment *dbstore.Deployment
	kind       *dbstore.DeploymentKind
	cluster    *dbstore.K8sCluster
	env        *dbstore.Env
	chart      *dbstore.HelmChart
	decoded    decodedChart
	client     kubernetes.Interface
	namespace  string
}

func (e *Engine) loadContext(ctx context.Context, task *dbstore.DeploymentTask) (*runTaskContext, error) {
	dep, err := e.store.GetDeployment(ctx, task.DeploymentID)
	if err != nil {
		return nil, perr.Wrap(err, perr.DatabaseError, "loading deployment %s", task.DeploymentID)
	}
	kind, err := e.store.GetDeploymentKind(ctx, dep.KindID)
	if err != nil {
		return nil, perr.Wrap(err, perr.DatabaseError, "loading deployment kind %s", dep.KindID)
	}
	cluster, err := e.store.GetCluster(ctx, task.ClusterID)
	if err != nil {
		return nil, perr.Wrap(err, perr.DatabaseError, "loading cluster %s", task.ClusterID)
	}
	var env *dbstore.Env
	if cluster.EnvID != nil {
		env, err = e.store.GetEnv(ctx, *cluster.EnvID)
		if err != nil {
			return nil, perr.Wrap(err, perr.DatabaseError, "loading env %s", *cluster.EnvID)
		}
	}
	chart, err := e.store.GetHelmChart(ctx, dep.HelmChartID)
	if err != nil {
		return nil, perr.Wrap(err, perr.DatabaseError, "loading helm chart %s", dep.HelmChartID)
	}
	decoded, err := decodeChart(chart)
	if err != nil {
		return nil, perr.Wrap(err, perr.ChartExtensionError, "decoding chart %s", chart.ID)
	}
	client, ok := e.tracker.Client(task.ClusterID)
	if !ok {
		return nil, perr.New(perr.NotFound, "cluster %s has no live client", task.ClusterID)
	}

	return &runTaskContext{
		task:       task,
		deployment: dep,
		kind:       kind,
		cluster:    cluster,
		env:        env,
		chart:      chart,
		decoded:    decoded,
		client:     client,
		namespace:  NamespaceName(kind.Name, dep.Name),
	}, nil
}

// runOperation decodes the task's operation and dispatches it, returning
// a reason string for an otherwise-successful task (e.g. an action's
// response body) or an error that fails the task.
func (e *Engine) runOperation(ctx context.Context, task *dbstore.DeploymentTask) (string, error) {
	op, err := Decode(task.Operation)
	if err != nil {
		return "", perr.Wrap(err, perr.ValidationError, "decoding task operation")
	}

	rc, err := e.loadContext(ctx, task)
	if err != nil {
		return "", err
	}

	switch op.Kind {
	case KindInstall:
		return "", e.install(ctx, rc)
	case KindUpgrade:
		return "", e.upgrade(ctx, rc)
	case KindReinstall:
		return "", e.reinstall(ctx, rc)
	case KindRecreate:
		return "", e.recreate(ctx, rc, op.Recreate)
	case KindUninstall:
		return "", e.uninstall(ctx, rc)
	case KindInvokeAction:
		return e.invokeAction(ctx, rc, op.InvokeAction)
	case KindRestartK8sResource:
		return "", e.restartResource(ctx, rc, op.RestartK8sResource)
	default:
		return "", perr.New(perr.ValidationError, "unknown operation kind %q", op.Kind)
	}
}

func (e *Engine) invokeAction(ctx context.Context, rc *runTaskContext, op *InvokeActionOp) (string, error) {
	if op == nil {
		return "", perr.New(perr.ValidationError, "invoke_action operation missing its payload")
	}
	action, ok := rc.decoded.actionByID(op.ActionID)
	if !ok {
		return "", perr.New(perr.NotFound, "chart %s declares no action %q", rc.chart.ID, op.ActionID)
	}
	hostname, err := e.hostnameFor(rc)
	if err != nil {
		return "", err
	}
	envID := uuid.Nil
	if rc.env != nil {
		envID = rc.env.ID
	}
	return InvokeAction(ctx, e.http, e.resolverFor(rc.kind.ID), envID, hostname, action, op.Inputs)
}

func (e *Engine) restartResource(ctx context.Context, rc *runTaskContext, op *RestartK8sResourceOp) error {
	if op == nil {
		return perr.New(perr.ValidationError, "restart_k8s_resource operation missing its payload")
	}
	return RestartK8sResource(ctx, rc.client, rc.namespace, op.Kind, op.Name)
}

func (e *Engine) hostnameFor(rc *runTaskContext) (string, error) {
	if !rc.decoded.Features.Ingress.Enabled {
		return "", perr.New(perr.ValidationError, "deployment %s's chart has no ingress", rc.deployment.ID)
	}
	domain := ""
	if rc.cluster.IngressDomain != nil {
		domain = *rc.cluster.IngressDomain
	}
	return RenderHostname(rc.decoded.Features.Ingress.HostnameFormat, rc.kind.Name, rc.deployment.Name, domain)
}
