package clustertracker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/informers"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/cache"

	"github.com/google/uuid"

	"github.com/platzio/platz/internal/dbstore"
)

const (
	namespaceLabelSelector = "platz=yes"
	deploymentAnnotation   = "platz_deployment_id"

	crashBackoff = 5 * time.Second
	gcInterval   = time.Minute
)

// watcher is the per-cluster supervisor spec.md §4.6 describes: a single
// kube client watching platz-labeled namespaces and, across all
// namespaces, Deployment/StatefulSet/Job workloads, mirroring status into
// internal/dbstore and reporting cluster health.
type watcher struct {
	store      *dbstore.Store
	logger     *slog.Logger
	clusterID  uuid.UUID
	client     kubernetes.Interface
	kubeconfig []byte

	cancel context.CancelFunc
	done   chan struct{}

	mu          sync.RWMutex
	namespaceOf map[string]uuid.UUID // namespace name -> owning deployment id
}

func newWatcher(store *dbstore.Store, logger *slog.Logger, clusterID uuid.UUID, client kubernetes.Interface, kubeconfig []byte) *watcher {
	return &watcher{
		store:       store,
		logger:      logger.With(slog.String("cluster_id", clusterID.String())),
		clusterID:   clusterID,
		client:      client,
		kubeconfig:  kubeconfig,
		namespaceOf: make(map[string]uuid.UUID),
	}
}

// start launches the watcher's run loop. Safe to call once per watcher.
func (w *watcher) start(ctx context.Context) {
	wctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.run(wctx)
}

// stop cancels the watcher's context and waits for its goroutine to exit.
func (w *watcher) stop() {
	if w.cancel != nil {
		w.cancel()
	}
	if w.done != nil {
		<-w.done
	}
}

// run crash-loops watchOnce with a fixed backoff (spec.md §4.6), marking
// the cluster unhealthy on failure and healthy again on each (re)start.
func (w *watcher) run(ctx context.Context) {
	defer close(w.done)
	for {
		_ = w.store.SetClusterHealth(ctx, w.clusterID, true, nil)
		err := w.watchOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			reason := err.Error()
			w.logger.Error("cluster watch failed", "error", err)
			_ = w.store.SetClusterHealth(ctx, w.clusterID, false, &reason)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(crashBackoff):
		}
	}
}

// watchOnce runs a single watch session until ctx is canceled or the
// informers fail to sync. It returns nil on clean shutdown.
func (w *watcher) watchOnce(ctx context.Context) error {
	watchStart := time.Now()

	nsFactory := informers.NewSharedInformerFactoryWithOptions(w.client, 30*time.Second,
		informers.WithTweakListOptions(func(opts *metav1.ListOptions) {
			opts.LabelSelector = namespaceLabelSelector
		}))
	nsInformer := nsFactory.Core().V1().Namespaces().Informer()
	if _, err := nsInformer.AddEventHandler(cache.ResourceEventHandlerFuncs{
		AddFunc:    func(obj any) { w.handleNamespaceUpsert(obj) },
		UpdateFunc: func(_, newObj any) { w.handleNamespaceUpsert(newObj) },
		DeleteFunc: func(obj any) { w.handleNamespaceDelete(ctx, obj) },
	}); err != nil {
		return err
	}

	workloadFactory := informers.NewSharedInformerFactory(w.client, 30*time.Second)
	depInformer := workloadFactory.Apps().V1().Deployments().Informer()
	stsInformer := workloadFactory.Apps().V1().StatefulSets().Informer()
	jobInformer := workloadFactory.Batch().V1().Jobs().Informer()

	if _, err := depInformer.AddEventHandler(cache.ResourceEventHandlerFuncs{
		AddFunc:    func(obj any) { w.handleDeployment(ctx, obj) },
		UpdateFunc: func(_, newObj any) { w.handleDeployment(ctx, newObj) },
	}); err != nil {
		return err
	}
	if _, err := stsInformer.AddEventHandler(cache.ResourceEventHandlerFuncs{
		AddFunc:    func(obj any) { w.handleStatefulSet(ctx, obj) },
		UpdateFunc: func(_, newObj any) { w.handleStatefulSet(ctx, newObj) },
	}); err != nil {
		return err
	}
	if _, err := jobInformer.AddEventHandler(cache.ResourceEventHandlerFuncs{
		AddFunc:    func(obj any) { w.handleJob(ctx, obj) },
		UpdateFunc: func(_, newObj any) { w.handleJob(ctx, newObj) },
	}); err != nil {
		return err
	}

	nsFactory.Start(ctx.Done())
	workloadFactory.Start(ctx.Done())

	if !cache.WaitForCacheSync(ctx.Done(), nsInformer.HasSynced, depInformer.HasSynced, stsInformer.HasSynced, jobInformer.HasSynced) {
		return errors.New("timed out waiting for informer caches to sync")
	}
	w.logger.Info("cluster watch established")

	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := w.store.GarbageCollectStaleK8sResources(ctx, w.clusterID, watchStart)
			if err != nil {
				w.logger.Error("garbage collecting stale resources", "error", err)
				continue
			}
			if n > 0 {
				w.logger.Debug("garbage collected stale resources", "count", n)
			}
		}
	}
}

func (w *watcher) handleNamespaceUpsert(obj any) {
	ns, ok := obj.(*corev1.Namespace)
	if !ok {
		return
	}
	raw, ok := ns.Annotations[deploymentAnnotation]
	if !ok {
		return
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		w.logger.Warn("namespace has malformed deployment annotation", "namespace", ns.Name, "value", raw)
		return
	}
	w.mu.Lock()
	w.namespaceOf[ns.Name] = id
	w.mu.Unlock()
}

// handleNamespaceDelete implements spec.md §4.6's namespace-deletion
// transitions: Uninstalling deployments become Uninstalled, Deleting
// deployments are removed entirely.
func (w *watcher) handleNamespaceDelete(ctx context.Context, obj any) {
	ns, ok := obj.(*corev1.Namespace)
	if !ok {
		tombstone, ok := obj.(cache.DeletedFinalStateUnknown)
		if !ok {
			return
		}
		ns, ok = tombstone.Obj.(*corev1.Namespace)
		if !ok {
			return
		}
	}

	w.mu.Lock()
	deploymentID, tracked := w.namespaceOf[ns.Name]
	delete(w.namespaceOf, ns.Name)
	w.mu.Unlock()

	if !tracked {
		if raw, ok := ns.Annotations[deploymentAnnotation]; ok {
			if id, err := uuid.Parse(raw); err == nil {
				deploymentID, tracked = id, true
			}
		}
	}
	if !tracked {
		return
	}

	d, err := w.store.GetDeployment(ctx, deploymentID)
	if err != nil {
		return
	}

	switch d.Status {
	case dbstore.StatusDeleting:
		if err := w.store.DeleteDeployment(ctx, deploymentID); err != nil {
			w.logger.Error("deleting deployment row on namespace deletion", "deployment_id", deploymentID, "error", err)
		}
	case dbstore.StatusUninstalling:
		if _, err := w.store.UpdateDeployment(ctx, deploymentID, func(dep *dbstore.Deployment) error {
			dep.Status = dbstore.StatusUninstalled
			return nil
		}); err != nil {
			w.logger.Error("marking deployment uninstalled on namespace deletion", "deployment_id", deploymentID, "error", err)
		}
	}
}

func (w *watcher) ownerOf(namespace string) (uuid.UUID, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	id, ok := w.namespaceOf[namespace]
	return id, ok
}

func (w *watcher) handleDeployment(ctx context.Context, obj any) {
	d, ok := obj.(*appsv1.Deployment)
	if !ok {
		return
	}
	w.mirror(ctx, d.Namespace, "Deployment", "apps/v1", d.Name, string(d.UID), statusColorsForDeployment(d))
}

func (w *watcher) handleStatefulSet(ctx context.Context, obj any) {
	s, ok := obj.(*appsv1.StatefulSet)
	if !ok {
		return
	}
	w.mirror(ctx, s.Namespace, "StatefulSet", "apps/v1", s.Name, string(s.UID), statusColorsForStatefulSet(s))
}

func (w *watcher) handleJob(ctx context.Context, obj any) {
	j, ok := obj.(*batchv1.Job)
	if !ok {
		return
	}
	w.mirror(ctx, j.Namespace, "Job", "batch/v1", j.Name, string(j.UID), statusColorsForJob(j))
}

// mirror upserts a K8sResource row for an observed workload, skipping
// workloads whose namespace isn't platz-owned (spec.md §4.6: "the watcher
// resolves the owning deployment by reading the namespace's
// platz_deployment_id annotation").
func (w *watcher) mirror(ctx context.Context, namespace, kind, apiVersion, name, uid string, colors []dbstore.StatusColor) {
	deploymentID, ok := w.ownerOf(namespace)
	if !ok {
		return
	}
	colorJSON, err := json.Marshal(colors)
	if err != nil {
		w.logger.Error("marshaling status colors", "error", err)
		return
	}
	_, err = w.store.UpsertK8sResource(ctx, &dbstore.K8sResource{
		ClusterID:    w.clusterID,
		DeploymentID: deploymentID,
		Kind:         kind,
		APIVersion:   apiVersion,
		Name:         name,
		UID:          uid,
		StatusColor:  colorJSON,
		Metadata:     dbstore.JSON("{}"),
	})
	if err != nil {
		w.logger.Error("mirroring workload status", "kind", kind, "name", name, "error", err)
	}
}
