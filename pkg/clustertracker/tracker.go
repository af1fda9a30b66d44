// Package clustertracker implements the Cluster Tracker (spec.md §4.6):
// a supervisor keeping one watcher goroutine per known Kubernetes
// cluster, mirroring workload status into internal/dbstore and
// reporting cluster health.
package clustertracker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"k8s.io/client-go/kubernetes"

	"github.com/platzio/platz/internal/dbstore"
	"github.com/platzio/platz/internal/platzlog"
)

// ClusterDescription is the inbound "cluster discovered" payload
// (spec.md §4.6).
type ClusterDescription struct {
	ProviderID string
	Name       string
	Region     string
	Kubeconfig []byte
	Ignore     bool
}

// ClientFactory builds a Kubernetes clientset from a cluster's
// kubeconfig bytes. Exposed as a field so tests can inject a fake
// clientset instead of dialing a real API server.
type ClientFactory func(kubeconfig []byte) (kubernetes.Interface, error)

// Tracker owns one watcher per tracked cluster and exposes the query
// methods spec.md §4.6 names.
type Tracker struct {
	platzlog.LogHolder

	store   *dbstore.Store
	clients ClientFactory

	mu       sync.RWMutex
	watchers map[uuid.UUID]*watcher

	changed chan struct{}
}

// New builds a Tracker backed by store, constructing per-cluster
// clients through clients.
func New(store *dbstore.Store, clients ClientFactory) *Tracker {
	t := &Tracker{
		store:    store,
		clients:  clients,
		watchers: make(map[uuid.UUID]*watcher),
		changed:  make(chan struct{}, 1),
	}
	t.SetLogger(platzlog.NewHandler(platzlog.EnvDebugEnabled).WithAttrs([]slog.Attr{slog.String("component", "clustertracker")}))
	return t
}

// Discover reconciles one discovered cluster (spec.md §4.6): upserts
// its K8sCluster row, then starts or stops its watcher depending on
// the row's resulting Ignore flag.
func (t *Tracker) Discover(ctx context.Context, desc ClusterDescription) error {
	row, err := t.store.UpsertCluster(ctx, dbstore.DiscoveredCluster{
		ProviderID: desc.ProviderID,
		Name:       desc.Name,
		Region:     desc.Region,
	})
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	existing, tracked := t.watchers[row.ID]

	if row.Ignore {
		if tracked {
			existing.stop()
			delete(t.watchers, row.ID)
			t.signalChanged()
		}
		return nil
	}

	if tracked {
		return nil
	}

	client, err := t.clients(desc.Kubeconfig)
	if err != nil {
		t.Logger().Error("building cluster client", "cluster_id", row.ID, "error", err)
		_ = t.store.SetClusterHealth(ctx, row.ID, false, strPtr(err.Error()))
		return err
	}

	w := newWatcher(t.store, t.Logger(), row.ID, client, desc.Kubeconfig)
	t.watchers[row.ID] = w
	w.start(ctx)
	t.signalChanged()
	return nil
}

// GetIDs returns the ids of every currently tracked (non-ignored)
// cluster.
func (t *Tracker) GetIDs() []uuid.UUID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(t.watchers))
	for id := range t.watchers {
		ids = append(ids, id)
	}
	return ids
}

// GetCluster reports whether id is currently tracked.
func (t *Tracker) GetCluster(id uuid.UUID) (uuid.UUID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.watchers[id]
	return id, ok
}

// Changed returns a channel that receives a value whenever the tracked
// cluster set changes (spec.md §4.6: "an outbound watch for 'set
// changed' notifications").
func (t *Tracker) Changed() <-chan struct{} {
	return t.changed
}

func (t *Tracker) signalChanged() {
	select {
	case t.changed <- struct{}{}:
	default:
	}
}

// Client returns the Kubernetes client for a tracked cluster, so callers
// needing raw API access (the Task Engine's namespace management, derived
// secrets and restarts; executor pods run in the engine's own cluster)
// reuse the same clientset the watcher holds instead of
// dialing a second one for the same cluster (spec.md §5).
func (t *Tracker) Client(id uuid.UUID) (kubernetes.Interface, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	w, ok := t.watchers[id]
	if !ok {
		return nil, false
	}
	return w.client, true
}

// Kubeconfig returns the raw kubeconfig bytes a tracked cluster was
// discovered with, for embedding into the Helm executor pod's
// KUBECONFIG_BASE64 env var (spec.md §4.5).
func (t *Tracker) Kubeconfig(id uuid.UUID) ([]byte, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	w, ok := t.watchers[id]
	if !ok {
		return nil, false
	}
	return w.kubeconfig, true
}

// Stop halts every tracked watcher. Intended for daemon shutdown.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, w := range t.watchers {
		w.stop()
		delete(t.watchers, id)
	}
}

func strPtr(s string) *string { return &s }
