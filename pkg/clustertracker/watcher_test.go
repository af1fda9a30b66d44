package clustertracker

import (
	"context"
	"log/slog"
	"testing"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platzio/platz/internal/dbstore"
)

func newTestWatcher() *watcher {
	return newWatcher(nil, slog.Default(), uuid.New(), nil, nil)
}

func TestHandleNamespaceUpsertTracksOwner(t *testing.T) {
	w := newTestWatcher()
	deploymentID := uuid.New()
	ns := &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name:        "svc-foo",
			Annotations: map[string]string{deploymentAnnotation: deploymentID.String()},
		},
	}
	w.handleNamespaceUpsert(ns)
	got, ok := w.ownerOf("svc-foo")
	require.True(t, ok)
	assert.Equal(t, deploymentID, got)
}

func TestHandleNamespaceUpsertIgnoresMissingAnnotation(t *testing.T) {
	w := newTestWatcher()
	ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "svc-foo"}}
	w.handleNamespaceUpsert(ns)
	_, ok := w.ownerOf("svc-foo")
	assert.False(t, ok)
}

func TestHandleNamespaceUpsertIgnoresMalformedAnnotation(t *testing.T) {
	w := newTestWatcher()
	ns := &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name:        "svc-foo",
			Annotations: map[string]string{deploymentAnnotation: "not-a-uuid"},
		},
	}
	w.handleNamespaceUpsert(ns)
	_, ok := w.ownerOf("svc-foo")
	assert.False(t, ok)
}

func TestMirrorSkipsUnownedNamespace(t *testing.T) {
	w := newTestWatcher()
	// store is nil: if mirror attempted a DB write for an unowned
	// namespace this would panic, proving the skip-on-unowned path.
	w.mirror(context.Background(), "not-tracked", "Deployment", "apps/v1", "foo", "uid-1", []dbstore.StatusColor{dbstore.ColorSuccess})
}

func TestHandleNamespaceDeleteUntracksNamespace(t *testing.T) {
	w := newTestWatcher()
	deploymentID := uuid.New()
	ns := &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name:        "svc-foo",
			Annotations: map[string]string{deploymentAnnotation: deploymentID.String()},
		},
	}
	w.handleNamespaceUpsert(ns)
	_, ok := w.ownerOf("svc-foo")
	require.True(t, ok)

	// store is nil, so the GetDeployment lookup past the map removal
	// panics; the map is cleared before that call runs, so recovering
	// here still lets us assert the namespace was untracked.
	func() {
		defer func() { _ = recover() }()
		w.handleNamespaceDelete(context.Background(), ns)
	}()

	_, ok = w.ownerOf("svc-foo")
	assert.False(t, ok)
}
