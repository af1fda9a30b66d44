package resourcesync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platzio/platz/internal/dbstore"
	"github.com/platzio/platz/pkg/chartext"
)

func strPtr(s string) *string { return &s }

func TestTransitionForDeletingOverridesStatus(t *testing.T) {
	r := &dbstore.DeploymentResource{Exists: false, SyncStatus: dbstore.SyncError}
	assert.Equal(t, "delete", transitionFor(r))
}

func TestTransitionForCreating(t *testing.T) {
	r := &dbstore.DeploymentResource{Exists: true, SyncStatus: dbstore.SyncCreating}
	assert.Equal(t, "create", transitionFor(r))
}

func TestTransitionForUpdatingAndErrorFallThroughToUpdate(t *testing.T) {
	assert.Equal(t, "update", transitionFor(&dbstore.DeploymentResource{Exists: true, SyncStatus: dbstore.SyncUpdating}))
	assert.Equal(t, "update", transitionFor(&dbstore.DeploymentResource{Exists: true, SyncStatus: dbstore.SyncError}))
}

func TestHostnameForDeploymentRequiresIngress(t *testing.T) {
	dep := &dbstore.Deployment{ID: uuid.New(), Name: "prod"}
	kind := &dbstore.DeploymentKind{Name: "Topic"}
	cluster := &dbstore.K8sCluster{}
	chart := &dbstore.HelmChart{}

	_, err := hostnameForDeployment(dep, kind, cluster, chart)
	assert.Error(t, err)
}

func TestHostnameForDeploymentRenders(t *testing.T) {
	dep := &dbstore.Deployment{ID: uuid.New(), Name: "prod"}
	kind := &dbstore.DeploymentKind{Name: "Topic"}
	cluster := &dbstore.K8sCluster{IngressDomain: strPtr("apps.example.com")}
	chart := &dbstore.HelmChart{Features: []byte(`{"ingress":{"enabled":true,"hostname_format":"Name"}}`)}

	host, err := hostnameForDeployment(dep, kind, cluster, chart)
	require.NoError(t, err)
	assert.Equal(t, "prod.apps.example.com", host)
}

func TestSendHookPostsBodyAndMethod(t *testing.T) {
	var gotBody string
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/resources/topic", r.URL.Path)
		buf := make([]byte, 32)
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	hook := &chartext.LifecycleHook{Target: chartext.Target{Path: "/resources/topic", Method: chartext.MethodPUT}}
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	err = sendHook(context.Background(), srv.Client(), u.Host, hook, []byte(`{"name":"orders"}`))
	require.NoError(t, err)
	assert.Equal(t, `{"name":"orders"}`, gotBody)
}

func TestSendHookReturnsErrorOnNon2xx(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	hook := &chartext.LifecycleHook{Target: chartext.Target{Path: "/x", Method: chartext.MethodDELETE}}
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	err = sendHook(context.Background(), srv.Client(), u.Host, hook, nil)
	assert.Error(t, err)
}
