package taskengine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platzio/platz/internal/dbstore"
	"github.com/platzio/platz/pkg/chartext"
)

func domainPtr(s string) *string { return &s }

func TestHostnameForUsesKindAndNameFormat(t *testing.T) {
	e := &Engine{}
	rc := &runTaskContext{
		deployment: &dbstore.Deployment{Name: "prod"},
		kind:       &dbstore.DeploymentKind{Name: "Widget"},
		cluster:    &dbstore.K8sCluster{IngressDomain: domainPtr("apps.example.com")},
		decoded: decodedChart{
			Features: chartext.Features{
				Ingress: chartext.IngressFeature{Enabled: true, HostnameFormat: chartext.HostnameFormatKindAndName},
			},
		},
	}

	host, err := e.hostnameFor(rc)
	require.NoError(t, err)
	assert.Equal(t, "widget-prod.apps.example.com", host)
}

func TestHostnameForFailsWhenIngressDisabled(t *testing.T) {
	e := &Engine{}
	rc := &runTaskContext{
		deployment: &dbstore.Deployment{ID: uuid.New(), Name: "prod"},
		kind:       &dbstore.DeploymentKind{Name: "Widget"},
		cluster:    &dbstore.K8sCluster{},
	}

	_, err := e.hostnameFor(rc)
	assert.Error(t, err)
}

func TestRestartResourceRejectsMissingPayload(t *testing.T) {
	e := &Engine{}
	err := e.restartResource(nil, &runTaskContext{}, nil)
	assert.Error(t, err)
}

func TestInvokeActionRejectsMissingPayload(t *testing.T) {
	e := &Engine{}
	_, err := e.invokeAction(nil, &runTaskContext{}, nil)
	assert.Error(t, err)
}
