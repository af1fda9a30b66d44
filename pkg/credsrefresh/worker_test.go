package credsrefresh

import (
	"context"
	"testing"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platzio/platz/internal/config"
	"github.com/platzio/platz/internal/dbstore"
)

func TestRefreshDeploymentWritesPlatzCreds(t *testing.T) {
	client := fake.NewSimpleClientset()
	dep := &dbstore.Deployment{ID: uuid.New(), Name: "prod"}
	kind := &dbstore.DeploymentKind{Name: "myapp"}
	cfg := *config.Default()
	cfg.OwnURL = "https://platz.example.com"

	require.NoError(t, refreshDeployment(context.Background(), client, dep, kind, cfg))

	sec, err := client.CoreV1().Secrets("myapp-prod").Get(context.Background(), "platz-creds", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, []byte(dep.ID.String()), sec.Data["access_token"])
	assert.Equal(t, []byte("https://platz.example.com"), sec.Data["server_url"])
}
