package taskengine

import (
	"context"
	"testing"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platzio/platz/pkg/resolver"
)

func TestApplyDerivedSecretsWritesOneSecretPerOutput(t *testing.T) {
	client := fake.NewSimpleClientset()
	secrets := []resolver.RenderedSecret{
		{Name: "db-creds", Attrs: []resolver.SecretAttr{
			{Key: "username", Value: "admin"},
			{Key: "password", Value: "hunter2"},
		}},
	}

	require.NoError(t, ApplyDerivedSecrets(context.Background(), client, "myapp-prod", secrets))

	sec, err := client.CoreV1().Secrets("myapp-prod").Get(context.Background(), "db-creds", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, []byte("admin"), sec.Data["username"])
	assert.Equal(t, []byte("hunter2"), sec.Data["password"])
}

func TestApplyPlatzCredsWritesExpectedKeys(t *testing.T) {
	client := fake.NewSimpleClientset()
	expiresAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, ApplyPlatzCreds(context.Background(), client, "myapp-prod", "tok123", "https://platz.example.com", expiresAt))

	sec, err := client.CoreV1().Secrets("myapp-prod").Get(context.Background(), platzCredsSecretName, metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, []byte("tok123"), sec.Data["access_token"])
	assert.Equal(t, []byte("https://platz.example.com"), sec.Data["server_url"])
}
