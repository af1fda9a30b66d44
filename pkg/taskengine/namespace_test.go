package taskengine

import (
	"context"
	"testing"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamespaceNameFormatsKindAndDeployment(t *testing.T) {
	assert.Equal(t, "myapp-prod", NamespaceName("MyApp", "prod"))
}

func TestEnsureNamespaceCreatesWhenAbsent(t *testing.T) {
	client := fake.NewSimpleClientset()
	depID := uuid.New()

	require.NoError(t, EnsureNamespace(context.Background(), client, "myapp-prod", depID))

	ns, err := client.CoreV1().Namespaces().Get(context.Background(), "myapp-prod", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "yes", ns.Labels["platz"])
	assert.Equal(t, depID.String(), ns.Annotations["platz_deployment_id"])
}

func TestEnsureNamespacePatchesExistingWithoutLabels(t *testing.T) {
	depID := uuid.New()
	client := fake.NewSimpleClientset(&corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{Name: "myapp-prod"},
	})

	require.NoError(t, EnsureNamespace(context.Background(), client, "myapp-prod", depID))

	ns, err := client.CoreV1().Namespaces().Get(context.Background(), "myapp-prod", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "yes", ns.Labels["platz"])
	assert.Equal(t, depID.String(), ns.Annotations["platz_deployment_id"])
}

func TestDeleteNamespaceIsIdempotent(t *testing.T) {
	client := fake.NewSimpleClientset()
	assert.NoError(t, DeleteNamespace(context.Background(), client, "does-not-exist"))
}
