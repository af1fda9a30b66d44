package taskengine

import (
	"context"
	"testing"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRestartK8sResourcePatchesDeploymentAnnotation(t *testing.T) {
	client := fake.NewSimpleClientset(&appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: "web", Namespace: "myapp-prod"},
		Spec: appsv1.DeploymentSpec{
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: map[string]string{"app": "web"}},
			},
		},
	})

	require.NoError(t, RestartK8sResource(context.Background(), client, "myapp-prod", RestartKindDeployment, "web"))

	dep, err := client.AppsV1().Deployments("myapp-prod").Get(context.Background(), "web", metav1.GetOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, dep.Spec.Template.Annotations[restartedAtAnnotation])
}

func TestRestartK8sResourceRejectsUnsupportedKind(t *testing.T) {
	client := fake.NewSimpleClientset()
	err := RestartK8sResource(context.Background(), client, "myapp-prod", "DaemonSet", "web")
	assert.Error(t, err)
}
