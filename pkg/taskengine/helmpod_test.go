package taskengine

import (
	"context"
	"testing"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildExecutorPodSetsContractEnvVars(t *testing.T) {
	spec := PodSpec{
		Command:        HelmUpgrade,
		Namespace:      "myapp-prod",
		Registry:       "registry.example.com",
		Repo:           "charts",
		ChartTag:       "1.2.3",
		KubeconfigB64:  "a2Fw",
		ValuesB64:      "dmFs",
		OverrideB64:    "b3Zy",
		RegistryRegion: "us-east-1",
	}
	pod := buildExecutorPod("platz-exec-x", "platz-system", "ghcr.io/platzio/executor:1", "platz-executor", spec)

	assert.Equal(t, "platz-system", pod.Namespace)
	assert.Equal(t, "platz-executor", pod.Spec.ServiceAccountName)
	assert.Equal(t, corev1.RestartPolicyNever, pod.Spec.RestartPolicy)

	env := map[string]string{}
	for _, e := range pod.Spec.Containers[0].Env {
		env[e.Name] = e.Value
	}
	assert.Equal(t, "upgrade --install", env["HELM_COMMAND"])
	assert.Equal(t, "myapp-prod", env["NAMESPACE"])
	assert.Equal(t, "registry.example.com", env["HELM_REGISTRY"])
	assert.Equal(t, "charts", env["HELM_REPO"])
	assert.Equal(t, "1.2.3", env["HELM_CHART_TAG"])
	assert.Equal(t, "a2Fw", env["KUBECONFIG_BASE64"])
	assert.Equal(t, "dmFs", env["VALUES_BASE64"])
	assert.Equal(t, "b3Zy", env["VALUES_OVERRIDE_BASE64"])
	assert.Equal(t, "us-east-1", env["HELM_REGISTRY_REGION"])
}

func TestWaitForPodStartReturnsOnceNotPending(t *testing.T) {
	client := fake.NewSimpleClientset(&corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "platz-exec-1", Namespace: "platz-system"},
		Status:     corev1.PodStatus{Phase: corev1.PodRunning},
	})
	require.NoError(t, waitForPodStart(context.Background(), client, "platz-system", "platz-exec-1"))
}

func TestWaitForPodFinishReturnsSucceeded(t *testing.T) {
	client := fake.NewSimpleClientset(&corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "platz-exec-1", Namespace: "platz-system"},
		Status:     corev1.PodStatus{Phase: corev1.PodSucceeded},
	})
	phase, err := waitForPodFinish(context.Background(), client, "platz-system", "platz-exec-1")
	require.NoError(t, err)
	assert.Equal(t, corev1.PodSucceeded, phase)
}

func TestCreateWithRetrySucceedsFirstTry(t *testing.T) {
	client := fake.NewSimpleClientset()
	pod := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: "platz-exec-2", Namespace: "platz-system"}}
	require.NoError(t, createWithRetry(context.Background(), client, "platz-system", pod))

	_, err := client.CoreV1().Pods("platz-system").Get(context.Background(), "platz-exec-2", metav1.GetOptions{})
	require.NoError(t, err)
}

func TestDeleteWithRetryTreatsNotFoundAsSuccess(t *testing.T) {
	client := fake.NewSimpleClientset()
	assert.NoError(t, deleteWithRetry(context.Background(), client, "platz-system", "does-not-exist"))
}
