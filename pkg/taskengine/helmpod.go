package taskengine

import (
	"bytes"
	"context"
	"io"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/platzio/platz/internal/perr"
)

const (
	podCreateDeleteAttempts = 10
	podCreateDeleteBackoff  = 500 * time.Millisecond

	podStartTimeout  = 60 * time.Second
	podRunTimeout    = 10 * time.Minute
	podPollInterval  = 2 * time.Second
)

// HelmCommand is the Helm subcommand the executor pod runs.
type HelmCommand string

const (
	HelmInstall HelmCommand = "install"
	HelmUpgrade HelmCommand = "upgrade --install"
	HelmUninstall HelmCommand = "uninstall"
)

// PodSpec is everything the executor pod's entry script needs, passed as
// env vars (spec.md §4.5, §6). The env vars named in spec.md §6's
// Helm-pod contract (KUBECONFIG_BASE64, HELM_REGISTRY_REGION,
// HELM_REGISTRY, HELM_REPO, HELM_CHART_TAG, VALUES_BASE64,
// VALUES_OVERRIDE_BASE64) are passed through unmodified; HELM_COMMAND and
// NAMESPACE are additions the entry script's step 5 invocation requires
// (`helm <command> <namespace> ... --namespace=<namespace>`) but that
// spec.md §6's bullet list doesn't itself name a variable for.
type PodSpec struct {
	Command        HelmCommand
	Namespace      string
	Registry       string // HELM_REGISTRY: registry domain
	Repo           string // HELM_REPO: repo name within the registry
	ChartTag       string // HELM_CHART_TAG
	KubeconfigB64  string
	ValuesB64      string
	OverrideB64    string
	RegistryRegion string
}

// RunExecutorPod implements spec.md §4.5's "Helm execution protocol":
// create a single-shot pod in executorNamespace running image, retrying
// create ~10x500ms; wait for it to leave Pending|Unknown within 60s,
// then for Succeeded|Failed within 10 min; capture merged logs; delete
// the pod (also retried) regardless of outcome.
func RunExecutorPod(ctx context.Context, client kubernetes.Interface, executorNamespace, image, serviceAccount string, spec PodSpec) (logs string, err error) {
	name := "platz-exec-" + uuid.New().String()
	pod := buildExecutorPod(name, executorNamespace, image, serviceAccount, spec)

	if err := createWithRetry(ctx, client, executorNamespace, pod); err != nil {
		return "", errors.Wrap(err, "creating executor pod")
	}
	defer func() {
		_ = deleteWithRetry(context.Background(), client, executorNamespace, name)
	}()

	if err := waitForPodStart(ctx, client, executorNamespace, name); err != nil {
		return "", err
	}
	phase, err := waitForPodFinish(ctx, client, executorNamespace, name)
	if err != nil {
		return "", err
	}

	logs, logErr := fetchPodLogs(ctx, client, executorNamespace, name)
	if logErr != nil {
		logs = "(failed to fetch pod logs: " + logErr.Error() + ")"
	}

	if phase != corev1.PodSucceeded {
		return logs, perr.New(perr.HelmExecutionError, "executor pod %s finished as %s", name, phase)
	}
	return logs, nil
}

func buildExecutorPod(name, namespace, image, serviceAccount string, spec PodSpec) *corev1.Pod {
	env := []corev1.EnvVar{
		{Name: "KUBECONFIG_BASE64", Value: spec.KubeconfigB64},
		{Name: "HELM_REGISTRY_REGION", Value: spec.RegistryRegion},
		{Name: "HELM_REGISTRY", Value: spec.Registry},
		{Name: "HELM_REPO", Value: spec.Repo},
		{Name: "HELM_CHART_TAG", Value: spec.ChartTag},
		{Name: "VALUES_BASE64", Value: spec.ValuesB64},
		{Name: "VALUES_OVERRIDE_BASE64", Value: spec.OverrideB64},
		{Name: "HELM_COMMAND", Value: string(spec.Command)},
		{Name: "NAMESPACE", Value: spec.Namespace},
	}
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
			Labels:    map[string]string{"app.kubernetes.io/managed-by": "platz-engine"},
		},
		Spec: corev1.PodSpec{
			ServiceAccountName: serviceAccount,
			RestartPolicy:      corev1.RestartPolicyNever,
			Containers: []corev1.Container{
				{
					Name:  "helm-exec",
					Image: image,
					Env:   env,
				},
			},
		},
	}
}

func createWithRetry(ctx context.Context, client kubernetes.Interface, namespace string, pod *corev1.Pod) error {
	var lastErr error
	for i := 0; i < podCreateDeleteAttempts; i++ {
		_, err := client.CoreV1().Pods(namespace).Create(ctx, pod, metav1.CreateOptions{})
		if err == nil {
			return nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(podCreateDeleteBackoff):
		}
	}
	return lastErr
}

func deleteWithRetry(ctx context.Context, client kubernetes.Interface, namespace, name string) error {
	var lastErr error
	for i := 0; i < podCreateDeleteAttempts; i++ {
		err := client.CoreV1().Pods(namespace).Delete(ctx, name, metav1.DeleteOptions{})
		if err == nil || apierrors.IsNotFound(err) {
			return nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(podCreateDeleteBackoff):
		}
	}
	return lastErr
}

// waitForPodStart polls until the pod leaves Pending/Unknown, bounded to
// podStartTimeout.
func waitForPodStart(ctx context.Context, client kubernetes.Interface, namespace, name string) error {
	wctx, cancel := context.WithTimeout(ctx, podStartTimeout)
	defer cancel()
	err := wait.PollImmediateUntilWithContext(wctx, podPollInterval, func(ctx context.Context) (bool, error) {
		pod, err := client.CoreV1().Pods(namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return false, nil
		}
		return pod.Status.Phase != corev1.PodPending && pod.Status.Phase != corev1.PodUnknown, nil
	})
	if err != nil {
		return perr.New(perr.HelmExecutionError, "executor pod %s did not leave Pending within %s", name, podStartTimeout)
	}
	return nil
}

// waitForPodFinish polls until the pod reaches Succeeded/Failed, bounded
// to podRunTimeout.
func waitForPodFinish(ctx context.Context, client kubernetes.Interface, namespace, name string) (corev1.PodPhase, error) {
	wctx, cancel := context.WithTimeout(ctx, podRunTimeout)
	defer cancel()
	var finalPhase corev1.PodPhase
	err := wait.PollImmediateUntilWithContext(wctx, podPollInterval, func(ctx context.Context) (bool, error) {
		pod, err := client.CoreV1().Pods(namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return false, nil
		}
		if pod.Status.Phase == corev1.PodSucceeded || pod.Status.Phase == corev1.PodFailed {
			finalPhase = pod.Status.Phase
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return "", perr.New(perr.HelmExecutionError, "executor pod %s did not finish within %s", name, podRunTimeout)
	}
	return finalPhase, nil
}

// fetchPodLogs returns the pod's merged stdout+stderr (a single
// container, so there's nothing to interleave).
func fetchPodLogs(ctx context.Context, client kubernetes.Interface, namespace, name string) (string, error) {
	req := client.CoreV1().Pods(namespace).GetLogs(name, &corev1.PodLogOptions{})
	stream, err := req.Stream(ctx)
	if err != nil {
		return "", err
	}
	defer stream.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, stream); err != nil {
		return "", err
	}
	return buf.String(), nil
}
