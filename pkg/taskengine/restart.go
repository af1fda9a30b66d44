package taskengine

import (
	"context"
	"fmt"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"

	"github.com/pkg/errors"

	"github.com/platzio/platz/internal/perr"
)

const restartedAtAnnotation = "kubectl.kubernetes.io/restartedAt"

// RestartKindDeployment and RestartKindStatefulSet are the workload kinds
// a RestartK8sResource task may target (spec.md §4.5).
const (
	RestartKindDeployment  = "Deployment"
	RestartKindStatefulSet = "StatefulSet"
)

// RestartK8sResource triggers a rolling restart of the named Deployment or
// StatefulSet by patching its pod template with a fresh restartedAt
// annotation, the same mechanism `kubectl rollout restart` uses.
func RestartK8sResource(ctx context.Context, client kubernetes.Interface, namespace, kind, name string) error {
	patch := []byte(fmt.Sprintf(
		`{"spec":{"template":{"metadata":{"annotations":{%q:%q}}}}}`,
		restartedAtAnnotation, time.Now().UTC().Format(time.RFC3339),
	))

	var err error
	switch kind {
	case RestartKindDeployment:
		_, err = client.AppsV1().Deployments(namespace).Patch(ctx, name, types.StrategicMergePatchType, patch, metav1.PatchOptions{})
	case RestartKindStatefulSet:
		_, err = client.AppsV1().StatefulSets(namespace).Patch(ctx, name, types.StrategicMergePatchType, patch, metav1.PatchOptions{})
	default:
		return perr.New(perr.ValidationError, "unsupported restart target kind %q", kind)
	}
	if err != nil {
		return errors.Wrapf(err, "restarting %s/%s", kind, name)
	}
	return nil
}
