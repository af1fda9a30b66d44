package taskengine

import (
	"context"
	"fmt"
	"strings"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/google/uuid"
)

const (
	namespaceLabelKey      = "platz"
	namespaceLabelValue    = "yes"
	namespaceAnnotationKey = "platz_deployment_id"
)

// NamespaceName is the naming convention spec.md's acceptance scenario
// S1 fixes: "<kind-lowercase>-<name>".
func NamespaceName(kindName, deploymentName string) string {
	return fmt.Sprintf("%s-%s", strings.ToLower(kindName), deploymentName)
}

// EnsureNamespace creates namespace name with the platz label/annotation
// if absent, or patches an existing namespace to carry them (spec.md
// §4.5 "ensures namespace (with platz labels/annotations)"; idempotent
// per spec.md §9).
func EnsureNamespace(ctx context.Context, client kubernetes.Interface, name string, deploymentID uuid.UUID) error {
	nsClient := client.CoreV1().Namespaces()
	existing, err := nsClient.Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		ns := &corev1.Namespace{
			ObjectMeta: metav1.ObjectMeta{
				Name:        name,
				Labels:      map[string]string{namespaceLabelKey: namespaceLabelValue},
				Annotations: map[string]string{namespaceAnnotationKey: deploymentID.String()},
			},
		}
		_, err := nsClient.Create(ctx, ns, metav1.CreateOptions{})
		return err
	}
	if err != nil {
		return err
	}

	if existing.Labels[namespaceLabelKey] == namespaceLabelValue &&
		existing.Annotations[namespaceAnnotationKey] == deploymentID.String() {
		return nil
	}
	if existing.Labels == nil {
		existing.Labels = map[string]string{}
	}
	if existing.Annotations == nil {
		existing.Annotations = map[string]string{}
	}
	existing.Labels[namespaceLabelKey] = namespaceLabelValue
	existing.Annotations[namespaceAnnotationKey] = deploymentID.String()
	_, err = nsClient.Update(ctx, existing, metav1.UpdateOptions{})
	return err
}

// DeleteNamespace deletes name, treating an already-absent namespace as
// success (idempotent per spec.md §9).
func DeleteNamespace(ctx context.Context, client kubernetes.Interface, name string) error {
	err := client.CoreV1().Namespaces().Delete(ctx, name, metav1.DeleteOptions{})
	if apierrors.IsNotFound(err) {
		return nil
	}
	return err
}
