package taskengine

import (
	"context"
	"encoding/json"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"

	"github.com/pkg/errors"

	"github.com/platzio/platz/pkg/resolver"
)

const platzCredsSecretName = "platz-creds"

// ApplyDerivedSecrets writes one Opaque Secret per chart secret output
// into namespace, using server-side apply with a field manager equal to
// the secret's own name (spec.md §4.5: "writes a Kubernetes Secret ...
// using server-side apply with field-manager equal to the secret name").
func ApplyDerivedSecrets(ctx context.Context, client kubernetes.Interface, namespace string, secrets []resolver.RenderedSecret) error {
	for _, sec := range secrets {
		data := make(map[string][]byte, len(sec.Attrs))
		for _, attr := range sec.Attrs {
			data[attr.Key] = []byte(attr.Value)
		}
		if err := serverSideApplySecret(ctx, client, namespace, sec.Name, sec.Name, data); err != nil {
			return errors.Wrapf(err, "applying derived secret %s", sec.Name)
		}
	}
	return nil
}

// ApplyPlatzCreds writes the platz-creds secret into namespace: every
// enabled deployment gets one on Install and on a periodic refresh at
// half the deployment-token lifetime (spec.md §4.5).
func ApplyPlatzCreds(ctx context.Context, client kubernetes.Interface, namespace, accessToken, serverURL string, expiresAt time.Time) error {
	data := map[string][]byte{
		"access_token": []byte(accessToken),
		"server_url":   []byte(serverURL),
		"expires_at":   []byte(expiresAt.UTC().Format(time.RFC3339)),
	}
	return serverSideApplySecret(ctx, client, namespace, platzCredsSecretName, "platz-engine", data)
}

// serverSideApplySecret performs a server-side apply Patch with Force,
// matching the teacher's own preference for apply over read-modify-write
// (kube.Client.Update internally diffs/patches rather than blind-writes)
// generalized to Secret objects: a typed corev1.Secret is marshalled to
// JSON and sent as the apply patch.
func serverSideApplySecret(ctx context.Context, client kubernetes.Interface, namespace, name, fieldManager string, data map[string][]byte) error {
	secret := &corev1.Secret{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Secret"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
		},
		Type: corev1.SecretTypeOpaque,
		Data: data,
	}
	raw, err := json.Marshal(secret)
	if err != nil {
		return err
	}
	_, err = client.CoreV1().Secrets(namespace).Patch(ctx, name, types.ApplyPatchType, raw, metav1.PatchOptions{
		FieldManager: fieldManager,
		Force:        boolPtr(true),
	})
	return err
}

func boolPtr(b bool) *bool { return &b }
