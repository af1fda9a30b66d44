package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fakeKubeconfig = `
apiVersion: v1
kind: Config
clusters:
- name: test
  cluster:
    server: https://example.invalid
contexts:
- name: test
  context:
    cluster: test
    user: test
current-context: test
users:
- name: test
  user:
    token: fake
`

func TestOwnClusterConfigUsesKubeconfigEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kubeconfig")
	require.NoError(t, os.WriteFile(path, []byte(fakeKubeconfig), 0o600))
	t.Setenv("KUBECONFIG", path)

	cfg, err := ownClusterConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://example.invalid", cfg.Host)
}

func TestClientFactoryFromKubeconfigRejectsGarbage(t *testing.T) {
	_, err := clientFactoryFromKubeconfig([]byte("not a kubeconfig"))
	assert.Error(t, err)
}
