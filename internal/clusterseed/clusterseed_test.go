package clusterseed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platzio/platz/pkg/clustertracker"
)

type fakeDiscoverer struct {
	seen []clustertracker.ClusterDescription
}

func (f *fakeDiscoverer) Discover(ctx context.Context, desc clustertracker.ClusterDescription) error {
	f.seen = append(f.seen, desc)
	return nil
}

func TestLoadDirDiscoversOneClusterPerFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prod-us.kubeconfig"), []byte("prod-config"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "staging.kubeconfig"), []byte("staging-config"), 0o600))

	f := &fakeDiscoverer{}
	require.NoError(t, LoadDir(context.Background(), f, dir))

	assert.Len(t, f.seen, 2)
	names := map[string]string{}
	for _, d := range f.seen {
		names[d.ProviderID] = string(d.Kubeconfig)
	}
	assert.Equal(t, "prod-config", names["prod-us"])
	assert.Equal(t, "staging-config", names["staging"])
}

func TestLoadDirErrorsOnMissingDir(t *testing.T) {
	f := &fakeDiscoverer{}
	err := LoadDir(context.Background(), f, filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)
}
