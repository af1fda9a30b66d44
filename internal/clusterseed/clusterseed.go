// Package clusterseed loads a static directory of per-cluster
// kubeconfig files and feeds each as a "cluster discovered" event to
// the Cluster Tracker (spec.md §4.6). It stands in for the real
// discovery source -- a cloud API scan or an operator-facing API call
// -- which spec.md §2 places out of scope.
package clusterseed

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/platzio/platz/pkg/clustertracker"
)

// Discoverer is the narrow slice of clustertracker.Tracker this package
// depends on.
type Discoverer interface {
	Discover(ctx context.Context, desc clustertracker.ClusterDescription) error
}

// LoadDir reads every regular file directly under dir as a kubeconfig,
// using the filename (extension stripped) as both the cluster's
// provider id and name, and calls tracker.Discover for each.
func LoadDir(ctx context.Context, tracker Discoverer, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.Wrapf(err, "reading cluster manifest dir %s", dir)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		kubeconfig, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "reading kubeconfig %s", path)
		}
		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		desc := clustertracker.ClusterDescription{
			ProviderID: name,
			Name:       name,
			Kubeconfig: kubeconfig,
		}
		if err := tracker.Discover(ctx, desc); err != nil {
			return errors.Wrapf(err, "discovering cluster %s", name)
		}
	}
	return nil
}
