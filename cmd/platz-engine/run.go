package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/platzio/platz/internal/clusterseed"
	"github.com/platzio/platz/internal/config"
	"github.com/platzio/platz/internal/dbstore"
	"github.com/platzio/platz/internal/eventbus"
	"github.com/platzio/platz/pkg/clustertracker"
	"github.com/platzio/platz/pkg/credsrefresh"
	"github.com/platzio/platz/pkg/registryauth"
	"github.com/platzio/platz/pkg/resourcesync"
	"github.com/platzio/platz/pkg/taskengine"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the task engine, resource sync worker, creds refresh worker and event bus relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
}

// run wires every long-lived component together and blocks until ctx is
// canceled or one of them exits with an error.
func run(ctx context.Context) error {
	cfg := config.Default()
	if err := cfg.LoadFromEnv(); err != nil {
		return errors.Wrap(err, "loading configuration")
	}

	logrus.WithField("version", version).Info("starting platz-engine")

	store, err := dbstore.Open(cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "connecting to database")
	}
	defer store.Close()

	bus, err := eventbus.New(cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "opening event bus")
	}
	defer bus.Close()
	store.SetNotifier(bus)

	ownConfig, err := ownClusterConfig()
	if err != nil {
		return errors.Wrap(err, "resolving own-cluster kube config")
	}
	ownClient, err := kubernetes.NewForConfig(ownConfig)
	if err != nil {
		return errors.Wrap(err, "building own-cluster client")
	}

	tracker := clustertracker.New(store, clientFactoryFromKubeconfig)
	if cfg.ClusterManifestDir != "" {
		if err := clusterseed.LoadDir(ctx, tracker, cfg.ClusterManifestDir); err != nil {
			return errors.Wrap(err, "seeding clusters")
		}
	}

	engine := taskengine.New(store, tracker, ownClient, registryauth.NewECR(cfg.HelmRegistryRegion), *cfg)
	syncer := resourcesync.New(store, *cfg)
	credsWorker := credsrefresh.New(store, tracker, *cfg)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 4)
	var wg sync.WaitGroup
	spawn := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil && ctx.Err() == nil {
				errCh <- errors.Wrap(err, name)
			}
		}()
	}
	spawn("eventbus", func() error { return bus.Run(ctx) })
	spawn("taskengine", func() error { return engine.Run(ctx, bus) })
	spawn("resourcesync", func() error { return syncer.Run(ctx, bus) })
	spawn("credsrefresh", func() error { return credsWorker.Run(ctx) })

	var runErr error
	select {
	case <-ctx.Done():
		logrus.Info("shutdown signal received, stopping platz-engine")
	case runErr = <-errCh:
		logrus.WithError(runErr).Error("component failed, stopping platz-engine")
		cancel()
	}

	wg.Wait()
	tracker.Stop()
	logrus.Info("platz-engine stopped")
	return runErr
}

// ownClusterConfig resolves the REST config for the cluster platz-engine
// itself runs in (where executor pods are launched): in-cluster config
// when available, falling back to $KUBECONFIG (or ~/.kube/config) for
// local development, the same fallback order client-go's own examples use.
func ownClusterConfig() (*rest.Config, error) {
	if cfg, err := rest.InClusterConfig(); err == nil {
		return cfg, nil
	}
	kubeconfig := os.Getenv("KUBECONFIG")
	if kubeconfig == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(err, "resolving home directory")
		}
		kubeconfig = filepath.Join(home, ".kube", "config")
	}
	return clientcmd.BuildConfigFromFlags("", kubeconfig)
}

// clientFactoryFromKubeconfig is the production clustertracker.ClientFactory:
// it builds a real clientset from a target cluster's raw kubeconfig bytes.
func clientFactoryFromKubeconfig(kubeconfig []byte) (kubernetes.Interface, error) {
	restConfig, err := clientcmd.RESTConfigFromKubeConfig(kubeconfig)
	if err != nil {
		return nil, errors.Wrap(err, "parsing kubeconfig")
	}
	return kubernetes.NewForConfig(restConfig)
}
