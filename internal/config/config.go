// Package config loads the engine's process configuration from the
// environment. Unlike the teacher's CLI (which layers flags over
// environment variables over a settings file), the engine is a headless
// daemon: environment variables are the only input, following the same
// default-struct-then-overlay shape the teacher's per-component configs use.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
)

// Config is the engine's full process configuration (spec.md §6).
type Config struct {
	// DatabaseURL is a libpq connection string. Required.
	DatabaseURL string

	// ChartExecutorImage is the image reference for the single-shot Helm
	// executor pod.
	ChartExecutorImage string
	// ExecutorNamespace is the namespace in the controlling cluster the
	// executor pod is launched into.
	ExecutorNamespace string
	// ExecutorServiceAccount is the service account the executor pod runs
	// as; its bound kubeconfig secret points at the target cluster.
	ExecutorServiceAccount string

	// HelmRegistryRegion is passed through to the executor pod as
	// HELM_REGISTRY_REGION (spec.md §6).
	HelmRegistryRegion string

	// OwnURL is injected into every chart's values as platz.own_url.
	OwnURL string

	// DeploymentTokenLifetime controls how often platz-creds secrets are
	// refreshed (half this duration, per spec.md §4.5).
	DeploymentTokenLifetime time.Duration

	// TaskPollInterval is the fallback polling period guaranteeing the
	// task engine checks the queue even without a change event
	// (spec.md §5: "at least every 60s").
	TaskPollInterval time.Duration

	// ClusterWatchResyncPeriod is the informer resync period used by
	// every cluster watcher.
	ClusterWatchResyncPeriod time.Duration

	// ResourceSyncPollInterval is the fallback polling period for the
	// Resource Sync Worker, mirroring TaskPollInterval (spec.md §5).
	ResourceSyncPollInterval time.Duration

	// ClusterManifestDir, if set, is scanned at startup for one
	// kubeconfig file per target cluster (filename stem as its
	// provider id) to seed the Cluster Tracker's "cluster discovered"
	// channel. The real discovery feed (registry/cloud-API scanning) is
	// out of scope (spec.md §2); this is the minimal static stand-in
	// cmd/platz-engine wires against the same Tracker.Discover call a
	// real discovery worker would use.
	ClusterManifestDir string
}

// Default returns the configuration's zero-value defaults, to be
// overlaid by LoadFromEnv.
func Default() *Config {
	return &Config{
		ExecutorNamespace:       "platz-system",
		ExecutorServiceAccount:  "platz-executor",
		DeploymentTokenLifetime: 24 * time.Hour,
		TaskPollInterval:        60 * time.Second,
		ClusterWatchResyncPeriod: 10 * time.Minute,
		ResourceSyncPollInterval: 60 * time.Second,
	}
}

// LoadFromEnv overlays environment variables onto c and validates the
// required fields. It never reads a config file or command-line flags;
// those are the API layer's and cmd/platz-engine's concern respectively.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("CHART_EXECUTOR_IMAGE"); v != "" {
		c.ChartExecutorImage = v
	}
	if v := os.Getenv("EXECUTOR_NAMESPACE"); v != "" {
		c.ExecutorNamespace = v
	}
	if v := os.Getenv("EXECUTOR_SERVICE_ACCOUNT"); v != "" {
		c.ExecutorServiceAccount = v
	}
	if v := os.Getenv("HELM_REGISTRY_REGION"); v != "" {
		c.HelmRegistryRegion = v
	}
	if v := os.Getenv("OWN_URL"); v != "" {
		c.OwnURL = v
	}
	if v := os.Getenv("CLUSTER_MANIFEST_DIR"); v != "" {
		c.ClusterManifestDir = v
	}
	if v := os.Getenv("DEPLOYMENT_TOKEN_LIFETIME"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrap(err, "parsing DEPLOYMENT_TOKEN_LIFETIME")
		}
		c.DeploymentTokenLifetime = d
	}
	if v := os.Getenv("TASK_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrap(err, "parsing TASK_POLL_INTERVAL")
		}
		c.TaskPollInterval = d
	}
	if v := os.Getenv("CLUSTER_WATCH_RESYNC_PERIOD"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrap(err, "parsing CLUSTER_WATCH_RESYNC_PERIOD")
		}
		c.ClusterWatchResyncPeriod = d
	}
	if v := os.Getenv("RESOURCE_SYNC_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrap(err, "parsing RESOURCE_SYNC_POLL_INTERVAL")
		}
		c.ResourceSyncPollInterval = d
	}

	return c.Validate()
}

// Validate reports the first missing required field, if any.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.ChartExecutorImage == "" {
		return errors.New("CHART_EXECUTOR_IMAGE is required")
	}
	return nil
}
