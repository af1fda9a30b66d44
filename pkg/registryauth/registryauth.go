// Package registryauth resolves the registry-specific login parameters
// the Helm executor pod's entrypoint needs before it can pull a chart
// (spec.md §9: "the core design does not prescribe a registry protocol;
// keep the pod image and login step pluggable behind a RegistryAuth
// interface"). The engine never talks to the registry itself; it only
// passes what Auth returns through to the pod as HELM_REGISTRY_REGION.
package registryauth

import "context"

// Auth resolves per-chart registry login parameters. Implementations
// are expected to be cheap and side-effect-free: the actual login
// happens inside the executor pod's own entrypoint script.
type Auth interface {
	// Region returns the HELM_REGISTRY_REGION value to pass to the
	// executor pod for a pull from ociRepo, or "" if the registry the
	// pod's entrypoint targets needs none.
	Region(ctx context.Context, ociRepo string) (string, error)
}

// ECR is the default Auth, matching the Helm-pod script spec.md §9
// describes: a single AWS region, fixed for the whole engine process.
type ECR struct {
	DefaultRegion string
}

// NewECR builds an ECR Auth for the given region.
func NewECR(region string) ECR {
	return ECR{DefaultRegion: region}
}

// Region always returns the engine's configured region; ECR OCI repos
// are addressed by account/region, not by anything ociRepo carries.
func (e ECR) Region(ctx context.Context, ociRepo string) (string, error) {
	return e.DefaultRegion, nil
}

// Static wraps a fixed region string as an Auth, for registries (or
// tests) that need no per-call resolution at all.
type Static string

// Region returns the wrapped region unconditionally.
func (s Static) Region(ctx context.Context, ociRepo string) (string, error) {
	return string(s), nil
}
