package taskengine

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/platzio/platz/internal/config"
	"github.com/platzio/platz/internal/dbstore"
	"github.com/platzio/platz/internal/perr"
)

// install implements spec.md §4.5's Install operation variant.
func (e *Engine) install(ctx context.Context, rc *runTaskContext) error {
	if err := e.setStatus(ctx, rc, dbstore.StatusInstalling, nil); err != nil {
		return err
	}
	if err := EnsureNamespace(ctx, rc.client, rc.namespace, rc.deployment.ID); err != nil {
		return perr.Wrap(err, perr.HelmExecutionError, "ensuring namespace %s", rc.namespace)
	}
	if err := e.runHelm(ctx, rc, HelmInstall); err != nil {
		return e.fail(ctx, rc, err)
	}
	if err := e.onHelmSuccess(ctx, rc, &rc.task.ID); err != nil {
		return e.fail(ctx, rc, err)
	}
	return e.setStatus(ctx, rc, dbstore.StatusRunning, nil)
}

// upgrade implements spec.md §4.5's Upgrade operation variant. The
// config_delta carried on the task is audit-only; the engine always
// renders values from the deployment's current config.
func (e *Engine) upgrade(ctx context.Context, rc *runTaskContext) error {
	if err := e.setStatus(ctx, rc, dbstore.StatusUpgrading, nil); err != nil {
		return err
	}
	if err := e.runHelm(ctx, rc, HelmUpgrade); err != nil {
		return e.fail(ctx, rc, err)
	}
	if err := e.onHelmSuccess(ctx, rc, &rc.task.ID); err != nil {
		return e.fail(ctx, rc, err)
	}
	return e.setStatus(ctx, rc, dbstore.StatusRunning, nil)
}

// reinstall re-executes the current revision unchanged, without
// advancing revision_id (spec.md §4.5).
func (e *Engine) reinstall(ctx context.Context, rc *runTaskContext) error {
	if err := e.runHelm(ctx, rc, HelmUpgrade); err != nil {
		return e.fail(ctx, rc, err)
	}
	if err := e.onHelmSuccess(ctx, rc, nil); err != nil {
		return e.fail(ctx, rc, err)
	}
	return nil
}

// recreate implements the namespace-move variant: delete the old
// namespace, create the new one, and re-apply credentials. Expected to
// be followed by an Upgrade task in the same batch (spec.md §4.5).
func (e *Engine) recreate(ctx context.Context, rc *runTaskContext, op *RecreateOp) error {
	if op == nil {
		return perr.New(perr.ValidationError, "recreate operation missing its payload")
	}
	if err := e.setStatus(ctx, rc, dbstore.StatusRenaming, nil); err != nil {
		return err
	}

	oldClient, ok := e.tracker.Client(op.OldClusterID)
	if ok {
		if err := DeleteNamespace(ctx, oldClient, op.OldNamespace); err != nil {
			return e.fail(ctx, rc, perr.Wrap(err, perr.HelmExecutionError, "deleting old namespace %s", op.OldNamespace))
		}
	}
	if err := EnsureNamespace(ctx, rc.client, rc.namespace, rc.deployment.ID); err != nil {
		return e.fail(ctx, rc, perr.Wrap(err, perr.HelmExecutionError, "ensuring namespace %s", rc.namespace))
	}
	if err := e.applyCreds(ctx, rc); err != nil {
		return e.fail(ctx, rc, err)
	}
	return nil
}

// uninstall implements spec.md §4.5's Uninstall operation variant: the
// actual status transition to Uninstalled (or row deletion, for
// Deleting) happens later, when the Cluster Tracker observes the
// namespace actually disappear.
func (e *Engine) uninstall(ctx context.Context, rc *runTaskContext) error {
	nextStatus := dbstore.StatusUninstalling
	if rc.deployment.Status == dbstore.StatusDeleting {
		nextStatus = dbstore.StatusDeleting
	}
	clearRevision := true
	if err := e.setStatus(ctx, rc, nextStatus, &clearRevision); err != nil {
		return err
	}
	if err := DeleteNamespace(ctx, rc.client, rc.namespace); err != nil {
		return perr.Wrap(err, perr.HelmExecutionError, "deleting namespace %s", rc.namespace)
	}
	return nil
}

// runHelm renders chart values, writes derived secrets, and launches the
// executor pod for command (spec.md §4.5).
func (e *Engine) runHelm(ctx context.Context, rc *runTaskContext, cmd HelmCommand) error {
	envID := uuid.Nil
	if rc.env != nil {
		envID = rc.env.ID
	}

	inputs, err := decodeConfig(rc.deployment.Config)
	if err != nil {
		return perr.Wrap(err, perr.ValidationError, "decoding deployment config")
	}

	r := e.resolverFor(rc.kind.ID)
	resolved, err := r.ResolveValues(ctx, envID, rc.decoded.ValuesUI, inputs)
	if err != nil {
		return err
	}
	secrets, err := r.ResolveSecrets(ctx, envID, rc.decoded.ValuesUI, inputs)
	if err != nil {
		return err
	}
	if err := ApplyDerivedSecrets(ctx, rc.client, rc.namespace, secrets); err != nil {
		return perr.Wrap(err, perr.HelmExecutionError, "applying derived secrets")
	}

	var ingress *Ingress
	if rc.decoded.Features.Ingress.Enabled {
		ingress, err = e.buildIngress(rc)
		if err != nil {
			return err
		}
	}

	platz := e.buildPlatz(rc, envID)
	var nodeSelector, tolerations any
	if rc.env != nil {
		if len(rc.env.NodeSelector) > 0 {
			nodeSelector = json.RawMessage(rc.env.NodeSelector)
		}
		if len(rc.env.Tolerations) > 0 {
			tolerations = json.RawMessage(rc.env.Tolerations)
		}
	}

	values, err := BuildChartValues(platz, nodeSelector, tolerations,
		rc.decoded.Features.NodeSelectorPaths, rc.decoded.Features.TolerationsPaths, ingress, resolved)
	if err != nil {
		return err
	}
	valuesB64, err := SerializeValues(values)
	if err != nil {
		return err
	}
	overrideB64, err := SerializeValues(decodeOverride(rc.deployment.ValuesOverride))
	if err != nil {
		return err
	}

	registry, err := e.store.GetHelmRegistry(ctx, rc.chart.HelmRegistryID)
	if err != nil {
		return perr.Wrap(err, perr.DatabaseError, "loading helm registry %s", rc.chart.HelmRegistryID)
	}
	kubeconfig, ok := e.tracker.Kubeconfig(rc.cluster.ID)
	if !ok {
		return perr.New(perr.NotFound, "cluster %s has no cached kubeconfig", rc.cluster.ID)
	}

	ociRepo := "oci://" + registry.DomainName + "/" + registry.RepoName
	region, err := e.registryAuth.Region(ctx, ociRepo)
	if err != nil {
		return perr.Wrap(err, perr.HelmExecutionError, "resolving registry login for %s", ociRepo)
	}

	spec := PodSpec{
		Command:        cmd,
		Namespace:      rc.namespace,
		Registry:       registry.DomainName,
		Repo:           registry.RepoName,
		ChartTag:       rc.chart.ImageTag,
		KubeconfigB64:  b64(kubeconfig),
		ValuesB64:      valuesB64,
		OverrideB64:    overrideB64,
		RegistryRegion: region,
	}
	logs, err := RunExecutorPod(ctx, e.ownClient, e.cfg.ExecutorNamespace, e.cfg.ChartExecutorImage, e.cfg.ExecutorServiceAccount, spec)
	if err != nil {
		return perr.Wrap(err, perr.HelmExecutionError, "helm %s failed: %s", cmd, logs)
	}
	return nil
}

// onHelmSuccess performs the post-Helm success path common to
// Install/Upgrade/Reinstall: resource-type upserts and credential
// refresh, and (for Install/Upgrade) stamping revision_id.
func (e *Engine) onHelmSuccess(ctx context.Context, rc *runTaskContext, revisionID *uuid.UUID) error {
	if err := e.applyResourceTypes(ctx, rc); err != nil {
		return err
	}
	if err := e.applyCreds(ctx, rc); err != nil {
		return err
	}
	if revisionID != nil {
		if _, err := e.store.UpdateDeployment(ctx, rc.deployment.ID, func(d *dbstore.Deployment) error {
			d.RevisionID = revisionID
			return nil
		}); err != nil {
			return perr.Wrap(err, perr.DatabaseError, "stamping revision_id")
		}
	}
	return nil
}

func (e *Engine) applyResourceTypes(ctx context.Context, rc *runTaskContext) error {
	for _, rt := range rc.decoded.ResourceTypes {
		spec, err := json.Marshal(rt.Spec)
		if err != nil {
			return perr.Wrap(err, perr.ChartExtensionError, "encoding resource type %s", rt.Key)
		}
		row := &dbstore.DeploymentResourceType{
			DeploymentKindID: rc.kind.ID,
			Key:              rt.Key,
			Spec:             spec,
		}
		if !rt.Spec.Global && rc.env != nil {
			row.EnvID = &rc.env.ID
		}
		if _, err := e.store.UpsertResourceType(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) applyCreds(ctx context.Context, rc *runTaskContext) error {
	token, serverURL, expiresAt, err := IssueDeploymentToken(rc.deployment, e.cfg)
	if err != nil {
		return err
	}
	if err := ApplyPlatzCreds(ctx, rc.client, rc.namespace, token, serverURL, expiresAt); err != nil {
		return perr.Wrap(err, perr.HelmExecutionError, "applying platz-creds")
	}
	return nil
}

// IssueDeploymentToken is a placeholder for the credential issuance the
// (out-of-scope) OIDC/JWT layer owns; callers that need to write or
// refresh a deployment's platz-creds secret -- both the Task Engine's own
// post-Helm path and the standalone periodic refresh worker -- only need
// its shape here.
func IssueDeploymentToken(dep *dbstore.Deployment, cfg config.Config) (token, serverURL string, expiresAt time.Time, err error) {
	return dep.ID.String(), cfg.OwnURL, time.Now().Add(cfg.DeploymentTokenLifetime), nil
}

func (e *Engine) buildPlatz(rc *runTaskContext, envID uuid.UUID) Platz {
	envName := ""
	if rc.env != nil {
		envName = rc.env.Name
	}
	return Platz{
		EnvID:          envID,
		EnvName:        envName,
		ClusterID:      rc.cluster.ID,
		ClusterName:    rc.cluster.Name,
		Cluster:        rc.cluster.ProviderID,
		DeploymentID:   rc.deployment.ID,
		DeploymentName: rc.deployment.Name,
		DeploymentKind: rc.kind.Name,
		RevisionID:     rc.deployment.RevisionID,
		OwnURL:         e.cfg.OwnURL,
	}
}

func (e *Engine) buildIngress(rc *runTaskContext) (*Ingress, error) {
	domain := ""
	if rc.cluster.IngressDomain != nil {
		domain = *rc.cluster.IngressDomain
	}
	host, err := RenderHostname(rc.decoded.Features.Ingress.HostnameFormat, rc.kind.Name, rc.deployment.Name, domain)
	if err != nil {
		return nil, err
	}
	ingress := &Ingress{
		Enabled:   true,
		ClassName: rc.decoded.Features.Ingress.ClassName,
		Hosts:     []IngressHost{{Host: host, Paths: []string{"/"}}},
	}
	if rc.cluster.IngressTLSSecretName != nil {
		ingress.TLS = []IngressTLS{{SecretName: *rc.cluster.IngressTLSSecretName, Hosts: []string{host}}}
	}
	return ingress, nil
}

// setStatus transitions the deployment's status, optionally clearing
// revision_id (used by Uninstall).
func (e *Engine) setStatus(ctx context.Context, rc *runTaskContext, status dbstore.DeploymentStatus, clearRevision *bool) error {
	dep, err := e.store.UpdateDeployment(ctx, rc.deployment.ID, func(d *dbstore.Deployment) error {
		d.Status = status
		d.Reason = nil
		if clearRevision != nil && *clearRevision {
			d.RevisionID = nil
		}
		return nil
	})
	if err != nil {
		return perr.Wrap(err, perr.DatabaseError, "setting deployment status %s", status)
	}
	rc.deployment = dep
	return nil
}

// fail sets the deployment to Error with err's message and returns err
// unchanged, so callers can `return e.fail(ctx, rc, err)`.
func (e *Engine) fail(ctx context.Context, rc *runTaskContext, err error) error {
	msg := err.Error()
	if _, updErr := e.store.UpdateDeployment(ctx, rc.deployment.ID, func(d *dbstore.Deployment) error {
		d.Status = dbstore.StatusError
		d.Reason = &msg
		return nil
	}); updErr != nil {
		e.Logger().Error("recording deployment error status", "error", updErr)
	}
	return err
}

func decodeConfig(raw dbstore.JSON) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeOverride(raw dbstore.JSON) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{}
	}
	return m
}

func b64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
