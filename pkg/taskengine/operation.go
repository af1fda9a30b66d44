// Package taskengine implements the Task Engine (spec.md §4.5): the
// durable task queue's claim loop, the seven operation variants, and the
// Helm-pod execution protocol they drive.
package taskengine

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Kind is the tag of the Operation sum type (spec.md §4.5 "Operation
// variants").
type Kind string

const (
	KindInstall            Kind = "Install"
	KindUpgrade            Kind = "Upgrade"
	KindReinstall          Kind = "Reinstall"
	KindRecreate           Kind = "Recreate"
	KindUninstall          Kind = "Uninstall"
	KindInvokeAction       Kind = "InvokeAction"
	KindRestartK8sResource Kind = "RestartK8sResource"
)

// UpgradeDelta is the prior-vs-new config diff an Upgrade operation
// carries for audit (spec.md §4.5).
type UpgradeDelta struct {
	Before json.RawMessage `json:"before"`
	After  json.RawMessage `json:"after"`
}

// RecreateOp moves a deployment's namespace across clusters/names.
type RecreateOp struct {
	OldClusterID uuid.UUID `json:"old_cluster_id"`
	OldNamespace string    `json:"old_namespace"`
}

// InvokeActionOp names the declared action to invoke and the raw inputs
// its UI schema (if any) resolves against.
type InvokeActionOp struct {
	ActionID string         `json:"action_id"`
	Inputs   map[string]any `json:"inputs"`
}

// RestartK8sResourceOp names the workload a restart annotation is
// applied to.
type RestartK8sResourceOp struct {
	Kind string `json:"kind"` // "Deployment" or "StatefulSet"
	Name string `json:"name"`
}

// Operation is the tagged union stored in DeploymentTask.Operation. Only
// the field matching Kind is populated; the others are nil.
type Operation struct {
	Kind Kind `json:"kind"`

	Upgrade            *UpgradeDelta          `json:"upgrade,omitempty"`
	Recreate           *RecreateOp            `json:"recreate,omitempty"`
	InvokeAction       *InvokeActionOp        `json:"invoke_action,omitempty"`
	RestartK8sResource *RestartK8sResourceOp  `json:"restart_k8s_resource,omitempty"`
}

// Decode unmarshals a DeploymentTask.Operation column into an Operation.
func Decode(raw []byte) (Operation, error) {
	var op Operation
	if err := json.Unmarshal(raw, &op); err != nil {
		return Operation{}, errors.Wrap(err, "decoding task operation")
	}
	return op, nil
}

// Encode marshals an Operation for storage in DeploymentTask.Operation.
func Encode(op Operation) ([]byte, error) {
	b, err := json.Marshal(op)
	if err != nil {
		return nil, errors.Wrap(err, "encoding task operation")
	}
	return b, nil
}

// NewInstall builds an Install operation (no extra payload beyond the
// deployment's current config).
func NewInstall() Operation { return Operation{Kind: KindInstall} }

// NewUpgrade builds an Upgrade operation carrying the config delta.
func NewUpgrade(before, after json.RawMessage) Operation {
	return Operation{Kind: KindUpgrade, Upgrade: &UpgradeDelta{Before: before, After: after}}
}

// NewReinstall builds a Reinstall operation (re-executes the current
// revision unchanged; does not advance revision_id).
func NewReinstall() Operation { return Operation{Kind: KindReinstall} }

// NewRecreate builds a Recreate operation.
func NewRecreate(oldClusterID uuid.UUID, oldNamespace string) Operation {
	return Operation{Kind: KindRecreate, Recreate: &RecreateOp{OldClusterID: oldClusterID, OldNamespace: oldNamespace}}
}

// NewUninstall builds an Uninstall operation.
func NewUninstall() Operation { return Operation{Kind: KindUninstall} }

// NewInvokeAction builds an InvokeAction operation.
func NewInvokeAction(actionID string, inputs map[string]any) Operation {
	return Operation{Kind: KindInvokeAction, InvokeAction: &InvokeActionOp{ActionID: actionID, Inputs: inputs}}
}

// NewRestartK8sResource builds a RestartK8sResource operation.
func NewRestartK8sResource(kind, name string) Operation {
	return Operation{Kind: KindRestartK8sResource, RestartK8sResource: &RestartK8sResourceOp{Kind: kind, Name: name}}
}
