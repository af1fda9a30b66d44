// Package dbstore is the Store component (spec.md §4.1): the persistent
// relational backing for every entity in spec.md §3. It is grounded on
// the teacher's pkg/storage + pkg/storage/driver (a Driver interface with
// Memory/Secret/ConfigMap/SQL implementations, storage_test.go's
// Create/Update/Delete/Get/History/List surface) generalized from Helm's
// single "release" entity to the full set of tables this spec names, and
// built directly against Postgres with sqlx + squirrel rather than
// against a generic key/value Driver, since every entity here has real
// relational structure (foreign keys, joins for filtering) that a
// Driver-per-kind abstraction would only get in the way of.
package dbstore

import (
	"time"

	"github.com/google/uuid"
)

// JSON is a raw JSON document column; callers marshal/unmarshal the
// concrete Go type they expect into it (chart config, task operation
// variants, tagged secrets, etc).
type JSON = []byte

// Env is a tenancy boundary for deployments, permissions, secrets, and
// resource-type scopes (spec.md §3, GLOSSARY).
type Env struct {
	ID              uuid.UUID `db:"id"`
	CreatedAt       time.Time `db:"created_at"`
	Name            string    `db:"name"`
	NodeSelector    JSON      `db:"node_selector"`
	Tolerations     JSON      `db:"tolerations"`
	AutoAddNewUsers bool      `db:"auto_add_new_users"`
}

// K8sCluster is a Kubernetes cluster discovered and reconciled by the
// Cluster Tracker (spec.md §4.6).
type K8sCluster struct {
	ID                   uuid.UUID  `db:"id"`
	CreatedAt            time.Time  `db:"created_at"`
	ProviderID           string     `db:"provider_id"`
	EnvID                *uuid.UUID `db:"env_id"`
	Name                 string     `db:"name"`
	Region               string     `db:"region"`
	IngressDomain        *string    `db:"ingress_domain"`
	IngressClass         *string    `db:"ingress_class"`
	IngressTLSSecretName *string    `db:"ingress_tls_secret_name"`
	IsOK                 bool       `db:"is_ok"`
	NotOKReason          *string    `db:"not_ok_reason"`
	Ignore               bool       `db:"ignore"`
	LastSeenAt           time.Time  `db:"last_seen_at"`
}

// DeploymentKind is a logical product/service name attached to a chart
// family, used for permission scoping (GLOSSARY).
type DeploymentKind struct {
	ID        uuid.UUID `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	Name      string    `db:"name"`
}

// HelmRegistry is an OCI registry/repo pair auto-created on chart
// ingestion (spec.md §3).
type HelmRegistry struct {
	ID         uuid.UUID `db:"id"`
	CreatedAt  time.Time `db:"created_at"`
	DomainName string    `db:"domain_name"`
	RepoName   string    `db:"repo_name"`
	KindID     uuid.UUID `db:"kind_id"`
}

// HelmChart is an immutable (except Available/Error) chart version,
// carrying the parsed chart extension documents from pkg/chartext once
// ingestion has parsed them.
type HelmChart struct {
	ID             uuid.UUID `db:"id"`
	CreatedAt      time.Time `db:"created_at"`
	HelmRegistryID uuid.UUID `db:"helm_registry_id"`
	ImageDigest    string    `db:"image_digest"`
	ImageTag       string    `db:"image_tag"`
	Available      bool      `db:"available"`
	ValuesUI       JSON      `db:"values_ui"`
	ActionsSchema  JSON      `db:"actions_schema"`
	Features       JSON      `db:"features"`
	ResourceTypes  JSON      `db:"resource_types"`
	Error          *string   `db:"error"`

	// Parsed tag fields (pkg/chartext/tagformat).
	Version  *string `db:"version"`
	Branch   *string `db:"branch"`
	Commit   *string `db:"commit"`
	Revision *string `db:"revision"`
}

// DeploymentStatus is the lifecycle status of a Deployment (spec.md §3, §4.5).
type DeploymentStatus string

const (
	StatusInstalling  DeploymentStatus = "Installing"
	StatusUpgrading   DeploymentStatus = "Upgrading"
	StatusRenaming    DeploymentStatus = "Renaming"
	StatusRunning     DeploymentStatus = "Running"
	StatusUninstalling DeploymentStatus = "Uninstalling"
	StatusUninstalled DeploymentStatus = "Uninstalled"
	StatusDeleting    DeploymentStatus = "Deleting"
	StatusError       DeploymentStatus = "Error"
)

// Deployment is a declaration that a particular chart should be
// installed into a particular target cluster (GLOSSARY).
type Deployment struct {
	ID             uuid.UUID        `db:"id"`
	CreatedAt      time.Time        `db:"created_at"`
	Name           string           `db:"name"`
	KindID         uuid.UUID        `db:"kind_id"`
	ClusterID      uuid.UUID        `db:"cluster_id"`
	Enabled        bool             `db:"enabled"`
	Status         DeploymentStatus `db:"status"`
	HelmChartID    uuid.UUID        `db:"helm_chart_id"`
	Config         JSON             `db:"config"`
	ValuesOverride JSON             `db:"values_override"`
	RevisionID     *uuid.UUID       `db:"revision_id"`
	ReportedStatus JSON             `db:"reported_status"`
	Reason         *string          `db:"reason"`
}

// TaskStatus is the DeploymentTask state machine's status (spec.md §3, §4.5).
type TaskStatus string

const (
	TaskPending   TaskStatus = "Pending"
	TaskStarted   TaskStatus = "Started"
	TaskFailed    TaskStatus = "Failed"
	TaskDone      TaskStatus = "Done"
	TaskCanceled  TaskStatus = "Canceled"
)

// DeploymentTask is a durable work item mutating a deployment; the unit
// of scheduling (GLOSSARY). Operation is a tagged-union JSON document;
// see pkg/taskengine/operation.go for the Go sum type it materializes
// into and back out of.
type DeploymentTask struct {
	ID                 uuid.UUID  `db:"id"`
	CreatedAt          time.Time  `db:"created_at"`
	DeploymentID       uuid.UUID  `db:"deployment_id"`
	ClusterID          uuid.UUID  `db:"cluster_id"`
	ActingUserID       *uuid.UUID `db:"acting_user_id"`
	ActingDeploymentID *uuid.UUID `db:"acting_deployment_id"`
	Operation          JSON       `db:"operation"`
	Status             TaskStatus `db:"status"`
	ExecuteAt          *time.Time `db:"execute_at"`
	FirstAttemptedAt   *time.Time `db:"first_attempted_at"`
	StartedAt          *time.Time `db:"started_at"`
	FinishedAt         *time.Time `db:"finished_at"`
	Reason             *string    `db:"reason"`

	// CanceledBy{User,System} tagged union (SPEC_FULL.md §C.3).
	CanceledByUserID *uuid.UUID `db:"canceled_by_user_id"`
	CanceledBySystem *string    `db:"canceled_by_system"`
}

// DeploymentResourceType is a user-defined collection a chart's reference
// resolver can dispatch to (spec.md §3, §4.3).
type DeploymentResourceType struct {
	ID               uuid.UUID  `db:"id"`
	CreatedAt        time.Time  `db:"created_at"`
	EnvID            *uuid.UUID `db:"env_id"`
	DeploymentKindID uuid.UUID  `db:"deployment_kind_id"`
	Key              string     `db:"key"`
	Spec             JSON       `db:"spec"`
}

// ResourceSyncStatus is the DeploymentResource lifecycle-sync status
// (spec.md §3, §4.7).
type ResourceSyncStatus string

const (
	SyncCreating ResourceSyncStatus = "Creating"
	SyncUpdating ResourceSyncStatus = "Updating"
	SyncDeleting ResourceSyncStatus = "Deleting"
	SyncReady    ResourceSyncStatus = "Ready"
	SyncError    ResourceSyncStatus = "Error"
)

// DeploymentResource is a user-declared resource of a DeploymentResourceType.
type DeploymentResource struct {
	ID         uuid.UUID          `db:"id"`
	CreatedAt  time.Time          `db:"created_at"`
	TypeID     uuid.UUID          `db:"type_id"`
	DeploymentID *uuid.UUID       `db:"deployment_id"`
	Name       string             `db:"name"`
	Exists     bool               `db:"exists"`
	Props      JSON               `db:"props"`
	SyncStatus ResourceSyncStatus `db:"sync_status"`
	SyncReason *string            `db:"sync_reason"`
}

// Secret owns sensitive strings referenced by chart inputs; Contents is
// never serialized outward by anything in this module.
type Secret struct {
	ID        uuid.UUID `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	EnvID     uuid.UUID `db:"env_id"`
	Collection string   `db:"collection"`
	Name      string    `db:"name"`
	Contents  JSON      `db:"contents"`
}

// EnvRole is a site-scoped permission role.
type EnvRole string

const (
	EnvRoleAdmin EnvRole = "Admin"
	EnvRoleUser  EnvRole = "User"
)

// EnvUserPermission grants a user a role within an Env.
type EnvUserPermission struct {
	ID        uuid.UUID `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	EnvID     uuid.UUID `db:"env_id"`
	UserID    uuid.UUID `db:"user_id"`
	Role      EnvRole   `db:"role"`
}

// DeploymentRole is a kind-scoped permission role.
type DeploymentRole string

const (
	DeploymentRoleOwner      DeploymentRole = "Owner"
	DeploymentRoleMaintainer DeploymentRole = "Maintainer"
)

// DeploymentPermission grants a user a role scoped to deployments of a kind.
type DeploymentPermission struct {
	ID        uuid.UUID      `db:"id"`
	CreatedAt time.Time      `db:"created_at"`
	EnvID     uuid.UUID      `db:"env_id"`
	UserID    uuid.UUID      `db:"user_id"`
	KindID    uuid.UUID      `db:"kind_id"`
	Role      DeploymentRole `db:"role"`
}

// StatusColor is one contribution to a K8sResource's status_color
// sequence (spec.md §4.6).
type StatusColor string

const (
	ColorSuccess StatusColor = "Success"
	ColorDanger  StatusColor = "Danger"
	ColorPrimary StatusColor = "Primary"
)

// K8sResource mirrors live workload state observed by the Cluster Tracker.
type K8sResource struct {
	ID            uuid.UUID  `db:"id"`
	CreatedAt     time.Time  `db:"created_at"`
	ClusterID     uuid.UUID  `db:"cluster_id"`
	DeploymentID  uuid.UUID  `db:"deployment_id"`
	Kind          string     `db:"kind"`
	APIVersion    string     `db:"api_version"`
	Name          string     `db:"name"`
	UID           string     `db:"uid"`
	StatusColor   JSON       `db:"status_color"`
	Metadata      JSON       `db:"metadata"`
	LastUpdatedAt time.Time  `db:"last_updated_at"`
}

// Setting is a process-wide key/value persisted across restarts.
type Setting struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}
