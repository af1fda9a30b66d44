package taskengine

import (
	"encoding/base64"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"

	"github.com/platzio/platz/pkg/chartext"
)

// Platz is the ChartValues.platz block every chart receives (spec.md
// §4.5).
type Platz struct {
	EnvID          uuid.UUID  `json:"env_id"`
	EnvName        string     `json:"env_name"`
	ClusterID      uuid.UUID  `json:"cluster_id"`
	ClusterName    string     `json:"cluster_name"`
	Cluster        string     `json:"cluster"`
	DeploymentID   uuid.UUID  `json:"deployment_id"`
	DeploymentName string     `json:"deployment_name"`
	DeploymentKind string     `json:"deployment_kind"`
	RevisionID     *uuid.UUID `json:"revision_id,omitempty"`
	OwnURL         string     `json:"own_url"`
	ActingIdentity string     `json:"acting_identity,omitempty"`
}

// IngressHost is one entry of ChartValues.ingress.hosts.
type IngressHost struct {
	Host  string   `json:"host"`
	Paths []string `json:"paths"`
}

// IngressTLS is one entry of ChartValues.ingress.tls.
type IngressTLS struct {
	SecretName string   `json:"secretName"`
	Hosts      []string `json:"hosts"`
}

// Ingress is the ChartValues.ingress block, present only when the
// chart's ingress feature is enabled (spec.md §4.5).
type Ingress struct {
	Enabled   bool          `json:"enabled"`
	ClassName string        `json:"className,omitempty"`
	Hosts     []IngressHost `json:"hosts"`
	TLS       []IngressTLS  `json:"tls"`
}

// hostnameTemplates renders a deployment's ingress hostname from its
// HostnameFormat (SPEC_FULL.md §B: expressed as a Go text/template using
// sprig helpers, mirroring the teacher's own sprig-based chart value
// templating, even though the format itself is a closed enum rather than
// an author-supplied template string).
var hostnameTemplates = map[chartext.HostnameFormat]string{
	chartext.HostnameFormatName:        `{{ .Name | lower | trunc 63 | trimSuffix "-" }}`,
	chartext.HostnameFormatKindAndName: `{{ printf "%s-%s" .Kind .Name | lower | trunc 63 | trimSuffix "-" }}`,
}

// RenderHostname computes the ingress host for a deployment, appending
// domain (the target cluster's ingress_domain) if non-empty.
func RenderHostname(format chartext.HostnameFormat, kind, name, domain string) (string, error) {
	tmplStr, ok := hostnameTemplates[format]
	if !ok {
		tmplStr = hostnameTemplates[chartext.HostnameFormatName]
	}
	tmpl, err := template.New("hostname").Funcs(sprig.TxtFuncMap()).Parse(tmplStr)
	if err != nil {
		return "", errors.Wrap(err, "parsing hostname template")
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, struct{ Kind, Name string }{Kind: kind, Name: name}); err != nil {
		return "", errors.Wrap(err, "rendering hostname")
	}
	host := sb.String()
	if domain != "" {
		host = host + "." + domain
	}
	return host, nil
}

// BuildChartValues assembles the full values document passed to Helm:
// platz/ingress plus every resolver-produced dotted-path output, merged
// into nested maps (spec.md §4.5). nodeSelector and tolerations are the
// env's literal documents, written at each of nodeSelectorPaths /
// tolerationsPaths (a chart's features.node_selector_paths /
// tolerations_paths, spec.md §4.4) -- a chart with subcharts can declare
// more than one injection point for the same value, defaulting to the
// top-level "nodeSelector"/"tolerations" keys when it declares none.
func BuildChartValues(platz Platz, nodeSelector, tolerations any, nodeSelectorPaths, tolerationsPaths []string, ingress *Ingress, resolved map[string]any) (map[string]any, error) {
	doc := map[string]any{}

	platzJSON, err := toMap(platz)
	if err != nil {
		return nil, errors.Wrap(err, "encoding platz block")
	}
	doc["platz"] = platzJSON

	if nodeSelector != nil {
		paths := nodeSelectorPaths
		if len(paths) == 0 {
			paths = []string{"nodeSelector"}
		}
		for _, path := range paths {
			setPath(doc, path, nodeSelector)
		}
	}
	if tolerations != nil {
		paths := tolerationsPaths
		if len(paths) == 0 {
			paths = []string{"tolerations"}
		}
		for _, path := range paths {
			setPath(doc, path, tolerations)
		}
	}
	if ingress != nil {
		ingressMap, err := toMap(ingress)
		if err != nil {
			return nil, errors.Wrap(err, "encoding ingress block")
		}
		doc["ingress"] = ingressMap
	}

	for path, value := range resolved {
		setPath(doc, path, value)
	}
	return doc, nil
}

// toMap round-trips v through JSON into a plain map, so callers can set
// it alongside the resolver's dotted-path outputs in the same document.
func toMap(v any) (map[string]any, error) {
	b, err := yaml.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// setPath assigns value at a dot-separated path within doc, creating
// intermediate maps as needed (spec.md §4.3: ValueOutput.Path is a
// dotted JSON path like "spec.replicas").
func setPath(doc map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

// SerializeValues renders values as YAML and base64-encodes it, the
// encoding the executor pod's VALUES_BASE64 env var carries (spec.md
// §4.5, §6).
func SerializeValues(values map[string]any) (string, error) {
	b, err := yaml.Marshal(values)
	if err != nil {
		return "", errors.Wrap(err, "serializing chart values")
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
