package taskengine

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platzio/platz/pkg/chartext"
)

func TestRenderHostnameName(t *testing.T) {
	host, err := RenderHostname(chartext.HostnameFormatName, "Widget", "prod", "apps.example.com")
	require.NoError(t, err)
	assert.Equal(t, "prod.apps.example.com", host)
}

func TestRenderHostnameKindAndName(t *testing.T) {
	host, err := RenderHostname(chartext.HostnameFormatKindAndName, "Widget", "prod", "apps.example.com")
	require.NoError(t, err)
	assert.Equal(t, "widget-prod.apps.example.com", host)
}

func TestRenderHostnameNoDomain(t *testing.T) {
	host, err := RenderHostname(chartext.HostnameFormatName, "Widget", "prod", "")
	require.NoError(t, err)
	assert.Equal(t, "prod", host)
}

func TestBuildChartValuesSetsPlatzBlock(t *testing.T) {
	platz := Platz{
		EnvName:        "prod",
		ClusterName:    "us-east",
		DeploymentName: "myapp",
	}
	values, err := BuildChartValues(platz, nil, nil, nil, nil, nil, map[string]any{})
	require.NoError(t, err)

	block, ok := values["platz"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "prod", block["env_name"])
	assert.Equal(t, "myapp", block["deployment_name"])
}

func TestBuildChartValuesAppliesNodeSelectorAtDeclaredPaths(t *testing.T) {
	selector := map[string]any{"disk": "ssd"}
	values, err := BuildChartValues(Platz{}, selector, nil, []string{"sub.nodeSelector", "nodeSelector"}, nil, nil, nil)
	require.NoError(t, err)

	sub := values["sub"].(map[string]any)
	assert.Equal(t, selector, sub["nodeSelector"])
	assert.Equal(t, selector, values["nodeSelector"])
}

func TestBuildChartValuesSetsResolvedDottedPaths(t *testing.T) {
	resolved := map[string]any{"spec.replicas": 3}
	values, err := BuildChartValues(Platz{}, nil, nil, nil, nil, nil, resolved)
	require.NoError(t, err)

	spec := values["spec"].(map[string]any)
	assert.Equal(t, 3, spec["replicas"])
}

func TestBuildChartValuesIngressBlock(t *testing.T) {
	ingress := &Ingress{
		Enabled: true,
		Hosts:   []IngressHost{{Host: "prod.example.com", Paths: []string{"/"}}},
	}
	values, err := BuildChartValues(Platz{}, nil, nil, nil, nil, ingress, nil)
	require.NoError(t, err)

	block := values["ingress"].(map[string]any)
	assert.Equal(t, true, block["enabled"])
}

func TestSetPathCreatesIntermediateMaps(t *testing.T) {
	doc := map[string]any{}
	setPath(doc, "a.b.c", 1)
	a := doc["a"].(map[string]any)
	b := a["b"].(map[string]any)
	assert.Equal(t, 1, b["c"])
}

func TestSerializeValuesProducesBase64YAML(t *testing.T) {
	encoded, err := SerializeValues(map[string]any{"a": 1})
	require.NoError(t, err)

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.Contains(t, string(decoded), "a: 1")
}
