package taskengine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeInstallRoundTrip(t *testing.T) {
	op := NewInstall()
	raw, err := Encode(op)
	require.NoError(t, err)

	decoded, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, KindInstall, decoded.Kind)
	assert.Nil(t, decoded.Upgrade)
}

func TestEncodeDecodeUpgradeCarriesDelta(t *testing.T) {
	op := NewUpgrade([]byte(`{"replicas":1}`), []byte(`{"replicas":2}`))
	raw, err := Encode(op)
	require.NoError(t, err)

	decoded, err := Decode(raw)
	require.NoError(t, err)
	require.NotNil(t, decoded.Upgrade)
	assert.JSONEq(t, `{"replicas":1}`, string(decoded.Upgrade.Before))
	assert.JSONEq(t, `{"replicas":2}`, string(decoded.Upgrade.After))
}

func TestEncodeDecodeRecreateCarriesOldLocation(t *testing.T) {
	oldCluster := uuid.New()
	op := NewRecreate(oldCluster, "myapp-old")
	raw, err := Encode(op)
	require.NoError(t, err)

	decoded, err := Decode(raw)
	require.NoError(t, err)
	require.NotNil(t, decoded.Recreate)
	assert.Equal(t, oldCluster, decoded.Recreate.OldClusterID)
	assert.Equal(t, "myapp-old", decoded.Recreate.OldNamespace)
}

func TestEncodeDecodeInvokeActionCarriesInputs(t *testing.T) {
	op := NewInvokeAction("restart", map[string]any{"force": true})
	raw, err := Encode(op)
	require.NoError(t, err)

	decoded, err := Decode(raw)
	require.NoError(t, err)
	require.NotNil(t, decoded.InvokeAction)
	assert.Equal(t, "restart", decoded.InvokeAction.ActionID)
	assert.Equal(t, true, decoded.InvokeAction.Inputs["force"])
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	assert.Error(t, err)
}
