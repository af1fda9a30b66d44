package registryauth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestECRReturnsConfiguredRegionRegardlessOfRepo(t *testing.T) {
	auth := NewECR("us-east-1")
	region, err := auth.Region(context.Background(), "oci://123456789.dkr.ecr.us-east-1.amazonaws.com/charts")
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", region)

	region, err = auth.Region(context.Background(), "oci://some-other-repo")
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", region)
}

func TestStaticReturnsItsOwnValue(t *testing.T) {
	region, err := Static("eu-west-1").Region(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", region)
}
