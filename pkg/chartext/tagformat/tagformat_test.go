package tagformat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSemver(t *testing.T) {
	p, err := Parse(FormatSemver, "v1.4.2")
	require.NoError(t, err)
	require.NotNil(t, p.Version)
	assert.Equal(t, "1.4.2", *p.Version)
}

func TestParseSemverInvalid(t *testing.T) {
	_, err := Parse(FormatSemver, "not-a-version")
	assert.Error(t, err)
}

func TestParseBranchCommit(t *testing.T) {
	p, err := Parse(FormatBranchCommit, "main-a1b2c3d")
	require.NoError(t, err)
	require.NotNil(t, p.Branch)
	require.NotNil(t, p.Commit)
	assert.Equal(t, "main", *p.Branch)
	assert.Equal(t, "a1b2c3d", *p.Commit)
}

func TestParseDateRevision(t *testing.T) {
	p, err := Parse(FormatDateRevision, "20240115-42")
	require.NoError(t, err)
	require.NotNil(t, p.Version)
	require.NotNil(t, p.Revision)
	assert.Equal(t, "20240115", *p.Version)
	assert.Equal(t, "42", *p.Revision)
}

func TestParseUnknownFormat(t *testing.T) {
	_, err := Parse(Format("bogus"), "whatever")
	assert.Error(t, err)
}
