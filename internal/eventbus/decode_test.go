package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platzio/platz/internal/dbstore"
)

func TestDecodeChangeEvent(t *testing.T) {
	ev, err := decodeChangeEvent(`{"operation":"Update","table":"deployments","data":{"id":"abc-123"}}`)
	require.NoError(t, err)
	assert.Equal(t, dbstore.ChangeEvent{
		Operation: dbstore.OpUpdate,
		Table:     "deployments",
		ID:        "abc-123",
	}, ev)
}

func TestDecodeChangeEventMissingTable(t *testing.T) {
	_, err := decodeChangeEvent(`{"operation":"Insert","data":{"id":"abc"}}`)
	assert.Error(t, err)
}

func TestDecodeChangeEventInvalidJSON(t *testing.T) {
	_, err := decodeChangeEvent(`not json`)
	assert.Error(t, err)
}
