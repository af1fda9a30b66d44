package taskengine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platzio/platz/pkg/chartext"
	"github.com/platzio/platz/pkg/resolver"
)

func TestInvokeActionPassesThroughInputsWithoutSchema(t *testing.T) {
	var receivedBody map[string]any
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/actions/restart", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&receivedBody))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	action := chartext.Action{
		ID:     "restart",
		Target: chartext.Target{Path: "/actions/restart", Method: chartext.MethodPOST},
	}
	hostname := mustHost(t, srv.URL)
	r := resolver.New(nil)

	body, err := InvokeAction(context.Background(), srv.Client(), r, uuid.New(), hostname, action, map[string]any{"force": true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, body)
	assert.Equal(t, true, receivedBody["force"])
}

func TestInvokeActionReturnsErrorOnNon2xx(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	action := chartext.Action{
		ID:     "restart",
		Target: chartext.Target{Path: "/x", Method: chartext.MethodGET},
	}
	hostname := mustHost(t, srv.URL)
	r := resolver.New(nil)

	_, err := InvokeAction(context.Background(), srv.Client(), r, uuid.New(), hostname, action, nil)
	assert.Error(t, err)
}

func mustHost(t *testing.T, rawURL string) string {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	return u.Host
}
