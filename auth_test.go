package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthFlow(t *testing.T, input string, handler http.HandlerFunc) (*ConsoleAuthorizationFlow, *bytes.Buffer) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	out := &bytes.Buffer{}
	flow := NewConsoleAuthorizationFlow("app-key", "app-secret", strings.NewReader(input), out)
	flow.TokenURL = srv.URL + "/oauth2/token"
	return flow, out
}

func TestAuthorizationURL(t *testing.T) {
	flow := NewConsoleAuthorizationFlow("app-key", "app-secret", nil, io.Discard)

	parsed, err := url.Parse(flow.URL())
	require.NoError(t, err)
	assert.Equal(t, "www.dropbox.com", parsed.Host)
	assert.Equal(t, "/oauth2/authorize", parsed.Path)
	assert.Equal(t, "app-key", parsed.Query().Get("client_id"))
	assert.Equal(t, "code", parsed.Query().Get("response_type"))
	assert.Equal(t, "offline", parsed.Query().Get("token_access_type"))
}

func TestAuthorize(t *testing.T) {
	flow, out := newTestAuthFlow(t, "  the-code \n", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		assert.Equal(t, "app-key", r.PostForm.Get("client_id"))
		assert.Equal(t, "app-secret", r.PostForm.Get("client_secret"))
		writeJSON(w, http.StatusOK, `{"access_token":"a","token_type":"bearer","expires_in":14400,"refresh_token":"r-token"}`)
	})

	token, err := flow.Authorize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "r-token", token)
	assert.Contains(t, out.String(), "1. Go to: "+flow.URL())
	assert.Contains(t, out.String(), "Enter the authorization code here: ")
}

func TestAuthorizeBadCode(t *testing.T) {
	flow, _ := newTestAuthFlow(t, "wrong\n", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, `{"error":"invalid_grant","error_description":"code doesn't exist or has expired"}`)
	})

	_, err := flow.Authorize(context.Background())
	assert.ErrorIs(t, err, ErrAuthorization)
	assert.Contains(t, err.Error(), "invalid_grant")
}

func TestAuthorizeEmptyCode(t *testing.T) {
	called := false
	flow, _ := newTestAuthFlow(t, "\n", func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := flow.Authorize(context.Background())
	assert.ErrorIs(t, err, ErrAuthorization)
	assert.False(t, called)
}

func TestAuthorizeWithoutRefreshToken(t *testing.T) {
	flow, _ := newTestAuthFlow(t, "code", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"access_token":"a","token_type":"bearer","expires_in":14400}`)
	})

	_, err := flow.Authorize(context.Background())
	assert.ErrorIs(t, err, ErrAuthorization)
}
