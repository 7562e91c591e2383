package httptransport

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keymarket/internal/asset"
	"keymarket/internal/jwtauth"
	audit "keymarket/pkg/platform/audit"
)

func newTestServer(t *testing.T) (*httptest.Server, *jwtauth.Service) {
	t.Helper()
	log := slog.New(slog.DiscardHandler)
	events := audit.NewInMemoryStore()
	tokens := jwtauth.NewService("test-signing-key", "keymarket")
	assets := asset.NewService(asset.NewInMemoryStore(), events, log)

	router := NewRouter(Handlers{
		Assets: asset.NewHandler(assets, log),
		System: NewSystemHandler(nil, events, tokens, true, log),
	}, tokens, log)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, tokens
}

func TestAuthenticationBoundary(t *testing.T) {
	srv, tokens := newTestServer(t)

	t.Run("mutating routes reject missing token", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/assets", "application/json", bytes.NewBufferString(`{"content_ref":"ipfs://x"}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("mutating routes reject a forged token", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/assets", bytes.NewBufferString(`{"content_ref":"ipfs://x"}`))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer forged")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("valid token reaches the handler", func(t *testing.T) {
		token, err := tokens.GenerateToken("alice", time.Hour)
		require.NoError(t, err)

		req, err := http.NewRequest(http.MethodPost, srv.URL+"/assets", bytes.NewBufferString(`{"content_ref":"ipfs://bafy-dataset"}`))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	})
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDevLogin(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/dev/login", "application/json", bytes.NewBufferString(`{"principal":"alice"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		TokenType   string `json:"token_type"`
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Bearer", body.TokenType)
	assert.NotEmpty(t, body.AccessToken)

	// The issued token must open the authenticated surface.
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/assets", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+body.AccessToken)
	authed, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer authed.Body.Close()
	assert.Equal(t, http.StatusOK, authed.StatusCode)
}
