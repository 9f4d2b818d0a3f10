package auth

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/harrisonrobin/taskslot/pkg/errs"
)

func TestNormalizeRedirect(t *testing.T) {
	cases := map[string]string{
		"urn:ietf:wg:oauth:2.0:oob":      "http://localhost:6789/oauth2callback",
		"http://localhost":               "http://localhost:6789",
		"http://127.0.0.1:8080/callback": "http://127.0.0.1:6789/callback",
		"https://example.com/callback":   "https://example.com/callback",
	}
	for in, want := range cases {
		cfg := &oauth2.Config{RedirectURL: in}
		normalizeRedirect(cfg)
		assert.Equal(t, want, cfg.RedirectURL, in)
	}
}

func TestGoogleConfigReadsSecrets(t *testing.T) {
	dir := t.TempDir()
	secrets := `{"installed":{"client_id":"cid","client_secret":"sec","auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token","redirect_uris":["http://localhost"]}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ClientSecretsFile), []byte(secrets), 0o600))

	cfg, err := GoogleConfig(dir, GoogleScopes)
	require.NoError(t, err)
	assert.Equal(t, "cid", cfg.ClientID)
	assert.Equal(t, "http://localhost:6789", cfg.RedirectURL)
}

func TestGoogleConfigMissingSecrets(t *testing.T) {
	_, err := GoogleConfig(t.TempDir(), GoogleScopes)
	require.Error(t, err)
	assert.True(t, errs.IsAuth(err))
}

func TestMicrosoftConfig(t *testing.T) {
	_, err := MicrosoftConfig("", "")
	assert.True(t, errs.IsAuth(err))

	cfg, err := MicrosoftConfig("app-id", "")
	require.NoError(t, err)
	assert.Contains(t, cfg.Endpoint.AuthURL, "/common/oauth2/v2.0/authorize")
	assert.Contains(t, cfg.Scopes, "offline_access")
}

func TestEnvClient(t *testing.T) {
	t.Setenv("TASKSLOT_TEST_TOKEN", "")
	_, err := EnvClient(context.Background(), ProviderGraph, "TASKSLOT_TEST_TOKEN")
	assert.True(t, errs.IsAuth(err))

	t.Setenv("TASKSLOT_TEST_TOKEN", "abc")
	c, err := EnvClient(context.Background(), ProviderGraph, "TASKSLOT_TEST_TOKEN")
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestClientWithoutTokenNonInteractive(t *testing.T) {
	cfg, err := MicrosoftConfig("app-id", "common")
	require.NoError(t, err)

	_, err = Client(context.Background(), ProviderGraph, cfg, filepath.Join(t.TempDir(), GraphTokenFile), false)
	require.Error(t, err)
	assert.True(t, errs.IsAuth(err))
}

func TestSaveAndLoadToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", GoogleTokenFile)
	require.NoError(t, saveToken(path, &oauth2.Token{AccessToken: "a", RefreshToken: "r"}))

	tok, err := tokenFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a", tok.AccessToken)
	assert.Equal(t, "r", tok.RefreshToken)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestSavingTokenSourcePersistsRefresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), GraphTokenFile)
	s := &savingTokenSource{
		provider: ProviderGraph,
		src:      oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "new", RefreshToken: "r"}),
		path:     path,
		last:     &oauth2.Token{AccessToken: "old", RefreshToken: "r"},
	}

	tok, err := s.Token()
	require.NoError(t, err)
	assert.Equal(t, "new", tok.AccessToken)

	saved, err := tokenFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", saved.AccessToken)
}
