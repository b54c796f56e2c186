package cmd

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gameshake/gameshake/pkg/gameshake/auth"
	"github.com/gameshake/gameshake/pkg/gameshake/client"
	"github.com/gameshake/gameshake/pkg/gameshake/config"
	"github.com/gameshake/gameshake/pkg/gameshake/fetch"
)

func TestBuildConnectionWithOverrides(t *testing.T) {
	rt := &runtimeState{
		serverOverride: "https://example.com",
		tokenOverride:  "token",
		cfg: &config.Config{
			Settings: config.Settings{Timeout: "2s"},
		},
	}

	conn, err := buildConnection(rt)
	require.NoError(t, err)
	require.NotNil(t, conn.client)
	assert.True(t, conn.static)
	assert.IsType(t, auth.StaticAuthenticator{}, conn.authn)

	cred, err := conn.store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token", cred.AccessToken)
}

func TestBuildConnectionInvalidTimeout(t *testing.T) {
	rt := &runtimeState{
		serverOverride: "https://example.com",
		tokenOverride:  "token",
		cfg: &config.Config{
			Settings: config.Settings{Timeout: "invalid"},
		},
	}

	_, err := buildConnection(rt)
	require.ErrorContains(t, err, "invalid timeout")
}

func TestBuildConnectionFromContext(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.CurrentContext = "prod"
	cfg.Settings.TokenStorage = "file"
	cfg.Settings.Retry = config.Retry{MaxAttempts: 7, BaseDelay: "1s", MaxDelay: "10s"}
	cfg.OAuthProviders = []config.OAuthProvider{{
		Name:             "idp",
		TokenURL:         "https://idp.example.com/token",
		ClientID:         "gameshake",
		ClientSecretFile: filepath.Join(t.TempDir(), "missing"),
		GrantType:        auth.GrantClientCredentials,
	}}
	cfg.Contexts = []config.Context{{Name: "prod", Server: "https://api.example.com", OAuthProvider: "idp"}}

	rt := &runtimeState{cfg: &cfg, credentialsPath: filepath.Join(t.TempDir(), "credentials.json")}
	_, err := buildConnection(rt)
	require.Error(t, err, "unreadable client secret file")

	cfg.OAuthProviders[0].ClientSecretFile = ""
	cfg.OAuthProviders[0].ClientSecret = "s3cret"
	conn, err := buildConnection(rt)
	require.NoError(t, err)
	assert.Equal(t, "prod", conn.contextName)
	assert.Equal(t, "prod/idp", conn.profile)
	assert.Equal(t, "s3cret", conn.login.ClientSecret)
	assert.Equal(t, client.RetryConfig{MaxAttempts: 7, BaseDelay: time.Second, MaxDelay: 10 * time.Second}, conn.retry)

	fileStore, ok := conn.store.(*auth.FileStore)
	require.True(t, ok)
	assert.Equal(t, "prod/idp", fileStore.Profile)

	authn, ok := conn.authn.(*auth.OAuth2Authenticator)
	require.True(t, ok)
	assert.Equal(t, auth.GrantClientCredentials, authn.GrantType())
}

func TestBuildConnectionRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Contexts = []config.Context{{Name: "broken", Server: "not a url"}}
	rt := &runtimeState{cfg: &cfg, configPath: "/tmp/config.yaml"}

	_, err := buildConnection(rt)
	require.ErrorContains(t, err, "invalid config /tmp/config.yaml")
}

func TestBuildConnectionTokenUsesContextServer(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Contexts = []config.Context{{Name: "dev", Server: "https://dev.example.com"}}
	rt := &runtimeState{cfg: &cfg, tokenOverride: "abc"}

	conn, err := buildConnection(rt)
	require.NoError(t, err)
	assert.True(t, conn.static)
	assert.Equal(t, "dev", conn.contextName)
}

func TestProgressEnabled(t *testing.T) {
	tests := []struct {
		name       string
		mode       string
		noProgress bool
		want       bool
	}{
		{name: "always", mode: config.ProgressAlways, want: true},
		{name: "never", mode: config.ProgressNever, want: false},
		{name: "auto without terminal", mode: config.ProgressAuto, want: false},
		{name: "flag wins", mode: config.ProgressAlways, noProgress: true, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := &runtimeState{
				cfg:        &config.Config{Settings: config.Settings{Progress: tt.mode}},
				noProgress: tt.noProgress,
				errWriter:  &testWriter{},
			}
			assert.Equal(t, tt.want, rt.ProgressEnabled())
		})
	}
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestDescribeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "cancelled",
			err:  &fetch.Error{Kind: fetch.Cancelled, Err: context.Canceled},
			want: "cancelled: fetch interrupted",
		},
		{
			name: "retries exhausted",
			err: &fetch.Error{Kind: fetch.FetchFailed, Err: &client.APIError{
				Kind: client.Transient, StatusCode: 503, Message: "maintenance", Attempts: 5,
			}},
			want: "fetch_failed: transient: maintenance (status 503 after 5 attempts)",
		},
		{
			name: "network",
			err: &fetch.Error{Kind: fetch.FetchFailed, Err: &client.APIError{
				Kind: client.Network, Err: errors.New("connection refused"), Attempts: 3,
			}},
			want: "fetch_failed: network: connection refused (after 3 attempts)",
		},
		{
			name: "second unauthorized",
			err: &fetch.Error{Kind: fetch.AuthExhausted, Err: &client.APIError{
				Kind: client.Unauthorized, StatusCode: 401, Message: "invalid token", Attempts: 1,
			}},
			want: "auth_exhausted: unauthorized: invalid token (status 401); run 'gameshake auth login'",
		},
		{
			name: "invalid grant",
			err: &fetch.Error{Kind: fetch.AuthExhausted, Err: &auth.AuthError{
				Kind: auth.AuthInvalidGrant, Op: "refresh", Err: errors.New("token revoked"),
			}},
			want: "auth_exhausted: authentication invalid_grant: token revoked; run 'gameshake auth login'",
		},
		{
			name: "interaction required",
			err: &auth.AuthError{
				Kind: auth.AuthDenied, Op: "authenticate", Err: auth.ErrInteractionRequired,
			},
			want: "authentication denied: " + auth.ErrInteractionRequired.Error() + "; run 'gameshake auth login' without --non-interactive",
		},
		{
			name: "plain fetch error",
			err:  &fetch.Error{Kind: fetch.FetchFailed, Err: errors.New("path is required")},
			want: "fetch_failed: path is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := describeError(tt.err)
			require.Error(t, got)
			assert.Equal(t, tt.want, got.Error())
			assert.True(t, errors.Is(got, tt.err), "original error stays reachable")
		})
	}

	plain := errors.New("boom")
	assert.Same(t, plain, describeError(plain))
	assert.NoError(t, describeError(nil))
}
